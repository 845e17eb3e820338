package models

// TokenPair carries the access/refresh token pair issued by the backend.
// The refresh token rotates on every refresh; both values must always be
// persisted together.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// OAuthInitRequest is the body for POST /auth/oauth/init.
type OAuthInitRequest struct {
	Provider    string `json:"provider"`
	RedirectURI string `json:"redirectUri"`
}

// OAuthInitResponse is the backend's reply to POST /auth/oauth/init.
// State may be empty when the backend folds it into the authorization URL
// only; the client then extracts it from the URL query.
type OAuthInitResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
	State            string `json:"state,omitempty"`
	Nonce            string `json:"nonce"`
	CodeVerifier     string `json:"codeVerifier,omitempty"`
}

// OAuthCallbackRequest is the body for POST /auth/oauth/callback. The backend
// performs the provider exchange; the client only forwards what it was given.
type OAuthCallbackRequest struct {
	Provider     string `json:"provider"`
	Code         string `json:"code"`
	State        string `json:"state,omitempty"`
	Nonce        string `json:"nonce"`
	CodeVerifier string `json:"codeVerifier,omitempty"`
	RedirectURI  string `json:"redirectUri"`
}

// AuthResult is the backend's reply to a successful code exchange.
type AuthResult struct {
	TokenPair
	User *User `json:"user,omitempty"`
}

// RefreshRequest is the body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest is the body for POST /auth/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}
