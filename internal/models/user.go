// Package models defines data structures shared across the shopclip client.
package models

import "time"

// User represents the authenticated ShopClip account as returned by
// GET /auth/me.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	Plan        string    `json:"plan,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// CreditBalance represents the account's listing-generation credits as
// returned by GET /credits/balance.
type CreditBalance struct {
	Credits   int       `json:"credits"`
	Plan      string    `json:"plan,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
