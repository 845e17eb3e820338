// Package cli provides authentication commands.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shopclip/shopclip-cli/internal/auth"
)

// errBadRedirect marks paste mistakes the user can correct by retrying.
var errBadRedirect = errors.New("that does not look like the redirect URL")

// newAuthCmd creates the 'auth' command group.
func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign out, and inspect the current session",
		Long:  `Commands for managing your ShopClip session.`,
	}

	authCmd.AddCommand(newAuthLoginCmd())
	authCmd.AddCommand(newAuthLogoutCmd())
	authCmd.AddCommand(newAuthStatusCmd())

	return authCmd
}

// newAuthLoginCmd creates the 'auth login' command.
func newAuthLoginCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through your browser",
		Long: `Sign in to ShopClip with an OAuth provider.

The command prints an authorization URL. Open it in your browser, approve
the sign-in, and paste the full URL your browser lands on back into the
terminal. That URL carries the one-time code this command exchanges for
your session.

Example:
  shopclip auth login
  shopclip auth login --provider apple`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("auth login needs an interactive terminal")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := GetContext()

			if sess, err := a.manager.RestoreSession(ctx); err == nil && sess.Authenticated {
				email := ""
				if sess.User != nil {
					email = " as " + sess.User.Email
				}
				fmt.Printf("Already signed in%s. Run 'shopclip auth logout' first to switch accounts.\n", email)
				return nil
			}

			if provider == "" {
				provider = a.cfg.Provider
			}

			authURL, err := a.flow.Initiate(ctx, provider)
			if err != nil {
				return fmt.Errorf("failed to start sign-in: %w", err)
			}

			fmt.Println("Open this URL in your browser and approve the sign-in:")
			fmt.Println()
			fmt.Printf("  %s\n", authURL)
			fmt.Println()
			fmt.Println("After approving you will land on a shopclip:// page that may not load.")
			fmt.Println("That is expected. Copy the full URL from the address bar and paste it here.")
			fmt.Println()

			reader := bufio.NewReader(os.Stdin)
			signedIn := false
			for attempt := 0; attempt < 3; attempt++ {
				fmt.Print("Redirect URL: ")
				input, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}

				err = a.completeLogin(ctx, strings.TrimSpace(input), provider)
				if err == nil {
					signedIn = true
					break
				}
				if errors.Is(err, auth.ErrStateMismatch) || errors.Is(err, errBadRedirect) {
					fmt.Printf("  %v. Please paste the exact URL from the address bar.\n", err)
					continue
				}
				return err
			}
			if !signedIn {
				return fmt.Errorf("sign-in aborted after repeated invalid input")
			}

			email := ""
			if sess := a.manager.Session(); sess.User != nil {
				email = sess.User.Email
			}
			if email == "" {
				if user, err := a.manager.RefreshUser(ctx); err == nil {
					email = user.Email
				}
			}
			if email != "" {
				fmt.Printf("\n✓ Signed in as %s\n", email)
			} else {
				fmt.Println("\n✓ Signed in")
			}

			if balance, err := a.api.CreditBalance(ctx); err == nil {
				fmt.Printf("  Credits: %d\n", balance.Credits)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "OAuth provider (default from config)")

	return cmd
}

// completeLogin validates the pasted redirect, exchanges the code, and
// persists the session. State mismatches leave the handshake intact so the
// user can paste again.
func (a *app) completeLogin(ctx context.Context, input, provider string) error {
	code, state, err := parseRedirect(input)
	if err != nil {
		return err
	}

	if _, err := a.flow.Validate(state, provider); err != nil {
		return err
	}

	result, err := a.flow.Exchange(ctx, code, provider)
	if err != nil {
		return fmt.Errorf("code exchange failed: %w", err)
	}

	if err := a.flow.CompleteAndCleanup(ctx, result); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// parseRedirect extracts the authorization code and state from a pasted
// redirect URL. A bare query string without the scheme is accepted too.
// Provider denials (error=...) are reported as such.
func parseRedirect(input string) (code, state string, err error) {
	if input == "" {
		return "", "", errBadRedirect
	}

	query := input
	if i := strings.Index(input, "?"); i >= 0 {
		query = input[i+1:]
	}
	if i := strings.Index(query, "#"); i >= 0 {
		query = query[:i]
	}

	values, parseErr := url.ParseQuery(query)
	if parseErr != nil {
		return "", "", errBadRedirect
	}

	if denial := values.Get("error"); denial != "" {
		desc := values.Get("error_description")
		if desc == "" {
			desc = denial
		}
		return "", "", fmt.Errorf("sign-in was not approved: %s", desc)
	}

	code = values.Get("code")
	state = values.Get("state")
	if code == "" || state == "" {
		return "", "", errBadRedirect
	}
	return code, state, nil
}

// newAuthLogoutCmd creates the 'auth logout' command.
func newAuthLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear stored credentials",
		Long: `Sign out of ShopClip.

The refresh token is revoked with the backend when reachable; stored
credentials are removed from this machine either way.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := GetContext()

			sess, err := a.manager.RestoreSession(ctx)
			if err != nil && !errors.Is(err, auth.ErrSessionExpired) {
				return err
			}
			if !sess.Authenticated {
				fmt.Println("Not signed in.")
				return nil
			}

			if err := a.manager.SignOut(ctx); err != nil {
				return fmt.Errorf("failed to sign out: %w", err)
			}
			fmt.Println("✓ Signed out")
			return nil
		},
	}

	return cmd
}

// newAuthStatusCmd creates the 'auth status' command.
func newAuthStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the signed-in account and credit balance",
		Long: `Show who is signed in and how many listing credits remain.

Example:
  shopclip auth status
  shopclip auth status --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := GetContext()

			sess, err := a.manager.RestoreSession(ctx)
			if err != nil {
				if errors.Is(err, auth.ErrSessionExpired) {
					fmt.Println("Session expired. Run 'shopclip auth login' to sign in again.")
					return nil
				}
				return err
			}
			if !sess.Authenticated {
				fmt.Println("Not signed in. Run 'shopclip auth login' to get started.")
				return nil
			}

			balance, balanceErr := a.api.CreditBalance(ctx)

			if jsonOutput {
				out := map[string]interface{}{
					"authenticated": true,
					"user":          sess.User,
				}
				if balanceErr == nil {
					out["credits"] = balance.Credits
					out["plan"] = balance.Plan
				}
				return json.NewEncoder(os.Stdout).Encode(out)
			}

			fmt.Println("Signed in")
			if sess.User != nil {
				fmt.Printf("  Email: %s\n", sess.User.Email)
				if sess.User.DisplayName != "" {
					fmt.Printf("  Name:  %s\n", sess.User.DisplayName)
				}
				if sess.User.Plan != "" {
					fmt.Printf("  Plan:  %s\n", sess.User.Plan)
				}
			}
			if balanceErr == nil {
				fmt.Printf("  Credits: %d\n", balance.Credits)
			} else {
				fmt.Printf("  Credits: unavailable (%v)\n", balanceErr)
			}

			return nil
		},
	}

	return cmd
}
