// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nanobot-ai/nanobot/pkg/auth"
	"github.com/nanobot-ai/nanobot/pkg/providers"
)

// newAuthCmd creates the `nanobot auth` command group for OAuth-based
// provider login (Anthropic/OpenAI subscription credentials, plus the
// multi-account Antigravity/Gemini flow under `auth antigravity`).
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage OAuth credentials for LLM providers",
	}

	cmd.AddCommand(newAuthLoginCmd(), newAuthStatusCmd(), newAuthLogoutCmd(), newAuthAntigravityCmd())
	return cmd
}

// newAuthAntigravityCmd groups the multi-account Antigravity subcommands,
// which don't fit the single-credential login/status/logout shape above
// since a user may hold several Google accounts at once.
func newAuthAntigravityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "antigravity",
		Short: "Manage multi-account Antigravity (Gemini) credentials",
	}
	cmd.AddCommand(
		newAuthAntigravityLoginCmd(),
		newAuthAntigravityAccountsCmd(),
		newAuthAntigravitySwitchCmd(),
		newAuthAntigravityLogoutCmd(),
	)
	return cmd
}

func newAuthAntigravityLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize a Google account for the Antigravity backend via OAuth + PKCE",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := providers.NewAntigravityAuthManager()
			email, err := mgr.Login(cmd.Context(), nil)
			if err != nil {
				return fmt.Errorf("antigravity login failed: %w", err)
			}
			fmt.Printf("Logged in to antigravity as %s\n", email)
			return nil
		},
	}
}

func newAuthAntigravityAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List authenticated Antigravity accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := providers.NewAntigravityAuthManager()
			accounts := mgr.Accounts()
			if len(accounts) == 0 {
				fmt.Println("No antigravity accounts authenticated")
				return nil
			}
			active := mgr.Email()
			for _, email := range accounts {
				marker := " "
				if email == active {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, email)
			}
			return nil
		},
	}
}

func newAuthAntigravitySwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <email>",
		Short: "Switch the active Antigravity account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := providers.NewAntigravityAuthManager()
			if !mgr.Switch(args[0]) {
				return fmt.Errorf("no stored antigravity credentials for %s", args[0])
			}
			fmt.Printf("Switched active antigravity account to %s\n", args[0])
			return nil
		},
	}
}

func newAuthAntigravityLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout [email]",
		Short: "Remove stored Antigravity credentials (active account, one email, or \"*\" for all)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := ""
			if len(args) == 1 {
				email = args[0]
			}
			mgr := providers.NewAntigravityAuthManager()
			if err := mgr.Logout(email); err != nil {
				return fmt.Errorf("antigravity logout failed: %w", err)
			}
			fmt.Println("Logged out of antigravity")
			return nil
		},
	}
}

func newAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize nanobot against a provider (openai, anthropic)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			cred, err := auth.Login(cmd.Context(), provider, nil)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Printf("Logged in to %s as %s\n", provider, cred.AccountID)
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored credential status for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			cred, err := auth.GetCredential(provider)
			if err != nil {
				return fmt.Errorf("reading credential: %w", err)
			}
			if cred == nil {
				fmt.Printf("%s: not logged in\n", provider)
				return nil
			}
			status := "valid"
			if cred.IsExpired() {
				status = "expired"
			}
			fmt.Printf("%s: %s (account %s)\n", provider, status, cred.AccountID)
			return nil
		},
	}
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove a stored provider credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			if err := auth.RemoveCredential(provider); err != nil {
				return fmt.Errorf("removing credential: %w", err)
			}
			fmt.Printf("Logged out of %s\n", provider)
			return nil
		},
	}
}
