package main

import (
	"fmt"

	"github.com/authme/core/internal/mfa"
	"github.com/authme/core/internal/session"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Operator actions against a single user account",
	}
	cmd.AddCommand(newUsersEndSessionsCommand())
	cmd.AddCommand(newUsersRegenerateRecoveryCodesCommand())
	return cmd
}

func newUsersEndSessionsCommand() *cobra.Command {
	var userIDStr string

	cmd := &cobra.Command{
		Use:   "end-sessions",
		Short: "Revoke every SSO session (and every refresh token bound to them) for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(userIDStr)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}

			ctx := cmd.Context()
			pool, err := connectPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			sessions := session.NewStore(store.NewSessionRepo(pool))
			if err := sessions.EndAllUserSessions(ctx, userID); err != nil {
				return fmt.Errorf("failed to end sessions: %w", err)
			}
			fmt.Printf("ended all sessions for user %s\n", userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userIDStr, "user", "", "user ID (required)")
	cmd.MarkFlagRequired("user")
	return cmd
}

func newUsersRegenerateRecoveryCodesCommand() *cobra.Command {
	var userIDStr string

	cmd := &cobra.Command{
		Use:   "regenerate-recovery-codes",
		Short: "Invalidate a user's MFA recovery codes and issue a fresh set",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(userIDStr)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}

			ctx := cmd.Context()
			pool, err := connectPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			codes, err := mfa.NewRecoveryCodes(store.NewCredentialRepo(pool)).Regenerate(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to regenerate recovery codes: %w", err)
			}

			fmt.Println("new recovery codes (store these now, they cannot be retrieved again):")
			for _, c := range codes {
				fmt.Println(c)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userIDStr, "user", "", "user ID (required)")
	cmd.MarkFlagRequired("user")
	return cmd
}
