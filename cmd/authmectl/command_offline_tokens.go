package main

import (
	"fmt"

	"github.com/authme/core/internal/session"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newOfflineTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offline-tokens",
		Short: "List or revoke a user's offline (refresh) tokens",
	}

	cmd.AddCommand(newOfflineTokensListCommand())
	cmd.AddCommand(newOfflineTokensRevokeCommand())
	return cmd
}

func newOfflineTokensListCommand() *cobra.Command {
	var userIDStr string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's active offline tokens",
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

			refresher := session.NewRefresher(store.NewSessionRepo(pool))
			tokens, err := refresher.OfflineTokens(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to list offline tokens: %w", err)
			}

			if len(tokens) == 0 {
				fmt.Println("no offline tokens")
				return nil
			}
			for _, t := range tokens {
				fmt.Printf("%s\tclient=%s\tscopes=%v\texpires=%s\n", t.ID, t.ClientID, t.Scopes, t.ExpiresAt)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userIDStr, "user", "", "user ID (required)")
	cmd.MarkFlagRequired("user")
	return cmd
}

func newOfflineTokensRevokeCommand() *cobra.Command {
	var userIDStr, tokenIDStr string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke one of a user's offline tokens by ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(userIDStr)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			tokenID, err := uuid.Parse(tokenIDStr)
			if err != nil {
				return fmt.Errorf("invalid --token: %w", err)
			}

			ctx := cmd.Context()
			pool, err := connectPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			refresher := session.NewRefresher(store.NewSessionRepo(pool))
			if err := refresher.RevokeOfflineToken(ctx, userID, tokenID); err != nil {
				return fmt.Errorf("failed to revoke offline token: %w", err)
			}
			fmt.Printf("revoked offline token %s for user %s\n", tokenID, userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userIDStr, "user", "", "user ID (required)")
	cmd.Flags().StringVar(&tokenIDStr, "token", "", "offline token ID (required)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("token")
	return cmd
}
