package main

import (
	"fmt"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/spf13/cobra"
)

func newClientsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage registered OAuth clients",
	}
	cmd.AddCommand(newClientsRotateSecretCommand())
	return cmd
}

func newClientsRotateSecretCommand() *cobra.Command {
	var realmName, clientID string

	cmd := &cobra.Command{
		Use:   "rotate-secret",
		Short: "Mint and store a new secret for a confidential client",
		Long: `Generates a new client secret, hashes it the same way the token
endpoint verifies it, and stores only the hash. The plaintext secret is
printed once and is not recoverable afterward.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := connectPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			realmRepo := store.NewRealmRepo(pool)
			realm, err := realmRepo.GetByName(ctx, realmName)
			if err != nil {
				return fmt.Errorf("failed to load realm %q: %w", realmName, err)
			}

			clientRepo := store.NewClientRepo(pool)
			client, err := clientRepo.GetByClientID(ctx, realm.ID, clientID)
			if err != nil {
				return fmt.Errorf("failed to load client %q: %w", clientID, err)
			}

			secret, err := crypto.GenerateSecureToken(32)
			if err != nil {
				return fmt.Errorf("failed to generate client secret: %w", err)
			}
			hash, err := crypto.NewArgon2idHasher().Hash(secret)
			if err != nil {
				return fmt.Errorf("failed to hash client secret: %w", err)
			}

			if err := clientRepo.RotateSecret(ctx, realm.ID, client.ID, hash); err != nil {
				return fmt.Errorf("failed to rotate client secret: %w", err)
			}

			fmt.Printf("rotated secret for client %q in realm %q\nnew secret (store this now, it cannot be retrieved again): %s\n", clientID, realmName, secret)
			return nil
		},
	}

	cmd.Flags().StringVar(&realmName, "realm", "", "realm name (required)")
	cmd.Flags().StringVar(&clientID, "client", "", "client_id to rotate (required)")
	cmd.MarkFlagRequired("realm")
	cmd.MarkFlagRequired("client")
	return cmd
}
