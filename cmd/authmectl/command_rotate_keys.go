package main

import (
	"fmt"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/authme/core/internal/token"
	"github.com/spf13/cobra"
)

func newRotateKeysCommand() *cobra.Command {
	var realmName string

	cmd := &cobra.Command{
		Use:   "rotate-keys",
		Short: "Mint a new active signing key for a realm",
		Long: `Generates a fresh RSA keypair and adds it as the realm's new active
signing key. The previous key stays active (and published in JWKS) so
tokens already issued under it keep verifying; retire it explicitly
with "authmectl jwks --deactivate <kid>" once you know every such token
has expired.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if masterKeyHex == "" {
				return fmt.Errorf("--master-key-hex (or $MASTER_KEY_HEX) is required")
			}
			masterKey, err := crypto.ParseMasterKey(masterKeyHex)
			if err != nil {
				return fmt.Errorf("invalid master key: %w", err)
			}

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

			keys := token.NewKeySet(store.NewSigningKeyRepo(pool), masterKey)
			created, err := keys.Rotate(ctx, realm.ID)
			if err != nil {
				return fmt.Errorf("failed to rotate signing key: %w", err)
			}

			fmt.Printf("rotated signing key for realm %q: kid=%s algorithm=%s\n", realmName, created.Kid, created.Algorithm)
			return nil
		},
	}

	cmd.Flags().StringVar(&realmName, "realm", "", "realm name to rotate keys for (required)")
	cmd.MarkFlagRequired("realm")

	return cmd
}
