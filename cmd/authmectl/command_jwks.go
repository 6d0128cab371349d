package main

import (
	"fmt"
	"os"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/authme/core/internal/token"
	"github.com/spf13/cobra"
)

func newJWKSCommand() *cobra.Command {
	var realmName, deactivateKid string

	cmd := &cobra.Command{
		Use:   "jwks",
		Short: "Dump a realm's JWK Set, or retire one key from it",
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

			signingKeyRepo := store.NewSigningKeyRepo(pool)

			if deactivateKid != "" {
				key, err := signingKeyRepo.GetByKid(ctx, realm.ID, deactivateKid)
				if err != nil {
					return fmt.Errorf("failed to find kid %q: %w", deactivateKid, err)
				}
				if err := signingKeyRepo.Deactivate(ctx, key.ID); err != nil {
					return fmt.Errorf("failed to deactivate kid %q: %w", deactivateKid, err)
				}
				fmt.Printf("deactivated kid=%s for realm %q\n", deactivateKid, realmName)
				return nil
			}

			var masterKey crypto.MasterKey // zero key: JWKS publishes only public material, no decryption needed
			keys := token.NewKeySet(signingKeyRepo, masterKey)
			body, err := keys.JWKS(ctx, realm.ID)
			if err != nil {
				return fmt.Errorf("failed to build JWKS: %w", err)
			}
			_, err = os.Stdout.Write(append(body, '\n'))
			return err
		},
	}

	cmd.Flags().StringVar(&realmName, "realm", "", "realm name (required)")
	cmd.Flags().StringVar(&deactivateKid, "deactivate", "", "kid to retire instead of dumping the JWK Set")
	cmd.MarkFlagRequired("realm")

	return cmd
}
