// Command authmectl is the operator CLI for tasks the core itself has
// no HTTP surface for: signing-key rotation, JWKS inspection, and
// offline-token revocation. The admin HTTP API and web UI are an
// external collaborator's concern; this binary is the interim operator
// tool that talks directly to the database.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var (
	databaseURL  string
	masterKeyHex string
)

func main() {
	root := &cobra.Command{
		Use:   "authmectl",
		Short: "Operator CLI for the authme identity provider",
	}

	root.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string (defaults to $DATABASE_URL)")
	root.PersistentFlags().StringVar(&masterKeyHex, "master-key-hex", os.Getenv("MASTER_KEY_HEX"), "hex-encoded AES-256 master key (defaults to $MASTER_KEY_HEX)")

	root.AddCommand(newRotateKeysCommand())
	root.AddCommand(newJWKSCommand())
	root.AddCommand(newOfflineTokensCommand())
	root.AddCommand(newEventsCommand())
	root.AddCommand(newClientsCommand())
	root.AddCommand(newUsersCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connectPool opens a short-lived pool for a single CLI invocation.
func connectPool(ctx context.Context) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("--database-url (or $DATABASE_URL) is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
