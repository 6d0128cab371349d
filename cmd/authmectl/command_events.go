package main

import (
	"fmt"

	"github.com/authme/core/internal/store"
	"github.com/spf13/cobra"
)

func newEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect recorded login/admin events",
	}
	cmd.AddCommand(newEventsListCommand())
	return cmd
}

func newEventsListCommand() *cobra.Command {
	var realmName string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent events for a realm",
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

			events, err := store.NewEventRepo(pool).ListByRealm(ctx, realm.ID, limit)
			if err != nil {
				return fmt.Errorf("failed to list events: %w", err)
			}

			if len(events) == 0 {
				fmt.Println("no events")
				return nil
			}
			for _, e := range events {
				user := "-"
				if e.UserID != nil {
					user = e.UserID.String()
				}
				fmt.Printf("%s\t%s\tuser=%s\tclient=%s\tip=%s\n", e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), e.EventType, user, e.ClientID, e.IPAddress)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&realmName, "realm", "", "realm name (required)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events to print")
	cmd.MarkFlagRequired("realm")
	return cmd
}
