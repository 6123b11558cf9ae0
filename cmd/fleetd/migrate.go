package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/fleet/pkg/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending durable-store migrations and exit",
	Long: `Runs every embedded migration in pkg/storage/migrations against
the configured database and exits. Safe to run repeatedly: already
applied migrations are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataPath, _ := cmd.Flags().GetString("data-path")

		ctx := context.Background()

		db, err := storage.New(storage.Config{Path: dataPath})
		if err != nil {
			return fmt.Errorf("construct store: %w", err)
		}
		if err := db.Init(ctx); err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		fmt.Printf("Applying migrations to %s\n", dataPath)
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		fmt.Println("Migrations applied successfully")
		return nil
	},
}

func init() {
	migrateCmd.Flags().String("data-path", "./fleetd-data/fleet.db", "Path to the sqlite database file")
}
