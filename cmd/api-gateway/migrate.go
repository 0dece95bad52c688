package main

import (
	"github.com/spf13/cobra"

	"github.com/noah-isme/loan-query-api/pkg/database"
)

func newMigrateCommand(rt *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	run := func(apply func(rt *cliEnv) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return apply(rt)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: run(func(rt *cliEnv) error {
			db, err := database.NewPostgres(rt.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.MigrateUp(db.DB); err != nil {
				return err
			}
			rt.logger.Info("migrations applied")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: run(func(rt *cliEnv) error {
			db, err := database.NewPostgres(rt.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.MigrateDown(db.DB); err != nil {
				return err
			}
			rt.logger.Info("migration rolled back")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print migration status",
		RunE: run(func(rt *cliEnv) error {
			db, err := database.NewPostgres(rt.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			return database.MigrateStatus(db.DB)
		}),
	})

	return cmd
}
