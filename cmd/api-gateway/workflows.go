package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-query-api/internal/repository"
	"github.com/noah-isme/loan-query-api/internal/service"
	"github.com/noah-isme/loan-query-api/pkg/database"
)

func newWorkflowsCommand(rt *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Manage approval workflow rules",
	}

	var file string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Upsert workflow rules from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = rt.cfg.Workflows.SeedFile
			}
			db, err := database.NewPostgres(rt.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			workflows := service.NewWorkflowService(repository.NewWorkflowRepository(db), nil, rt.logger)
			n, err := workflows.Seed(cmd.Context(), file)
			if err != nil {
				return err
			}
			rt.logger.Info("workflow rules seeded", zap.String("file", file), zap.Int("count", n))
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d workflow rules from %s\n", n, file)
			return nil
		},
	}
	seed.Flags().StringVarP(&file, "file", "f", "", "rule file (defaults to WORKFLOWS_SEED_FILE)")
	cmd.AddCommand(seed)

	return cmd
}
