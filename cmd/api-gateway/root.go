package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/noah-isme/loan-query-api/api/swagger"
	"github.com/noah-isme/loan-query-api/pkg/config"
	"github.com/noah-isme/loan-query-api/pkg/logger"
)

// cliEnv is resolved once per command before it runs.
type cliEnv struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	rt := &cliEnv{}

	cmd := &cobra.Command{
		Use:           "api-gateway",
		Short:         "Loan query workflow API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			rt.cfg = cfg
			rt.logger = logr
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
	}

	cmd.AddCommand(newServeCommand(rt))
	cmd.AddCommand(newMigrateCommand(rt))
	cmd.AddCommand(newWorkflowsCommand(rt))

	return cmd
}
