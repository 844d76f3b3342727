package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/taskprogress/internal/config"
	"github.com/JakeFAU/taskprogress/internal/logging"
	"github.com/JakeFAU/taskprogress/internal/pipeline"
	"github.com/JakeFAU/taskprogress/internal/server"
)

// cliState carries what PersistentPreRunE prepared for the subcommands.
type cliState struct {
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rt := &cliState{}
	cmd := &cobra.Command{
		Use:           "progressd",
		Short:         "Hierarchical task progress tracking daemon.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(rt.cfgFile)
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)
			rt.cfg = cfg
			rt.logger = logger
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&rt.cfgFile, "config", "", "path to config file")
	cmd.AddCommand(newRunCmd(rt), newServeCmd(rt))
	return cmd
}

func newRunCmd(rt *cliState) *cobra.Command {
	var (
		name  string
		units int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one build in the foreground and print its summary.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := server.Build(ctx, rt.cfg, rt.logger, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			res, runErr := app.RunBuild(ctx, pipeline.Request{Name: name, Units: units})
			if closeErr := app.Close(context.WithoutCancel(ctx)); closeErr != nil && runErr == nil {
				runErr = closeErr
			}
			if runErr != nil {
				return runErr
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "build", "build name shown on the outer task")
	cmd.Flags().IntVar(&units, "units", 0, "compile units (0 uses pipeline.units)")
	return cmd
}

func newServeCmd(rt *cliState) *cobra.Command {
	var bar bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run queued builds until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			barOut := cmd.ErrOrStderr()
			if !bar {
				barOut = nil
			}
			app, err := server.Build(ctx, rt.cfg, rt.logger, barOut)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			return app.Serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&bar, "bar", false, "render the primary progress bar on stderr")
	return cmd
}
