// Package cli implements the avtomat command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/erazemk/avtomat/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DataDir string
	LogPath string
	Verbose bool

	// Config is resolved before any subcommand runs.
	Config *config.Config

	closeLog func()
}

// annotationLogLevel lets a command opt in to INFO logging. Other commands
// print results for a person and only log warnings unless verbose.
const annotationLogLevel = "log-level"

// NewRootCommand creates the root command for the avtomat CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "avtomat",
		Short:         "avtomat - vending kiosk inventory and sales",
		Long:          "Run a self-service vending kiosk: manage the product inventory, sell items and serve the kiosk API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.closeLog != nil {
				opts.closeLog()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.DataDir, "data-dir", "d", "", "data directory (default ~/.avtomat, env AVTOMAT_DATA_DIR)")
	cmd.PersistentFlags().StringVarP(&opts.LogPath, "log", "l", "", "also append logs to this file (env AVTOMAT_LOG)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewItemsCommand(opts))
	cmd.AddCommand(NewBuyCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewOperatorCommand(opts))

	return cmd
}

// init resolves configuration and logging. Flags override the environment.
func (o *RootOptions) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = o.DataDir
	}
	if flags.Changed("log") {
		cfg.LogPath = o.LogPath
	}
	if flags.Changed("verbose") {
		cfg.Verbose = o.Verbose
	}
	o.Config = cfg

	level := slog.LevelWarn
	if cmd.Annotations[annotationLogLevel] == "info" {
		level = slog.LevelInfo
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	closeLog, err := setupLogger(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.LogPath, level)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot set up logging", err)
	}
	o.closeLog = closeLog
	return nil
}
