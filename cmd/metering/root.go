package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/metering/pkg/cli"
	"mercator-hq/metering/pkg/config"
	"mercator-hq/metering/pkg/metering"
	"mercator-hq/metering/pkg/metering/actor"
	"mercator-hq/metering/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "metering",
	Short: "Usage metering and quota enforcement",
	Long: `Metering prices usage events, maintains per-actor monthly aggregates and
enforces subscription allowances.

Usage costs are normalized to integer micro-units with per-provider cost maps.
Aggregates live in a memory, SQLite, Redis or Postgres store selected in the
configuration file. Without --config the built-in defaults and METERING_*
environment variables are used.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json, yaml, csv)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	return cfg, nil
}

// commandLogger logs warnings and errors only, unless --verbose is set.
func commandLogger(cfg *config.Config) (*slog.Logger, error) {
	lc := logging.FromConfig(cfg.Telemetry.Logging)
	if verbose {
		lc.Level = "debug"
	} else if level, err := logging.ParseLevel(lc.Level); err != nil || level < slog.LevelWarn {
		lc.Level = "warn"
	}
	return logging.New(lc)
}

// openEngine builds an engine for a one-shot command.
func openEngine(ctx context.Context) (*metering.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := commandLogger(cfg)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return metering.New(ctx, metering.Options{Config: cfg, Logger: logger})
}

func printResult(cmd *cobra.Command, data any) error {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}

// actorFlags are shared by commands that address one actor.
type actorFlags struct {
	id   string
	kind string
}

func (f *actorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.id, "actor", "a", "", "actor id (required)")
	cmd.Flags().StringVar(&f.kind, "kind", string(actor.KindUser), "actor kind (user, temporary, platform)")
	_ = cmd.MarkFlagRequired("actor")
}

func (f *actorFlags) actor() (actor.Actor, error) {
	if f.id == actor.GlobalKey {
		return actor.Global, nil
	}
	kind, err := actor.ParseKind(f.kind)
	if err != nil {
		return actor.Actor{}, cli.NewConfigError("--kind", err.Error())
	}
	a := actor.Actor{ID: f.id, Kind: kind}
	if err := a.Validate(); err != nil {
		return actor.Actor{}, cli.NewConfigError("--actor", err.Error())
	}
	return a, nil
}
