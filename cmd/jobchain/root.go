package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/internal/manifest"
)

const defaultEnvFile = ".env"

// globals holds the persistent flags and the state PersistentPreRunE derives
// from them.
type globals struct {
	file     string
	envFile  string
	logLevel string

	cfg    jobchain.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "jobchain",
		Short:         "Run atomic job chains declared in a manifest",
		Long:          "jobchain validates chain manifests, describes the chains they declare, runs the chains listening to an event and serves them behind an HTTP API with cron schedules.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.init(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&g.file, "file", "f", "chains.yaml", "Chain manifest path")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", defaultEnvFile, "Dotenv file with JOBCHAIN_* settings")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	registerValidateCommand(root, g)
	registerDescribeCommand(root, g)
	registerRunCommand(root, g)
	registerServeCommand(root, g)
	return root
}

// init loads the dotenv file, parses JOBCHAIN_* variables over the defaults
// and builds the logger.
func (g *globals) init(cmd *cobra.Command) error {
	if err := godotenv.Load(g.envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
			return fmt.Errorf("load %s: %w", g.envFile, err)
		}
	}

	g.cfg = jobchain.DefaultConfig()
	g.cfg.EnqueueByDefault = true
	if err := env.ParseWithOptions(&g.cfg, env.Options{Prefix: "JOBCHAIN_"}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", g.logLevel, err)
	}
	g.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

func (g *globals) manifest() (*manifest.Manifest, error) {
	m, err := manifest.LoadFile(g.file)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	return m, nil
}
