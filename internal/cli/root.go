// Package cli implements the fabricviz command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"fabricviz/internal/config"
	"fabricviz/internal/observability"
)

var (
	version = "dev"
	commit  string
	date    string
)

// SetVersion records build information shown by --version
func SetVersion(v, c, d string) {
	if v != "" {
		version = v
	}
	commit = c
	date = d
}

type configKey struct{}

// NewRootCommand builds the command tree. The logger and the loaded config
// are attached to the command context before any subcommand runs.
func NewRootCommand() *cobra.Command {
	var (
		verbose    bool
		configPath string
	)

	root := &cobra.Command{
		Use:           "fabricviz",
		Short:         "Live force-directed view of a router fabric",
		Long:          `fabricviz consumes a stream of fabric snapshots, reconciles them into a stable topology, and keeps a warm-started force layout running over it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			level := observability.ParseLevel(cfg.Log.Level)
			if verbose {
				level = log.DebugLevel
			}
			logger := observability.NewLogger(os.Stderr, level)
			if path != "" {
				logger.Debug("loaded config", "path", path)
			}

			ctx := observability.WithLogger(cmd.Context(), logger)
			ctx = context.WithValue(ctx, configKey{}, cfg)
			cmd.SetContext(ctx)
			return nil
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("fabricviz %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: search "+config.EnvConfigPath+", ./"+config.ConfigFileName+", XDG)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// Execute runs the command tree with ctx
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func configFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

func loggerFromContext(ctx context.Context) *log.Logger {
	return observability.LoggerFromContext(ctx)
}
