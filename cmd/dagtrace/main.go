package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dagtrace/internal/config"
	"github.com/alfredjeanlab/dagtrace/internal/session"
	"github.com/alfredjeanlab/dagtrace/internal/source"
	"github.com/alfredjeanlab/dagtrace/internal/ui"
)

var (
	graphFlag  string
	traceFlag  string
	configPath string
	jsonOutput bool
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "dagtrace <command>",
	Short:         "Correlate pipeline graph traces into timelines and per-node views",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}

		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if graphFlag != "" {
			c.GraphURI = graphFlag
		}
		if traceFlag != "" {
			c.TraceURI = traceFlag
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&graphFlag, "graph", "g", "", "graph document (path or s3://bucket/key)")
	rootCmd.PersistentFlags().StringVarP(&traceFlag, "trace", "t", "", "trace document (path or s3://bucket/key)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $DAGTRACE_CONFIG or the user config dir)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log dropped events and debug detail to stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Views
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(sliceCmd)
	rootCmd.AddCommand(payloadCmd)
	rootCmd.AddCommand(aliasCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(diagnosticsCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

// openSources resolves the configured graph and trace locations.
func openSources(ctx context.Context) (graphSrc, traceSrc source.Source, err error) {
	if err := cfg.RequireDocuments(); err != nil {
		return nil, nil, err
	}
	opts := source.Options{Region: cfg.S3Region, Endpoint: cfg.S3Endpoint}
	if graphSrc, err = source.New(ctx, cfg.GraphURI, opts); err != nil {
		return nil, nil, fmt.Errorf("graph: %w", err)
	}
	if traceSrc, err = source.New(ctx, cfg.TraceURI, opts); err != nil {
		return nil, nil, fmt.Errorf("trace: %w", err)
	}
	return graphSrc, traceSrc, nil
}

// loadSession loads both documents once for a one-shot view command.
func loadSession(ctx context.Context) (*session.Session, error) {
	graphSrc, traceSrc, err := openSources(ctx)
	if err != nil {
		return nil, err
	}
	return session.Load(ctx, graphSrc, traceSrc, session.Options{
		Location: cfg.Location,
		Logger:   logger,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
