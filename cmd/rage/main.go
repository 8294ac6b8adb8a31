package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pevans/rageplaylists/config"
	"github.com/pevans/rageplaylists/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options holds the persistent flags shared by every command.
type options struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "rage",
		Short:         "Archive rage playlists",
		Long:          "Discover, store and serve playlists from the rage playlist archive.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is ~/.rage/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newDiscoverCmd(opts),
		newResolveCmd(),
		newSeedCmd(opts),
		newServeCmd(opts),
	)

	return root
}

// load reads configuration and builds the logger, applying flag overrides.
func (o *options) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return cfg, logger, nil
}
