package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pevans/rageplaylists/api"
	"github.com/pevans/rageplaylists/archive"
	"github.com/pevans/rageplaylists/config"
	"github.com/pevans/rageplaylists/dates"
	"github.com/pevans/rageplaylists/discovery"
	"github.com/pevans/rageplaylists/index"
	"github.com/pevans/rageplaylists/metrics"
	"github.com/pevans/rageplaylists/playlists"
	"github.com/pevans/rageplaylists/videos"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDiscoverCmd(opts *options) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find playlists missing from the index and archive them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			m := metrics.New(prometheus.NewRegistry())

			fetcher := discovery.NewHTTPFetcher(cfg.Fetch, logger)
			extractor, err := archive.NewExtractor(cfg.Archive.Listing, cfg.Archive.BaseURL)
			if err != nil {
				return err
			}
			reconciler := discovery.NewReconciler(fetcher, extractor,
				&discovery.ReconcilerConfig{MaxMonths: cfg.Archive.MaxMonths}, m, logger)

			lookup, closeLookup, err := openVideoLookup(cfg, m, logger)
			if err != nil {
				return err
			}
			defer closeLookup()

			store := playlists.NewStore(cfg.DataDir, &playlists.StoreConfig{Metrics: m})
			archiver := discovery.NewArchiver(reconciler, fetcher, store, lookup, discovery.ArchiverConfig{
				IndexPath:        cfg.IndexPath,
				Playlist:         cfg.Archive.Playlist,
				DryRun:           dryRun,
				VideoConcurrency: cfg.Videos.Concurrency,
			}, logger)

			result, runErr := archiver.Run(cmd.Context())
			if result != nil {
				if err := printJSON(cmd, result); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report missing playlists without writing anything")

	return cmd
}

func newResolveCmd() *cobra.Command {
	var refFlag string

	cmd := &cobra.Command{
		Use:   "resolve <caption>",
		Short: "Resolve a listing caption to a calendar date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := dates.FromTime(time.Now())
			if refFlag != "" {
				parsed, err := dates.Parse(refFlag)
				if err != nil {
					return fmt.Errorf("invalid --ref: %w", err)
				}
				ref = parsed
			}

			date, err := dates.Resolve(args[0], ref)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), date.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&refFlag, "ref", "", "reference date (YYYY-MM-DD) supplying a missing year; defaults to today")

	return cmd
}

func newSeedCmd(opts *options) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "seed <url> <caption>",
		Short: "Create the index with a starting playlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}

			if _, err := os.Stat(cfg.IndexPath); err == nil {
				return fmt.Errorf("index already exists at %s", cfg.IndexPath)
			}

			seedURL, err := archive.NormalizeURL(args[0])
			if err != nil {
				return err
			}

			entry := archive.Entry{URL: seedURL, Caption: args[1]}
			if date != "" {
				entry.Date, err = dates.Parse(date)
			} else {
				entry.Date, err = dates.Resolve(entry.Caption, dates.Date{})
			}
			if err != nil {
				return fmt.Errorf("failed to date seed entry: %w", err)
			}

			idx := index.New(cfg.IndexPath)
			idx.Append(entry)
			if err := idx.Save(cfg.IndexPath); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s starting at %s\n", cfg.IndexPath, entry.Date)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "date of the entry (YYYY-MM-DD) when the caption has no year")

	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the archive over a read-only HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.New(registry)

			lookup, closeLookup, err := openVideoLookup(cfg, m, logger)
			if err != nil {
				return err
			}
			defer closeLookup()

			store := playlists.NewStore(cfg.DataDir, &playlists.StoreConfig{Metrics: m})
			server := api.NewServer(cfg.IndexPath, store, lookup, registry, logger)

			httpServer := &http.Server{
				Addr:              cfg.API.Addr,
				Handler:           server.SetupRouter(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting API server", zap.String("addr", cfg.API.Addr))
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			logger.Info("shutting down API server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
}

// openVideoLookup returns the configured video lookup, or nil when videos
// are disabled. The returned close function is always safe to call.
func openVideoLookup(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (videos.Lookup, func(), error) {
	if !cfg.Videos.Enabled {
		return nil, func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Videos.CachePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create video cache directory: %w", err)
	}
	cache, err := videos.NewCache(cfg.Videos.CachePath)
	if err != nil {
		return nil, nil, err
	}

	searcher := videos.NewYouTubeSearcher(cfg.Videos.APIKey, cfg.Videos.BaseURL, cfg.Videos.MaxResults)
	lookup := videos.NewCachedLookup(searcher, cache, m, logger)

	return lookup, func() {
		if err := cache.Close(); err != nil {
			logger.Warn("failed to close video cache", zap.Error(err))
		}
	}, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
