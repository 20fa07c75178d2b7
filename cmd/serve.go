package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"news-radar/worker"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the refresh, sweep and digest workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ws := []worker.Worker{
			&worker.Refresher{Pipeline: a.pipeline, Interval: cfg.Refresh.Interval},
			&worker.Sweeper{Cleaners: a.cleaners(), Interval: cfg.Cache.SweepInterval},
		}
		if cfg.Digest.Interval > 0 {
			ws = append(ws, &worker.DigestWriter{
				Source:    a.pipeline,
				OutputDir: cfg.Digest.OutputDir,
				Title:     cfg.Digest.Title,
				Preface:   cfg.Digest.Preface,
				Interval:  cfg.Digest.Interval,
			})
		}
		mgr := worker.NewManager(ws...)

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			select {
			case s := <-sigc:
				slog.Info("serve: received signal, shutting down", "signal", s.String())
				cancel()
			case <-ctx.Done():
			}
		}()

		slog.Info("serve: starting workers", "workers", len(ws), "refresh_interval", cfg.Refresh.Interval, "owner", a.pipeline.Scheduler.Owner())
		return mgr.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
