package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwbudde/lahc/internal/server"
	"github.com/cwbudde/lahc/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddr      string
	serveDataDir   string
	serveNoStore   bool
	serveGraceTime time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job server",
	Long: `Starts an HTTP server that runs search jobs in the background.

  POST /api/v1/jobs                 submit a job
  GET  /api/v1/jobs[/{id}]          list jobs or show one
  POST /api/v1/jobs/{id}/cancel     interrupt a job
  GET  /api/v1/jobs/{id}/stream     server-sent progress events
  GET  /api/v1/jobs/{id}/best       best state as JSON
  GET  /api/v1/jobs/{id}/trace      progress trace
  GET  /api/v1/problems             registered problems
  GET  /api/v1/checkpoints          stored checkpoints
  GET  /metrics                     Prometheus metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Base directory for checkpoints and traces")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false, "Disable checkpoints and traces")
	serveCmd.Flags().DurationVar(&serveGraceTime, "grace", 30*time.Second, "Shutdown grace period")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var st *store.FSStore
	if !serveNoStore {
		var err error
		if st, err = store.NewFSStore(serveDataDir); err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
	}

	srv := server.NewServer(serveAddr, st)

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveGraceTime)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
