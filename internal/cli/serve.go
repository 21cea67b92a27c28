package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/notegen/internal/disk"
	"github.com/raphaelgruber/notegen/internal/ident"
	"github.com/raphaelgruber/notegen/internal/metrics"
	"github.com/raphaelgruber/notegen/internal/queue"
	"github.com/raphaelgruber/notegen/internal/server"
	"github.com/raphaelgruber/notegen/internal/storage"
	"github.com/raphaelgruber/notegen/internal/store"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the task submission server",
	Long: `Serve the submission form and task list over HTTP. Accepted tasks
are persisted in object storage and enqueued for the worker.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	objects, err := storage.NewS3Store(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}

	q, err := queue.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init queue: %w", err)
	}

	srv, err := server.New(
		store.New(objects, logger),
		q,
		disk.NewValidator(cfg.DiskAPIURL, logger),
		ident.New(),
		metrics.NewCollector(),
		logger,
	)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("server shutting down")
	return httpServer.Shutdown(shutdownCtx)
}
