package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/notegen/internal/disk"
	"github.com/raphaelgruber/notegen/internal/document"
	"github.com/raphaelgruber/notegen/internal/gpt"
	"github.com/raphaelgruber/notegen/internal/media"
	"github.com/raphaelgruber/notegen/internal/metrics"
	"github.com/raphaelgruber/notegen/internal/queue"
	"github.com/raphaelgruber/notegen/internal/speech"
	"github.com/raphaelgruber/notegen/internal/storage"
	"github.com/raphaelgruber/notegen/internal/store"
	"github.com/raphaelgruber/notegen/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the task processing worker",
	Long: `Consume task identifiers from the queue and drive each task through
the processing pipeline until the queue consumer is interrupted.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	tasks := store.New(objects, logger)
	collector := metrics.NewCollector()

	// Stage timings are served over a side listener so a running worker's
	// pipeline statistics can be inspected.
	statsServer := &http.Server{Addr: cfg.StatsAddr, Handler: metrics.Handler(collector)}
	go func() {
		logger.Info("stats listening", "addr", cfg.StatsAddr)
		if err := statsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("stats listener failed", "error", err)
		}
	}()
	defer statsServer.Close()

	runner := worker.NewRunner(
		tasks,
		disk.NewValidator(cfg.DiskAPIURL, logger),
		media.NewProcessor(objects, cfg.ScratchDir, logger),
		speech.NewClient(cfg.RecognizeURL, cfg.OperationAPIBase, cfg.APIKey, cfg.PollInterval, logger),
		gpt.NewClient(cfg.GPTAPIURL, cfg.APIKey, cfg.FolderID, cfg.GPTModelURI, logger),
		document.NewRenderer(objects, cfg.ScratchDir, cfg.PDFFontName, cfg.PDFFontPath, logger),
		collector,
		cfg.RecognizeTimeout,
		logger,
	)

	logger.Info("worker started", "queue", cfg.QueueURL, "bucket", cfg.Bucket)

	err = worker.NewConsumer(q, runner, logger).Run(ctx)
	if ctx.Err() != nil {
		logger.Info("worker stopped")
		return nil
	}
	return err
}
