// Package worker contains the queue consumer and the task runner driving
// one task through the pipeline stages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/notegen/internal/metrics"
	"github.com/raphaelgruber/notegen/internal/models"
	"github.com/raphaelgruber/notegen/internal/store"
)

// TaskStore persists task records. The runner is the only writer once a
// task leaves the queued state.
type TaskStore interface {
	Save(ctx context.Context, task *models.Task) error
	Load(ctx context.Context, id int64) (*models.Task, error)
}

// LinkResolver validates a public share link. A nil result means the link
// is unusable — a terminal pipeline failure, not a retryable condition.
type LinkResolver interface {
	Resolve(ctx context.Context, publicURL string) *models.LinkMetadata
}

// MediaProcessor downloads source media, extracts audio and uploads it.
type MediaProcessor interface {
	Download(ctx context.Context, fileURL string) (string, error)
	ExtractAudio(ctx context.Context, videoPath string) (string, error)
	UploadAudio(ctx context.Context, audioPath string, taskID int64) (string, error)
}

// Recognizer runs the two-phase asynchronous speech-to-text protocol.
type Recognizer interface {
	Submit(ctx context.Context, remoteURI string) (string, error)
	Await(ctx context.Context, operationID string) (string, error)
}

// Summarizer turns a transcript into summary text.
type Summarizer interface {
	Summarize(ctx context.Context, transcript, title string) (string, error)
}

// DocumentRenderer renders and persists the result document.
type DocumentRenderer interface {
	Render(summaryText, title string) (string, error)
	Persist(ctx context.Context, taskID int64, localPath string) (string, error)
}

// Runner drives one task identifier through the ordered pipeline stages,
// persisting the full task record before and after each transition. Stage
// side effects are idempotent overwrites, so re-running a task after a
// crash converges to the same terminal outcome.
type Runner struct {
	tasks     TaskStore
	links     LinkResolver
	media     MediaProcessor
	speech    Recognizer
	gpt       Summarizer
	docs      DocumentRenderer
	collector *metrics.Collector

	// recognizeTimeout bounds the recognition poll; 0 disables the deadline.
	recognizeTimeout time.Duration

	logger *slog.Logger
}

// NewRunner wires the pipeline stages together.
func NewRunner(
	tasks TaskStore,
	links LinkResolver,
	media MediaProcessor,
	speech Recognizer,
	gpt Summarizer,
	docs DocumentRenderer,
	collector *metrics.Collector,
	recognizeTimeout time.Duration,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		tasks:            tasks,
		links:            links,
		media:            media,
		speech:           speech,
		gpt:              gpt,
		docs:             docs,
		collector:        collector,
		recognizeTimeout: recognizeTimeout,
		logger:           logger,
	}
}

// Process runs the full pipeline for one task id. Any stage failure marks
// the task as errored and aborts the remaining stages; no error escapes to
// crash the consumer loop. If the record cannot even be loaded, the failure
// is only logged — there is nothing to write a status to.
func (r *Runner) Process(ctx context.Context, taskID int64) error {
	start := time.Now()
	err := r.process(ctx, taskID)
	r.collector.Record(metrics.OpTask, time.Since(start), err != nil)
	return err
}

func (r *Runner) process(ctx context.Context, taskID int64) error {
	task, err := r.tasks.Load(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Error("task record missing, nothing to process", "task_id", taskID)
		} else {
			r.logger.Error("loading task failed", "task_id", taskID, "error", err)
		}
		return err
	}

	// Terminal states are final; a redelivered message for a finished task
	// is dropped rather than reprocessed.
	if task.Terminal() {
		r.logger.Info("task already terminal, skipping", "task_id", taskID, "status", task.Status)
		return nil
	}

	task.Status = models.StatusProcessing
	if err := r.tasks.Save(ctx, task); err != nil {
		r.logger.Error("persisting processing status failed", "task_id", taskID, "error", err)
		return err
	}
	r.logger.Info("task processing", "task_id", taskID, "title", task.Title)

	var meta *models.LinkMetadata
	if err := r.collector.Observe(metrics.OpValidate, func() error {
		meta = r.links.Resolve(ctx, task.SourceURL)
		if meta == nil || meta.File == "" {
			return fmt.Errorf("Invalid share link")
		}
		return nil
	}); err != nil {
		return r.failTask(ctx, task, err)
	}
	task.Metadata = meta

	var videoPath string
	if err := r.collector.Observe(metrics.OpDownload, func() (err error) {
		videoPath, err = r.media.Download(ctx, meta.File)
		return err
	}); err != nil {
		return r.failTask(ctx, task, err)
	}

	var audioPath string
	if err := r.collector.Observe(metrics.OpTranscode, func() (err error) {
		audioPath, err = r.media.ExtractAudio(ctx, videoPath)
		return err
	}); err != nil {
		return r.failTask(ctx, task, err)
	}

	audioURI, err := r.media.UploadAudio(ctx, audioPath, task.ID)
	if err != nil {
		return r.failTask(ctx, task, err)
	}

	var transcript string
	if err := r.collector.Observe(metrics.OpRecognize, func() error {
		operationID, err := r.speech.Submit(ctx, audioURI)
		if err != nil {
			return err
		}

		awaitCtx := ctx
		if r.recognizeTimeout > 0 {
			var cancel context.CancelFunc
			awaitCtx, cancel = context.WithTimeout(ctx, r.recognizeTimeout)
			defer cancel()
		}
		transcript, err = r.speech.Await(awaitCtx, operationID)
		return err
	}); err != nil {
		return r.failTask(ctx, task, err)
	}

	r.logger.Info("transcript assembled", "task_id", task.ID, "chars", len(transcript))
	if strings.TrimSpace(transcript) == "" {
		// Known edge case: summarization proceeds on empty input.
		r.logger.Warn("recognition returned empty transcript", "task_id", task.ID)
	}

	var summary string
	if err := r.collector.Observe(metrics.OpSummarize, func() (err error) {
		summary, err = r.gpt.Summarize(ctx, transcript, task.Title)
		return err
	}); err != nil {
		return r.failTask(ctx, task, err)
	}

	var pdfPath string
	if err := r.collector.Observe(metrics.OpRender, func() (err error) {
		pdfPath, err = r.docs.Render(summary, task.Title)
		return err
	}); err != nil {
		return r.failTask(ctx, task, err)
	}

	var documentURL string
	if err := r.collector.Observe(metrics.OpPersist, func() (err error) {
		documentURL, err = r.docs.Persist(ctx, task.ID, pdfPath)
		return err
	}); err != nil {
		return r.failTask(ctx, task, err)
	}

	task.ResultDocumentURL = documentURL
	task.Status = models.StatusCompleted
	if err := r.tasks.Save(ctx, task); err != nil {
		return r.failTask(ctx, task, fmt.Errorf("persist completed status: %w", err))
	}

	r.logger.Info("task completed", "task_id", task.ID, "document_url", documentURL)
	return nil
}

// failTask transitions the task to its terminal error state with a message
// embedding the task id and the triggering stage's error text. A failure to
// persist the terminal state is only logged — the task then stays in
// processing until manually reconciled.
func (r *Runner) failTask(ctx context.Context, task *models.Task, stageErr error) error {
	task.Status = models.StatusError
	task.ResultDocumentURL = ""
	task.ErrorMessage = fmt.Sprintf("Task ID %d: %s", task.ID, stageErr)

	if err := r.tasks.Save(ctx, task); err != nil {
		r.logger.Error("persisting error status failed",
			"task_id", task.ID, "stage_error", stageErr, "error", err)
	}

	r.logger.Error("task failed", "task_id", task.ID, "error", stageErr)
	return stageErr
}
