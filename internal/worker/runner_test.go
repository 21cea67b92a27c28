package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/notegen/internal/media"
	"github.com/raphaelgruber/notegen/internal/metrics"
	"github.com/raphaelgruber/notegen/internal/models"
	"github.com/raphaelgruber/notegen/internal/speech"
	"github.com/raphaelgruber/notegen/internal/storage"
	"github.com/raphaelgruber/notegen/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeResolver struct {
	meta  *models.LinkMetadata
	calls int
}

func (f *fakeResolver) Resolve(context.Context, string) *models.LinkMetadata {
	f.calls++
	return f.meta
}

type fakeMedia struct {
	downloadErr  error
	extractErr   error
	uploadErr    error
	downloads    int
	extracts     int
	uploads      int
	lastUploadID int64
}

func (f *fakeMedia) Download(context.Context, string) (string, error) {
	f.downloads++
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	return "/tmp/video_test.mp4", nil
}

func (f *fakeMedia) ExtractAudio(context.Context, string) (string, error) {
	f.extracts++
	if f.extractErr != nil {
		return "", f.extractErr
	}
	return "/tmp/video_test.ogg", nil
}

func (f *fakeMedia) UploadAudio(_ context.Context, _ string, taskID int64) (string, error) {
	f.uploads++
	f.lastUploadID = taskID
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return fmt.Sprintf("https://bucket.example/tmp/audio_%d.ogg", taskID), nil
}

type fakeSpeech struct {
	transcript string
	submitErr  error
	awaitErr   error
	submits    int
	blockPoll  bool // simulate a stuck remote operation
}

func (f *fakeSpeech) Submit(context.Context, string) (string, error) {
	f.submits++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "op-1", nil
}

func (f *fakeSpeech) Await(ctx context.Context, _ string) (string, error) {
	if f.blockPoll {
		<-ctx.Done()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: operation op-1", speech.ErrPollTimeout)
		}
		return "", ctx.Err()
	}
	if f.awaitErr != nil {
		return "", f.awaitErr
	}
	return f.transcript, nil
}

type fakeGPT struct {
	summary        string
	err            error
	lastTranscript string
	calls          int
}

func (f *fakeGPT) Summarize(_ context.Context, transcript, _ string) (string, error) {
	f.calls++
	f.lastTranscript = transcript
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

type fakeDocs struct {
	renderErr  error
	persistErr error
	renders    int
	persists   int
}

func (f *fakeDocs) Render(string, string) (string, error) {
	f.renders++
	if f.renderErr != nil {
		return "", f.renderErr
	}
	return "/tmp/summary.pdf", nil
}

func (f *fakeDocs) Persist(_ context.Context, taskID int64, _ string) (string, error) {
	f.persists++
	if f.persistErr != nil {
		return "", f.persistErr
	}
	return fmt.Sprintf("https://signed.example/tasks/task_%d.pdf?expires=3600", taskID), nil
}

type deps struct {
	tasks  *store.Store
	links  *fakeResolver
	media  *fakeMedia
	speech *fakeSpeech
	gpt    *fakeGPT
	docs   *fakeDocs
}

func happyDeps() *deps {
	return &deps{
		tasks:  store.New(storage.NewMemory(), discardLogger()),
		links:  &fakeResolver{meta: &models.LinkMetadata{Name: "lec.mp4", File: "https://dl.example/f.mp4"}},
		media:  &fakeMedia{},
		speech: &fakeSpeech{transcript: "recognized lecture text"},
		gpt:    &fakeGPT{summary: "summary text"},
		docs:   &fakeDocs{},
	}
}

func newRunner(d *deps, recognizeTimeout time.Duration) *Runner {
	return NewRunner(d.tasks, d.links, d.media, d.speech, d.gpt, d.docs,
		metrics.NewCollector(), recognizeTimeout, discardLogger())
}

func seedTask(t *testing.T, d *deps, id int64) {
	t.Helper()
	require.NoError(t, d.tasks.Save(context.Background(), &models.Task{
		ID:        id,
		Title:     "Graph Theory",
		CreatedAt: "2024-03-01 12:00:00",
		Status:    models.StatusQueued,
		SourceURL: "https://disk.example/d/abc",
	}))
}

func TestProcessSuccess(t *testing.T) {
	ctx := context.Background()
	d := happyDeps()
	seedTask(t, d, 42)

	require.NoError(t, newRunner(d, 0).Process(ctx, 42))

	got, err := d.tasks.Load(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, "https://signed.example/tasks/task_42.pdf?expires=3600", got.ResultDocumentURL)
	assert.Empty(t, got.ErrorMessage)
	assert.Equal(t, int64(42), d.media.lastUploadID)
	assert.NotNil(t, got.Metadata)
}

func TestProcessInvalidLink(t *testing.T) {
	ctx := context.Background()
	d := happyDeps()
	d.links.meta = &models.LinkMetadata{Name: "folder", Type: "dir"} // no file reference
	seedTask(t, d, 5)

	err := newRunner(d, 0).Process(ctx, 5)
	require.Error(t, err)

	got, loadErr := d.tasks.Load(ctx, 5)
	require.NoError(t, loadErr)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "Invalid")
	assert.Contains(t, got.ErrorMessage, "Task ID 5")
	assert.Empty(t, got.ResultDocumentURL)
	assert.Zero(t, d.media.downloads, "no download may be attempted after an invalid link")
}

func TestProcessNilMetadata(t *testing.T) {
	ctx := context.Background()
	d := happyDeps()
	d.links.meta = nil
	seedTask(t, d, 6)

	require.Error(t, newRunner(d, 0).Process(ctx, 6))

	got, err := d.tasks.Load(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Zero(t, d.media.downloads)
}

func TestProcessZeroDurationAudio(t *testing.T) {
	ctx := context.Background()
	d := happyDeps()
	d.media.extractErr = fmt.Errorf("%w: audio file has zero duration: /tmp/v.ogg", media.ErrTranscode)
	seedTask(t, d, 7)

	require.Error(t, newRunner(d, 0).Process(ctx, 7))

	got, err := d.tasks.Load(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "zero duration")
	assert.Zero(t, d.media.uploads, "no upload after failed transcode")
	assert.Zero(t, d.speech.submits, "no recognition after failed transcode")
}

func TestProcessEmptyTranscriptContinues(t *testing.T) {
	ctx := context.Background()
	d := happyDeps()
	d.speech.transcript = ""
	seedTask(t, d, 8)

	require.NoError(t, newRunner(d, 0).Process(ctx, 8))

	got, err := d.tasks.Load(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 1, d.gpt.calls, "summarization must proceed on empty input")
	assert.Equal(t, "", d.gpt.lastTranscript)
}

func TestProcessRecognitionDeadline(t *testing.T) {
	ctx := context.Background()
	d := happyDeps()
	d.speech.blockPoll = true
	seedTask(t, d, 9)

	err := newRunner(d, 20*time.Millisecond).Process(ctx, 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, speech.ErrPollTimeout))

	got, loadErr := d.tasks.Load(ctx, 9)
	require.NoError(t, loadErr)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "Task ID 9")
	assert.Zero(t, d.gpt.calls)
}

func TestProcessSummarizationFailure(t *testing.T) {
	ctx := context.Background()
	d := happyDeps()
	d.gpt.err = errors.New("summarization failed: status 503")
	seedTask(t, d, 10)

	require.Error(t, newRunner(d, 0).Process(ctx, 10))

	got, err := d.tasks.Load(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Zero(t, d.docs.renders)
}

func TestProcessMissingRecord(t *testing.T) {
	d := happyDeps()

	err := newRunner(d, 0).Process(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.Zero(t, d.links.calls, "no stage may run without a task record")
}

func TestProcessDuplicateDeliveryConverges(t *testing.T) {
	ctx := context.Background()
	d := happyDeps()
	seedTask(t, d, 11)
	r := newRunner(d, 0)

	require.NoError(t, r.Process(ctx, 11))
	first, err := d.tasks.Load(ctx, 11)
	require.NoError(t, err)

	// Simulated duplicate delivery of the same task id.
	require.NoError(t, r.Process(ctx, 11))
	second, err := d.tasks.Load(ctx, 11)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, second.Status)
	assert.Equal(t, first.ResultDocumentURL, second.ResultDocumentURL)
	assert.Equal(t, 1, d.docs.persists, "terminal task must not be reprocessed")
}

// terminalWriteBlockedStore simulates a store outage that begins right when
// the runner tries to persist the terminal error state.
type terminalWriteBlockedStore struct {
	inner *store.Store
}

func (s *terminalWriteBlockedStore) Save(ctx context.Context, task *models.Task) error {
	if task.Status == models.StatusError {
		return errors.New("store unavailable")
	}
	return s.inner.Save(ctx, task)
}

func (s *terminalWriteBlockedStore) Load(ctx context.Context, id int64) (*models.Task, error) {
	return s.inner.Load(ctx, id)
}

func TestProcessErrorStatusWriteFailureLeavesProcessing(t *testing.T) {
	ctx := context.Background()
	d := happyDeps()
	d.media.downloadErr = fmt.Errorf("%w: unexpected status 410", media.ErrDownload)
	seedTask(t, d, 13)

	blocked := &terminalWriteBlockedStore{inner: d.tasks}
	r := NewRunner(blocked, d.links, d.media, d.speech, d.gpt, d.docs,
		metrics.NewCollector(), 0, discardLogger())

	err := r.Process(ctx, 13)
	require.Error(t, err)
	assert.True(t, errors.Is(err, media.ErrDownload), "the stage error surfaces, not the persistence error")

	// The record stays in processing until manually reconciled.
	got, loadErr := d.tasks.Load(ctx, 13)
	require.NoError(t, loadErr)
	assert.Equal(t, models.StatusProcessing, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestProcessRecordsStageOutcomes(t *testing.T) {
	ctx := context.Background()
	d := happyDeps()
	d.links.meta = nil
	seedTask(t, d, 14)

	collector := metrics.NewCollector()
	r := NewRunner(d.tasks, d.links, d.media, d.speech, d.gpt, d.docs,
		collector, 0, discardLogger())
	require.Error(t, r.Process(ctx, 14))

	snap := collector.Snapshot()
	assert.Equal(t, int64(1), snap.Stages[metrics.OpValidate].Count)
	assert.Equal(t, int64(1), snap.Stages[metrics.OpValidate].Failures)
	assert.Equal(t, int64(1), snap.Stages[metrics.OpTask].Failures)
}

func TestProcessRerunAfterCrashMidPipeline(t *testing.T) {
	ctx := context.Background()
	d := happyDeps()
	seedTask(t, d, 12)

	// A crash after the processing write leaves the record mid-pipeline.
	crashed, err := d.tasks.Load(ctx, 12)
	require.NoError(t, err)
	crashed.Status = models.StatusProcessing
	require.NoError(t, d.tasks.Save(ctx, crashed))

	require.NoError(t, newRunner(d, 0).Process(ctx, 12))

	got, err := d.tasks.Load(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.NotEmpty(t, got.ResultDocumentURL)
}
