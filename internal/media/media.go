// Package media downloads source video and transcodes it to opus audio
// suitable for the recognition service.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Sentinel errors for the media stage. Use errors.Is() to classify failures.
var (
	ErrDownload  = errors.New("download failed")
	ErrTranscode = errors.New("transcode failed")
)

const audioKeyTemplate = "tmp/audio_%d.ogg"

// FileStore is the slice of the object store the media stage needs.
type FileStore interface {
	PutFile(ctx context.Context, key, localPath, contentType string) error
	PublicURL(key string) string
}

// Processor runs the download / extract / upload steps of the pipeline.
// Scratch files are uniquely named per attempt, so duplicate deliveries of
// the same task never collide on disk.
type Processor struct {
	files      FileStore
	scratchDir string
	client     *http.Client
	logger     *slog.Logger
}

// NewProcessor creates a media processor writing scratch files to scratchDir.
func NewProcessor(files FileStore, scratchDir string, logger *slog.Logger) *Processor {
	return &Processor{
		files:      files,
		scratchDir: scratchDir,
		client:     http.DefaultClient,
		logger:     logger,
	}
}

// Download streams the resource at fileURL to local scratch storage and
// returns the local path. Fails with ErrDownload on a non-2xx response or
// an interrupted stream.
func (p *Processor) Download(ctx context.Context, fileURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: unexpected status %d", ErrDownload, resp.StatusCode)
	}

	localPath := filepath.Join(p.scratchDir, fmt.Sprintf("video_%s.mp4", uuid.NewString()))
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(localPath)
		return "", fmt.Errorf("%w: stream interrupted: %v", ErrDownload, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}

	p.logger.Debug("media downloaded", "path", localPath)
	return localPath, nil
}

// ExtractAudio demuxes and re-encodes the video to mono-friendly low-bitrate
// opus. Fails with ErrTranscode if ffmpeg exits non-zero, no output file is
// produced, or the produced audio probes to zero duration.
func (p *Processor) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	audioPath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".ogg"

	cmd := exec.CommandContext(ctx, "ffmpeg", ffmpegArgs(videoPath, audioPath)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%w: ffmpeg: %v: %s", ErrTranscode, err, truncate(string(out), 400))
	}

	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("%w: audio file was not created: %s", ErrTranscode, audioPath)
	}

	duration, err := p.probeDuration(ctx, audioPath)
	if err != nil {
		return "", err
	}
	if duration <= 0 {
		return "", fmt.Errorf("%w: audio file has zero duration: %s", ErrTranscode, audioPath)
	}

	// The source video is no longer needed once the audio exists.
	if err := os.Remove(videoPath); err != nil {
		p.logger.Warn("removing scratch video failed", "path", videoPath, "error", err)
	}

	p.logger.Debug("audio extracted", "path", audioPath, "duration_sec", duration)
	return audioPath, nil
}

// UploadAudio pushes the audio artifact under a task-scoped temporary key and
// returns the URI the recognition service will fetch it from. Re-running the
// stage overwrites the same key.
func (p *Processor) UploadAudio(ctx context.Context, audioPath string, taskID int64) (string, error) {
	key := fmt.Sprintf(audioKeyTemplate, taskID)
	if err := p.files.PutFile(ctx, key, audioPath, "audio/ogg"); err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}

	if err := os.Remove(audioPath); err != nil {
		p.logger.Warn("removing scratch audio failed", "path", audioPath, "error", err)
	}
	return p.files.PublicURL(key), nil
}

// probeDuration asks ffprobe for the container duration in seconds.
func (p *Processor) probeDuration(ctx context.Context, audioPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe: %v", ErrTranscode, err)
	}
	return parseDuration(string(out)), nil
}

// ffmpegArgs builds the fixed transcode invocation: drop video, re-encode to
// 48kHz opus at ~64kbps.
func ffmpegArgs(videoPath, audioPath string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-c:a", "libopus",
		"-ar", "48000",
		"-b:a", "65536",
		audioPath,
	}
}

// parseDuration reads ffprobe output, treating anything unparseable as zero.
func parseDuration(out string) float64 {
	s := strings.TrimSpace(out)
	if s == "" {
		return 0
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
