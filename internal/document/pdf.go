// Package document renders the summary into a paginated PDF and persists it
// to the object store.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
)

// ErrRender indicates PDF layout or output failed.
var ErrRender = errors.New("render failed")

const (
	documentKeyTemplate = "tasks/task_%d.pdf"

	// RetrievalTTL is the validity window of the result link.
	RetrievalTTL = time.Hour

	titleFontSize = 18
	bodyFontSize  = 12
	titleLineHt   = 8
	bodyLineHt    = 6
)

// ArtifactStore is the slice of the object store the document stage needs.
type ArtifactStore interface {
	PutFile(ctx context.Context, key, localPath, contentType string) error
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Renderer lays out summaries as A4 documents with a fixed UTF-8 font.
type Renderer struct {
	files      ArtifactStore
	scratchDir string
	fontName   string
	fontPath   string // empty falls back to the built-in Helvetica
	logger     *slog.Logger
}

// NewRenderer creates a renderer writing local artifacts to scratchDir.
func NewRenderer(files ArtifactStore, scratchDir, fontName, fontPath string, logger *slog.Logger) *Renderer {
	return &Renderer{
		files:      files,
		scratchDir: scratchDir,
		fontName:   fontName,
		fontPath:   fontPath,
		logger:     logger,
	}
}

// Render lays out the title as a heading followed by one paragraph per
// non-empty summary line and writes a single local PDF artifact.
func (r *Renderer) Render(summaryText, title string) (string, error) {
	pdf := fpdf.New("P", "mm", "A4", "")

	font := r.fontName
	if r.fontPath != "" {
		pdf.AddUTF8Font(font, "", r.fontPath)
	} else {
		font = "Helvetica"
	}

	pdf.AddPage()
	pdf.SetFont(font, "", titleFontSize)
	pdf.MultiCell(0, titleLineHt, title, "", "L", false)
	pdf.Ln(titleLineHt)

	pdf.SetFont(font, "", bodyFontSize)
	for _, line := range strings.Split(summaryText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pdf.MultiCell(0, bodyLineHt, line, "", "L", false)
		pdf.Ln(2)
	}

	localPath := filepath.Join(r.scratchDir, fmt.Sprintf("%s_%s.pdf", slugify(title), uuid.NewString()))
	if err := pdf.OutputFileAndClose(localPath); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}

	r.logger.Info("document rendered", "path", localPath)
	return localPath, nil
}

// Persist uploads the artifact under the task-scoped key and returns a
// time-bounded retrieval URL. Re-running overwrites the same key.
func (r *Renderer) Persist(ctx context.Context, taskID int64, localPath string) (string, error) {
	key := fmt.Sprintf(documentKeyTemplate, taskID)
	if err := r.files.PutFile(ctx, key, localPath, "application/pdf"); err != nil {
		return "", fmt.Errorf("persist document: %w", err)
	}

	if err := os.Remove(localPath); err != nil {
		r.logger.Warn("removing scratch document failed", "path", localPath, "error", err)
	}

	url, err := r.files.Presign(ctx, key, RetrievalTTL)
	if err != nil {
		return "", fmt.Errorf("presign document: %w", err)
	}
	return url, nil
}

// slugify reduces a title to a filesystem-safe fragment.
func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "document"
	}
	return out
}
