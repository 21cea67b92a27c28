package document

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArtifactStore struct {
	putKeys []string
	ttl     time.Duration
}

func (f *fakeArtifactStore) PutFile(_ context.Context, key, localPath, _ string) error {
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	f.putKeys = append(f.putKeys, key)
	return nil
}

func (f *fakeArtifactStore) Presign(_ context.Context, key string, ttl time.Duration) (string, error) {
	f.ttl = ttl
	return "https://signed.example/" + key, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRenderProducesPDF(t *testing.T) {
	// Empty font path exercises the built-in font fallback so the test does
	// not depend on system font files.
	r := NewRenderer(&fakeArtifactStore{}, t.TempDir(), "deja_vu", "", discardLogger())

	path, err := r.Render("First point.\n\nSecond point.", "Graph Theory")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, len(data) > 0)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestRenderEmptySummary(t *testing.T) {
	r := NewRenderer(&fakeArtifactStore{}, t.TempDir(), "deja_vu", "", discardLogger())

	path, err := r.Render("", "Empty Lecture")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestRenderMissingFont(t *testing.T) {
	r := NewRenderer(&fakeArtifactStore{}, t.TempDir(), "deja_vu", "/nonexistent/font.ttf", discardLogger())

	_, err := r.Render("text", "title")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRender)
}

func TestPersist(t *testing.T) {
	dir := t.TempDir()
	local := dir + "/doc.pdf"
	require.NoError(t, os.WriteFile(local, []byte("%PDF-1.4"), 0644))

	files := &fakeArtifactStore{}
	r := NewRenderer(files, dir, "deja_vu", "", discardLogger())

	url, err := r.Persist(context.Background(), 42, local)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/tasks/task_42.pdf", url)
	assert.Equal(t, []string{"tasks/task_42.pdf"}, files.putKeys)
	assert.Equal(t, time.Hour, files.ttl)

	_, statErr := os.Stat(local)
	assert.True(t, os.IsNotExist(statErr), "scratch document must be removed after upload")
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Graph Theory", "graph-theory"},
		{"Лекция 3", "3"},
		{"", "document"},
		{"!!!", "document"},
		{"a_b c-d", "a-b-c-d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.in), "slugify(%q)", tt.in)
	}
}
