package assets

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

func newManager(t *testing.T, minSize int64) *Manager {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "assets.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	m, err := NewManager(db, t.TempDir(), minSize, zap.NewNop())
	require.NoError(t, err)
	return m
}

func serveBytes(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadRecordsAssetWithDigest(t *testing.T) {
	payload := bytes.Repeat([]byte("model-weights"), 100)
	srv := serveBytes(t, payload)
	m := newManager(t, 16)

	var updates []ProgressUpdate
	rec, err := m.Download(context.Background(), srv.URL, "tiny.gguf", func(u ProgressUpdate) {
		updates = append(updates, u)
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "tiny.gguf", rec.Name)
	assert.Equal(t, int64(len(payload)), rec.SizeBytes)
	assert.False(t, rec.Active)

	sum := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.Digest)

	data, err := os.ReadFile(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, int64(len(payload)), last.DownloadedBytes)
	assert.Equal(t, int64(len(payload)), last.TotalBytes)
	assert.InDelta(t, 100.0, last.Percentage, 0.001)
	assert.Greater(t, last.Speed, 0.0)
}

func TestDownloadRejectsUndersizedFile(t *testing.T) {
	srv := serveBytes(t, []byte("too small"))
	m := newManager(t, DefaultMinSizeBytes)

	_, err := m.Download(context.Background(), srv.URL, "tiny.gguf", nil)
	require.Error(t, err)

	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Contains(t, dlErr.Error(), "minimum")

	// Neither the file nor a record survives the rejection.
	assert.NoFileExists(t, m.filePath("tiny.gguf"))
	assert.Empty(t, m.ListAll(context.Background()))
}

func TestDownloadRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	m := newManager(t, 16)

	_, err := m.Download(context.Background(), srv.URL, "missing.gguf", nil)
	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Contains(t, dlErr.Error(), "404")
}

func TestDownloadStripsDirectoryComponents(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 64)
	srv := serveBytes(t, payload)
	m := newManager(t, 16)

	rec, err := m.Download(context.Background(), srv.URL, "../../etc/evil.gguf", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.dir, "evil.gguf"), rec.Path)
}

func TestSetActiveIsExclusive(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 64)
	srv := serveBytes(t, payload)
	m := newManager(t, 16)
	ctx := context.Background()

	a, err := m.Download(ctx, srv.URL, "a.gguf", nil)
	require.NoError(t, err)
	b, err := m.Download(ctx, srv.URL, "b.gguf", nil)
	require.NoError(t, err)

	require.NoError(t, m.SetActive(ctx, a.ID))
	require.NoError(t, m.SetActive(ctx, b.ID))

	got, err := m.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	got, err = m.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)

	assert.ErrorIs(t, m.SetActive(ctx, "no-such-id"), ErrNotFound)
}

func TestDeleteIsIdempotentAndRemovesFile(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 64)
	srv := serveBytes(t, payload)
	m := newManager(t, 16)
	ctx := context.Background()

	rec, err := m.Download(ctx, srv.URL, "a.gguf", nil)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, rec.ID))
	assert.NoFileExists(t, rec.Path)
	_, err = m.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Delete(ctx, rec.ID))
	require.NoError(t, m.Delete(ctx, "never-existed"))
}

func TestListAllInsertionOrder(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 64)
	srv := serveBytes(t, payload)
	m := newManager(t, 16)
	ctx := context.Background()

	for _, name := range []string{"a.gguf", "b.gguf", "c.gguf"} {
		_, err := m.Download(ctx, srv.URL, name, nil)
		require.NoError(t, err)
	}

	all := m.ListAll(ctx)
	require.Len(t, all, 3)
	assert.Equal(t, "a.gguf", all[0].Name)
	assert.Equal(t, "b.gguf", all[1].Name)
	assert.Equal(t, "c.gguf", all[2].Name)

	_, err := m.Get(ctx, "absent")
	assert.True(t, errors.Is(err, ErrNotFound))
}
