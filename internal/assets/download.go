package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProgressUpdate is one sample of download progress, delivered on each
// transport read.
type ProgressUpdate struct {
	// TotalBytes is the expected size from Content-Length, or -1 when the
	// server did not report one.
	TotalBytes int64 `json:"total_bytes"`

	DownloadedBytes int64 `json:"downloaded_bytes"`

	// Percentage is 0-100, or 0 when the total is unknown.
	Percentage float64 `json:"percentage"`

	// Speed is the average transfer rate in bytes per second.
	Speed float64 `json:"speed"`

	// ETA is the estimated remaining time, zero when the total or speed
	// is unknown.
	ETA time.Duration `json:"eta"`
}

// ProgressFunc receives progress samples during a download. It is called
// from the download goroutine; implementations should return quickly.
type ProgressFunc func(ProgressUpdate)

// Download fetches url into the asset directory under name, enforcing the
// minimum-size floor, and records the result. Partial or undersized files
// are removed before the error returns. onProgress may be nil.
func (m *Manager) Download(ctx context.Context, url, name string, onProgress ProgressFunc) (*AssetRecord, error) {
	if name == "" {
		return nil, downloadErr(url, "asset name cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, downloadErr(url, "create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, downloadErr(url, "http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, downloadErr(url, "unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(m.dir, ".download-*")
	if err != nil {
		return nil, downloadErr(url, "create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	hash := sha256.New()
	written, err := copyWithProgress(ctx, io.MultiWriter(tmp, hash), resp.Body, resp.ContentLength, onProgress)
	closeErr := tmp.Close()
	if err != nil {
		return nil, downloadErr(url, "transfer: %w", err)
	}
	if closeErr != nil {
		return nil, downloadErr(url, "close temp file: %w", closeErr)
	}

	if written < m.minSize {
		return nil, downloadErr(url, "file size %d below %d byte minimum", written, m.minSize)
	}

	path := m.filePath(name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, downloadErr(url, "move into place: %w", err)
	}

	rec := &AssetRecord{
		ID:        uuid.New().String(),
		Name:      name,
		URL:       url,
		Path:      path,
		SizeBytes: written,
		Digest:    hex.EncodeToString(hash.Sum(nil)),
		CreatedAt: time.Now(),
	}
	if err := m.insert(ctx, rec); err != nil {
		_ = os.Remove(path)
		return nil, downloadErr(url, "record asset: %w", err)
	}

	m.logger.Info("asset downloaded",
		zap.String("id", rec.ID),
		zap.String("name", rec.Name),
		zap.Int64("size_bytes", rec.SizeBytes))
	return rec, nil
}

// copyWithProgress streams src to dst, sampling progress on every read and
// honoring context cancellation between reads.
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, onProgress ProgressFunc) (int64, error) {
	start := time.Now()
	buf := make([]byte, 32*1024)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if onProgress != nil {
				onProgress(sample(total, written, time.Since(start)))
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func sample(total, downloaded int64, elapsed time.Duration) ProgressUpdate {
	u := ProgressUpdate{
		TotalBytes:      total,
		DownloadedBytes: downloaded,
	}
	if elapsed > 0 {
		u.Speed = float64(downloaded) / elapsed.Seconds()
	}
	if total > 0 {
		u.Percentage = 100 * float64(downloaded) / float64(total)
		if u.Speed > 0 {
			remaining := float64(total-downloaded) / u.Speed
			u.ETA = time.Duration(remaining * float64(time.Second))
		}
	}
	return u
}
