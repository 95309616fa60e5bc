package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/cuemby/dicc/pkg/log"
	"github.com/cuemby/dicc/pkg/metrics"
)

// artifactMode is the permission given to materialized files. Every
// materialized artifact is something the node executes.
const artifactMode os.FileMode = 0o755

// NewHTTPClient returns an HTTP client with tracing instrumentation.
// A zero timeout means no client-side deadline.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Fetcher retrieves artifacts over HTTP and keeps verified copies on disk.
//
// A single Fetcher is meant to be shared by every worker of the process:
// it serializes materialization per destination path so concurrent workers
// never fetch the same artifact twice or observe a partially written file.
type Fetcher struct {
	client *http.Client
	locks  *KeyedMutex
	logger zerolog.Logger
}

// NewFetcher creates a fetcher. A nil client selects NewHTTPClient(0).
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &Fetcher{
		client: client,
		locks:  NewKeyedMutex(),
		logger: log.WithComponent("download"),
	}
}

// Fetch downloads the artifact and returns its bytes once verified.
func (f *Fetcher) Fetch(ctx context.Context, d Download) ([]byte, error) {
	timer := metrics.NewTimer()

	data, err := f.get(ctx, d.URL)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("network", "error").Inc()
		return nil, &FetchError{URL: d.URL, Err: err}
	}
	timer.ObserveDuration(metrics.DownloadDuration)

	if !d.Verify(data) {
		metrics.DownloadsTotal.WithLabelValues("network", "mismatch").Inc()
		return nil, &FetchError{URL: d.URL, Err: ErrChecksumMismatch}
	}

	metrics.DownloadsTotal.WithLabelValues("network", "ok").Inc()
	return data, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// Materialize makes sure path holds a verified copy of the artifact.
//
// An existing file is reused only if it verifies; otherwise the artifact is
// fetched and atomically replaces whatever was at path. Fetch failures are
// returned as *FetchError; failures writing to the local filesystem are
// returned as plain errors.
func (f *Fetcher) Materialize(ctx context.Context, d Download, path string) error {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	unlock := f.locks.Lock(key)
	defer unlock()

	logger := f.logger.With().Str("path", path).Str("url", d.URL).Logger()

	cached, err := os.ReadFile(path)
	switch {
	case err == nil && d.Verify(cached):
		metrics.DownloadsTotal.WithLabelValues("cache", "hit").Inc()
		logger.Debug().Msg("Using cached artifact")
		return nil
	case err == nil:
		metrics.DownloadsTotal.WithLabelValues("cache", "stale").Inc()
		logger.Warn().Msg("Cached artifact failed verification, fetching again")
	case errors.Is(err, fs.ErrNotExist):
		metrics.DownloadsTotal.WithLabelValues("cache", "miss").Inc()
	default:
		logger.Warn().Err(err).Msg("Cannot read cached artifact, fetching again")
	}

	data, err := f.Fetch(ctx, d)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(path, data, artifactMode); err != nil {
		return fmt.Errorf("failed to store %s: %w", path, err)
	}

	logger.Info().Int("bytes", len(data)).Msg("Artifact downloaded")
	return nil
}

// writeFileAtomic writes data to a temp file in the same directory, syncs
// it and renames it over path, so readers see either the old or the new
// content and never a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
