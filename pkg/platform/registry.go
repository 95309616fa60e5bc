package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/dicc/pkg/download"
	"github.com/cuemby/dicc/pkg/log"
	"github.com/cuemby/dicc/pkg/metrics"
	"github.com/cuemby/dicc/pkg/runner"
	"github.com/cuemby/dicc/pkg/storage"
	"github.com/cuemby/dicc/pkg/types"
)

// Dir is the detector cache directory inside the data directory
const Dir = "platforms"

// Materializer places a verified copy of an artifact at a path
type Materializer interface {
	Materialize(ctx context.Context, d download.Download, path string) error
}

// DetectionRecorder keeps the outcome of each detection
type DetectionRecorder interface {
	RecordDetection(rec *storage.DetectionRecord) error
}

// Config holds the registry's collaborators
type Config struct {
	DataDir  string
	Fetcher  Materializer
	Runner   runner.Runner
	Recorder DetectionRecorder // optional
}

// Registry holds candidate platforms and validates them
type Registry struct {
	config    Config
	platforms *Set
	logger    zerolog.Logger
}

// NewRegistry creates a registry without candidates
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		config:    cfg,
		platforms: NewSet(),
		logger:    log.WithComponent("platform"),
	}
}

// Add registers candidate platforms
func (r *Registry) Add(platforms ...types.Platform) {
	for _, p := range platforms {
		r.platforms.Put(p.Clone())
	}
}

// Platforms returns the registered candidates in order
func (r *Registry) Platforms() []types.Platform {
	return r.platforms.Platforms()
}

// DetectorPath returns where the detector of platform id is cached
func (r *Registry) DetectorPath(id int64) string {
	return filepath.Join(r.config.DataDir, Dir, strconv.FormatInt(id, 10)+".bin")
}

// DetectAll validates every candidate, one at a time, and returns the valid
// ones in registration order.
//
// A detector that runs and rejects the platform only excludes it. Failing
// to create the cache directory, fetch the detector or store it is a hard
// fault and aborts the pass.
func (r *Registry) DetectAll(ctx context.Context) (*Set, error) {
	dir := filepath.Join(r.config.DataDir, Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create platform directory: %w", err)
	}

	valid := NewSet()
	for _, p := range r.platforms.Platforms() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ok, err := r.detect(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("platform %d (%s): %w", p.ID, p.Name, err)
		}
		if ok {
			valid.Put(p)
		}
	}

	r.logger.Info().
		Int("candidates", r.platforms.Len()).
		Int("valid", valid.Len()).
		Msg("Platform detection complete")

	return valid, nil
}

func (r *Registry) detect(ctx context.Context, p types.Platform) (bool, error) {
	path := r.DetectorPath(p.ID)

	if err := r.config.Fetcher.Materialize(ctx, p.Detector, path); err != nil {
		return false, err
	}
	if err := download.MarkExecutable(path); err != nil {
		return false, fmt.Errorf("failed to mark detector executable: %w", err)
	}

	ok := Detect(ctx, r.config.Runner, p, path)

	logger := r.logger.With().Int64("platform_id", p.ID).Str("platform", p.Name).Logger()
	if ok {
		metrics.PlatformDetections.WithLabelValues("valid").Inc()
		logger.Info().Msg("Platform detected")
	} else {
		metrics.PlatformDetections.WithLabelValues("invalid").Inc()
		logger.Warn().Msg("Platform not supported")
	}

	if r.config.Recorder != nil {
		rec := &storage.DetectionRecord{
			PlatformID: p.ID,
			Name:       p.Name,
			Valid:      ok,
			DetectedAt: time.Now(),
		}
		if err := r.config.Recorder.RecordDetection(rec); err != nil {
			logger.Warn().Err(err).Msg("Failed to record detection")
		}
	}

	return ok, nil
}
