package metrics

import (
	"io/fs"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cached artifact directories under the data directory
var cacheDirs = []string{"platforms", "projects"}

var (
	CacheFiles = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dicc_cache_files",
			Help: "Number of files in the artifact cache by directory",
		},
		[]string{"dir"},
	)

	CacheBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dicc_cache_bytes",
			Help: "Size of the artifact cache in bytes by directory",
		},
		[]string{"dir"},
	)
)

func init() {
	prometheus.MustRegister(CacheFiles)
	prometheus.MustRegister(CacheBytes)
}

// Collector periodically measures the on-disk cache. Nothing in the node
// removes cached binaries or inputs, so their growth is worth watching.
type Collector struct {
	dataDir  string
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new cache collector for dataDir
func NewCollector(dataDir string) *Collector {
	return &Collector{
		dataDir:  dataDir,
		interval: 60 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for _, dir := range cacheDirs {
		files, size := dirUsage(filepath.Join(c.dataDir, dir))
		CacheFiles.WithLabelValues(dir).Set(float64(files))
		CacheBytes.WithLabelValues(dir).Set(float64(size))
	}
}

// dirUsage counts regular files below root. Unreadable entries are skipped.
func dirUsage(root string) (files int, size int64) {
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files++
		size += info.Size()
		return nil
	})
	return files, size
}
