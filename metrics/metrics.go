package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report deck generation activity.
type Metrics struct {
	buildDuration *prometheus.HistogramVec
	imageResults  *prometheus.CounterVec
	downloads     *prometheus.CounterVec
	storedFiles   prometheus.Gauge
	storedBytes   prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// Default returns the package-level metrics instance registered with the
// global Prometheus registry. The collectors are created only once to avoid
// duplicate registration panics when the service is instantiated multiple
// times (e.g. in unit tests).
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// The caller is responsible for supplying a fresh registry when unique metric
// names are required (for example in tests). Any registration error will panic
// which mirrors the semantics of promauto helpers and surfaces configuration
// bugs early.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deckgen",
			Name:      "deck_build_duration_seconds",
			Help:      "Time spent building a deck, labeled by request source and outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source", "status"},
	)
	imageResults := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deckgen",
			Name:      "image_resolutions_total",
			Help:      "Image reference resolutions by outcome.",
		},
		[]string{"result"},
	)
	downloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deckgen",
			Name:      "file_downloads_total",
			Help:      "Generated file downloads by document format.",
		},
		[]string{"format"},
	)
	storedFiles := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "deckgen",
			Name:      "stored_files",
			Help:      "Number of generated files currently registered.",
		},
	)
	storedBytes := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "deckgen",
			Name:      "stored_bytes",
			Help:      "Total size of registered generated files in bytes.",
		},
	)

	collectors := []prometheus.Collector{buildDuration, imageResults, downloads, storedFiles, storedBytes}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				// Reuse the existing collector when it matches the expected type.
				switch target := collector.(type) {
				case *prometheus.HistogramVec:
					buildDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case *prometheus.CounterVec:
					switch target { //nolint:exhaustive
					case imageResults:
						imageResults = already.ExistingCollector.(*prometheus.CounterVec)
					case downloads:
						downloads = already.ExistingCollector.(*prometheus.CounterVec)
					}
				case prometheus.Gauge:
					switch target { //nolint:exhaustive
					case storedFiles:
						storedFiles = already.ExistingCollector.(prometheus.Gauge)
					case storedBytes:
						storedBytes = already.ExistingCollector.(prometheus.Gauge)
					}
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		buildDuration: buildDuration,
		imageResults:  imageResults,
		downloads:     downloads,
		storedFiles:   storedFiles,
		storedBytes:   storedBytes,
	}
}

// ObserveBuildDuration records the time spent building one deck with the
// provided source ("create" or "from-url") and status label.
func (m *Metrics) ObserveBuildDuration(source string, status string, duration time.Duration) {
	if m == nil || m.buildDuration == nil {
		return
	}
	m.buildDuration.WithLabelValues(source, status).Observe(duration.Seconds())
}

// IncImageResolution counts one image reference resolution outcome
// ("ok", "fetch_error" or "format_error").
func (m *Metrics) IncImageResolution(result string) {
	if m == nil || m.imageResults == nil {
		return
	}
	m.imageResults.WithLabelValues(result).Inc()
}

// IncDownload counts one served download of the given document format.
func (m *Metrics) IncDownload(format string) {
	if m == nil || m.downloads == nil {
		return
	}
	m.downloads.WithLabelValues(format).Inc()
}

// SetStorageStats publishes the current registry aggregates.
func (m *Metrics) SetStorageStats(files int64, bytes int64) {
	if m == nil || m.storedFiles == nil || m.storedBytes == nil {
		return
	}
	m.storedFiles.Set(float64(files))
	m.storedBytes.Set(float64(bytes))
}
