package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/aqilqeka/Aqil-project/db"
	"github.com/aqilqeka/Aqil-project/storage"
)

// DefaultSource is the published dataset archive.
const DefaultSource = "https://drive.google.com/uc?export=download&confirm=t&id=1-p2oSWs3P4HPmxZjZ0EeQyzVZRhU8Kb3"

// Cache file names under Config.CacheDir.
const (
	ArchiveFile  = "dataset.zip"
	SnapshotFile = "transactions.arrow"
)

var loadLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "fraudboard_load_duration_seconds",
	Help:    "Dataset load time by origin",
	Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
}, []string{"origin"})

func init() {
	prometheus.MustRegister(loadLatency)
}

// Config selects where the dataset comes from.
type Config struct {
	// Source is an http(s) or gs:// URI, a local zip archive, or a local
	// directory holding the extracted dataset files.
	Source string
	// CacheDir, when set, keeps the downloaded archive and an Arrow
	// snapshot of the parsed table between runs.
	CacheDir string
	// GCSCredentialsFile is passed to the gs:// fetcher.
	GCSCredentialsFile string
}

// Loader builds the transaction table from its configured source.
type Loader struct {
	cfg      Config
	logger   *zap.Logger
	fetchers map[string]Fetcher
	breaker  *gobreaker.CircuitBreaker[io.ReadCloser]
}

// New creates a Loader with the default fetchers.
func New(cfg Config, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	cb := gobreaker.NewCircuitBreaker[io.ReadCloser](gobreaker.Settings{
		Name:    "DatasetFetch",
		Timeout: 30 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Loader{
		cfg:    cfg,
		logger: logger,
		fetchers: map[string]Fetcher{
			"http":  HTTPFetcher{},
			"https": HTTPFetcher{},
			"gs":    GCSFetcher{CredentialsFile: cfg.GCSCredentialsFile},
			"file":  FileFetcher{},
		},
		breaker: cb,
	}
}

// WithFetcher overrides the fetcher for a URI scheme.
func (l *Loader) WithFetcher(scheme string, f Fetcher) *Loader {
	l.fetchers[scheme] = f
	return l
}

// Load returns the full transaction table. A cached snapshot is preferred;
// otherwise the source is fetched once, extracted and parsed. Failures are
// returned as is; nothing is retried.
func (l *Loader) Load(ctx context.Context) (*db.Table, error) {
	start := time.Now()

	if l.cfg.CacheDir != "" {
		snap := filepath.Join(l.cfg.CacheDir, SnapshotFile)
		if _, err := os.Stat(snap); err == nil {
			table, err := storage.LoadFromDisk(snap)
			if err != nil {
				return nil, fmt.Errorf("load snapshot: %w", err)
			}
			l.observe("snapshot", start, table)
			return table, nil
		}
	}

	table, err := l.loadSource(ctx)
	if err != nil {
		return nil, err
	}
	l.observe("source", start, table)

	if l.cfg.CacheDir != "" {
		snap := filepath.Join(l.cfg.CacheDir, SnapshotFile)
		if err := storage.SaveToDisk(snap, table); err != nil {
			l.logger.Warn("failed to write snapshot", zap.String("path", snap), zap.Error(err))
		}
	}
	return table, nil
}

func (l *Loader) observe(origin string, start time.Time, table *db.Table) {
	elapsed := time.Since(start)
	loadLatency.WithLabelValues(origin).Observe(elapsed.Seconds())
	l.logger.Info("dataset loaded",
		zap.String("origin", origin),
		zap.Int("rows", table.Len()),
		zap.Duration("elapsed", elapsed))
}

func (l *Loader) loadSource(ctx context.Context) (*db.Table, error) {
	uri, err := url.Parse(l.cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("parse source %q: %w", l.cfg.Source, err)
	}

	if uri.Scheme == "" || uri.Scheme == "file" {
		info, err := os.Stat(uri.Path)
		if err != nil {
			return nil, fmt.Errorf("stat source: %w", err)
		}
		if info.IsDir() {
			return ReadDir(uri.Path)
		}
		return ReadArchive(uri.Path)
	}

	archive, cleanup, err := l.download(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return ReadArchive(archive)
}

// download copies the remote archive to a local file, since zip needs
// random access.
func (l *Loader) download(ctx context.Context, uri *url.URL) (string, func(), error) {
	fetcher, ok := l.fetchers[strings.ToLower(uri.Scheme)]
	if !ok {
		return "", nil, fmt.Errorf("unsupported source scheme %q", uri.Scheme)
	}

	var (
		out *os.File
		err error
	)
	cleanup := func() {}
	if l.cfg.CacheDir != "" {
		if err := os.MkdirAll(l.cfg.CacheDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create cache dir: %w", err)
		}
		out, err = os.Create(filepath.Join(l.cfg.CacheDir, ArchiveFile))
	} else {
		out, err = os.CreateTemp("", "fraudboard-*.zip")
		if err == nil {
			name := out.Name()
			cleanup = func() { _ = os.Remove(name) }
		}
	}
	if err != nil {
		return "", nil, fmt.Errorf("create archive file: %w", err)
	}
	defer out.Close()

	l.logger.Info("downloading dataset", zap.String("source", uri.Redacted()))
	body, err := l.breaker.Execute(func() (io.ReadCloser, error) {
		return fetcher.Fetch(ctx, uri)
	})
	if err != nil {
		cleanup()
		if errors.Is(err, gobreaker.ErrOpenState) {
			return "", nil, fmt.Errorf("dataset source unavailable: %w", err)
		}
		return "", nil, fmt.Errorf("fetch dataset: %w", err)
	}
	defer body.Close()

	n, err := io.Copy(out, body)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("download dataset: %w", err)
	}
	if err := out.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close archive file: %w", err)
	}
	l.logger.Info("dataset downloaded", zap.Int64("bytes", n))
	return out.Name(), cleanup, nil
}
