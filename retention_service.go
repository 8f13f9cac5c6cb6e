package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"deckgen/config"
	"deckgen/database"
	"deckgen/metrics"
)

// sweepInterval is how often the retention sweeper wakes up.
const sweepInterval = 30 * time.Minute

// RetentionService deletes generated documents older than the configured
// retention window. With RETENTION_HOURS=0 it stays idle and files are kept
// forever.
type RetentionService struct {
	cfg         config.Config
	fileService *database.FileService
	metrics     *metrics.Metrics
	logger      func(string)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRetentionService creates a new RetentionService instance.
func NewRetentionService(
	cfg config.Config,
	fileService *database.FileService,
	m *metrics.Metrics,
	logger func(string),
) *RetentionService {
	return &RetentionService{
		cfg:         cfg,
		fileService: fileService,
		metrics:     m,
		logger:      logger,
	}
}

func (r *RetentionService) Name() string {
	return "retention"
}

// Initialize starts the background sweeper when retention is enabled.
func (r *RetentionService) Initialize(ctx context.Context) error {
	if r.cfg.RetentionHours <= 0 {
		r.log("[RETENTION] disabled, generated files are kept forever")
		return nil
	}
	if r.fileService == nil {
		return fmt.Errorf("file service not initialized")
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.run(ctx)

	r.log(fmt.Sprintf("[RETENTION] sweeping files older than %dh every %s", r.cfg.RetentionHours, sweepInterval))
	return nil
}

// Shutdown stops the sweeper and waits for an in-flight sweep to finish.
func (r *RetentionService) Shutdown() error {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
	return nil
}

// log 记录日志
func (r *RetentionService) log(msg string) {
	if r.logger != nil {
		r.logger(msg)
	}
}

func (r *RetentionService) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	// Anything that expired while the process was down is swept at
	// startup, not at the first tick.
	r.sweep()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep removes expired registry rows and their files from disk.
func (r *RetentionService) sweep() {
	maxAge := time.Duration(r.cfg.RetentionHours) * time.Hour
	names, err := r.fileService.DeleteExpired(maxAge)
	if err != nil {
		r.log(fmt.Sprintf("[RETENTION] sweep failed: %v", err))
		return
	}
	if len(names) == 0 {
		return
	}

	for _, name := range names {
		path := filepath.Join(r.cfg.GeneratedDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.log(fmt.Sprintf("[RETENTION] failed to remove %s: %v", name, err))
		}
	}
	r.log(fmt.Sprintf("[RETENTION] removed %d expired files", len(names)))

	if stats, err := r.fileService.Stats(); err == nil {
		r.metrics.SetStorageStats(stats.TotalFiles, stats.TotalBytes)
	}
}
