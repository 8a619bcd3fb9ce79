package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
	"github.com/noah-isme/coliving-calendar-api/pkg/jobs"
)

const warmJobType = "feed.warm"

type feedWarmTarget interface {
	Warm(ctx context.Context, apartmentID string) (*models.FeedDocument, error)
}

type activeApartmentLister interface {
	ListActive(ctx context.Context) ([]models.Apartment, error)
}

type exportPruner interface {
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// FeedWarmerConfig configures scheduled cache warm-up and export retention.
type FeedWarmerConfig struct {
	Schedule        string
	CleanupSchedule string
	Workers         int
	Retries         int
	Retention       time.Duration
}

// FeedWarmer periodically re-renders availability feeds so polling calendar
// clients hit a warm cache, and prunes old export files.
type FeedWarmer struct {
	feeds      feedWarmTarget
	apartments activeApartmentLister
	pruner     exportPruner
	cfg        FeedWarmerConfig
	logger     *zap.Logger

	queue *jobs.Queue
	cron  *cron.Cron
}

// NewFeedWarmer constructs a warmer. pruner may be nil.
func NewFeedWarmer(feeds feedWarmTarget, apartments activeApartmentLister, pruner exportPruner, cfg FeedWarmerConfig, logger *zap.Logger) *FeedWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CleanupSchedule == "" {
		cfg.CleanupSchedule = "@daily"
	}
	w := &FeedWarmer{
		feeds:      feeds,
		apartments: apartments,
		pruner:     pruner,
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "feed_warmer")),
		cron:       cron.New(),
	}
	w.queue = jobs.NewQueue("feed-warm", w.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logger,
		OnFailure: func(job jobs.Job, err error) {
			w.logger.Error("feed warm abandoned", zap.Any("apartment_id", job.Payload), zap.Error(err))
		},
	})
	return w
}

// Start registers the cron entries and starts the worker pool. Call it once.
func (w *FeedWarmer) Start(ctx context.Context) error {
	if w.cfg.Schedule != "" {
		if _, err := w.cron.AddFunc(w.cfg.Schedule, func() {
			if _, err := w.WarmAll(ctx); err != nil {
				w.logger.Error("scheduled feed warm failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("register warm schedule %q: %w", w.cfg.Schedule, err)
		}
	}
	if w.pruner != nil && w.cfg.Retention > 0 {
		if _, err := w.cron.AddFunc(w.cfg.CleanupSchedule, func() {
			if _, err := w.Prune(); err != nil {
				w.logger.Error("export cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("register cleanup schedule %q: %w", w.cfg.CleanupSchedule, err)
		}
	}

	w.queue.Start(ctx)
	w.cron.Start()
	w.logger.Info("feed warmer started", zap.String("schedule", w.cfg.Schedule), zap.Int("entries", len(w.cron.Entries())))
	return nil
}

// Stop waits for running cron jobs and drains the workers.
func (w *FeedWarmer) Stop() {
	<-w.cron.Stop().Done()
	w.queue.Stop()
}

// WarmAll enqueues one warm job per active apartment and returns how many were queued.
func (w *FeedWarmer) WarmAll(ctx context.Context) (int, error) {
	apartments, err := w.apartments.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active apartments: %w", err)
	}
	queued := 0
	for _, apartment := range apartments {
		if err := w.queue.Enqueue(jobs.Job{Type: warmJobType, Payload: apartment.ID}); err != nil {
			return queued, err
		}
		queued++
	}
	w.logger.Debug("feed warm queued", zap.Int("apartments", queued))
	return queued, nil
}

// Prune removes export files older than the retention period.
func (w *FeedWarmer) Prune() ([]string, error) {
	if w.pruner == nil || w.cfg.Retention <= 0 {
		return nil, nil
	}
	deleted, err := w.pruner.CleanupOlderThan(w.cfg.Retention)
	if err != nil {
		return nil, err
	}
	if len(deleted) > 0 {
		w.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
	}
	return deleted, nil
}

// Stats exposes worker throughput.
func (w *FeedWarmer) Stats() jobs.Stats {
	return w.queue.Stats()
}

func (w *FeedWarmer) handle(ctx context.Context, job jobs.Job) error {
	apartmentID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	doc, err := w.feeds.Warm(ctx, apartmentID)
	if err != nil {
		return err
	}
	w.logger.Debug("feed warmed", zap.String("apartment_id", apartmentID), zap.Int("events", doc.EventCount))
	return nil
}
