package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
	"github.com/noah-isme/coliving-calendar-api/pkg/jobs"
)

const exportJobType = "feed.export"

type feedRenderer interface {
	Render(ctx context.Context, apartmentID string, mode models.FeedMode) (*models.FeedDocument, error)
}

type fileStore interface {
	Save(filename string, data []byte) (string, error)
}

type exportTask struct {
	ApartmentID string
	Mode        models.FeedMode
}

type exportResult struct {
	Written []string
	Failed  []exportTask
}

// batchExporter renders every manifest feed on a worker pool and stores the files.
type batchExporter struct {
	feeds      feedRenderer
	store      fileStore
	logger     *zap.Logger
	workers    int
	retries    int
	retryDelay time.Duration
}

func (e *batchExporter) Run(ctx context.Context, apartments []manifestApartment) (*exportResult, error) {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result exportResult
	)

	handle := func(ctx context.Context, job jobs.Job) error {
		task := job.Payload.(exportTask)
		doc, err := e.feeds.Render(ctx, task.ApartmentID, task.Mode)
		if err != nil {
			return err
		}
		name, err := e.store.Save(doc.Filename, []byte(doc.Body))
		if err != nil {
			return err
		}
		e.logger.Info("feed exported",
			zap.String("apartment_id", task.ApartmentID),
			zap.String("mode", string(task.Mode)),
			zap.String("file", name),
			zap.Int("events", doc.EventCount),
		)
		mu.Lock()
		result.Written = append(result.Written, name)
		mu.Unlock()
		wg.Done()
		return nil
	}

	queue := jobs.NewQueue("feed-export", handle, jobs.QueueConfig{
		Workers:    e.workers,
		MaxRetries: e.retries,
		RetryDelay: e.retryDelay,
		Logger:     e.logger,
		OnFailure: func(job jobs.Job, err error) {
			mu.Lock()
			result.Failed = append(result.Failed, job.Payload.(exportTask))
			mu.Unlock()
			wg.Done()
		},
	})
	queue.Start(ctx)
	defer queue.Stop()

	for _, apt := range apartments {
		for _, mode := range apt.Modes {
			wg.Add(1)
			if err := queue.Enqueue(jobs.Job{Type: exportJobType, Payload: exportTask{ApartmentID: apt.ID, Mode: mode}}); err != nil {
				wg.Done()
				return nil, fmt.Errorf("enqueue %s/%s: %w", apt.ID, mode, err)
			}
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	return &result, nil
}
