package loader

import (
	"context"
	"errors"

	"github.com/himanishpuri/MapVault/internal/metrics"
	"github.com/himanishpuri/MapVault/pkg/logger"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage"
	"github.com/himanishpuri/MapVault/pkg/models"
)

// Options configures both queues of a Scheduler.
type Options struct {
	MaxConcurrency  int
	RetryBudget     int
	RecordCacheSize int
	ImageCacheSize  int
	Log             logger.Interface
	Metrics         *metrics.Metrics
}

// Scheduler bundles the metadata and cover loaders that serve a map list.
type Scheduler struct {
	Records *Loader[*models.MapRecord]
	Images  *Loader[*ImageHandle]
}

func NewScheduler(store storage.ContentStore, opts Options) (*Scheduler, error) {
	log := opts.Log
	if log == nil {
		log = logger.GetLogger().Named("loader")
	}

	records, err := New(FetchRecord(store), Config[*models.MapRecord]{
		Name:           "records",
		MaxConcurrency: opts.MaxConcurrency,
		RetryBudget:    opts.RetryBudget,
		CacheSize:      opts.RecordCacheSize,
		Log:            log,
		Metrics:        opts.Metrics.Queue("records"),
	})
	if err != nil {
		return nil, err
	}

	images, err := New(FetchImage(store), Config[*ImageHandle]{
		Name:           "images",
		MaxConcurrency: opts.MaxConcurrency,
		RetryBudget:    opts.RetryBudget,
		CacheSize:      opts.ImageCacheSize,
		Release:        (*ImageHandle).Release,
		Log:            log,
		Metrics:        opts.Metrics.Queue("images"),
	})
	if err != nil {
		return nil, err
	}

	return &Scheduler{Records: records, Images: images}, nil
}

// Request queues id on both loaders.
func (s *Scheduler) Request(id string, visible bool) {
	s.Records.Request(id, visible)
	s.Images.Request(id, visible)
}

// SetVisible updates the visible set of both loaders.
func (s *Scheduler) SetVisible(ids []string) {
	s.Records.SetVisible(ids)
	s.Images.SetVisible(ids)
}

// Invalidate drops id from both loaders.
func (s *Scheduler) Invalidate(id string) {
	s.Records.Invalidate(id)
	s.Images.Invalidate(id)
}

func (s *Scheduler) WaitIdle(ctx context.Context) error {
	if err := s.Records.WaitIdle(ctx); err != nil {
		return err
	}
	return s.Images.WaitIdle(ctx)
}

func (s *Scheduler) Shutdown(ctx context.Context) error {
	return errors.Join(s.Records.Shutdown(ctx), s.Images.Shutdown(ctx))
}
