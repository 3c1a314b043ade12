package mapvault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/himanishpuri/MapVault/internal/metrics"
	"github.com/himanishpuri/MapVault/pkg/logger"
	"github.com/himanishpuri/MapVault/pkg/mapvault/format"
	"github.com/himanishpuri/MapVault/pkg/mapvault/ingest"
	"github.com/himanishpuri/MapVault/pkg/mapvault/loader"
	"github.com/himanishpuri/MapVault/pkg/mapvault/search"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage"
	"github.com/himanishpuri/MapVault/pkg/models"
)

// shutdownTimeout bounds how long Close waits for in-flight fetches.
const shutdownTimeout = 10 * time.Second

// vaultService is the default implementation of the Service interface.
type vaultService struct {
	store     Storage
	log       Logger
	config    *Config
	pipeline  *ingest.Pipeline
	scheduler *loader.Scheduler
	engine    *search.Engine
	selects   singleflight.Group
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	// Set default logger if none provided
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New("")
	}

	// Create or use provided storage
	store := cfg.Storage
	if store == nil {
		var err error
		store, err = storage.Open(context.Background(), storage.Config{
			Backend: cfg.Backend,
			DBPath:  cfg.DBPath,
			BlobURL: cfg.BlobURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	sched, err := loader.NewScheduler(store, loader.Options{
		MaxConcurrency:  cfg.MaxConcurrency,
		RetryBudget:     cfg.RetryBudget,
		RecordCacheSize: cfg.RecordCacheSize,
		ImageCacheSize:  cfg.ImageCacheSize,
		Log:             cfg.Logger,
		Metrics:         cfg.Metrics,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	pipeline := ingest.New(store, cfg.Logger)
	pipeline.Metrics = cfg.Metrics

	engine := search.NewEngine(store, sched.Records,
		search.WithBatchSize(cfg.SearchBatchSize),
		search.WithLogger(cfg.Logger),
		search.WithMetrics(cfg.Metrics),
	)

	return &vaultService{
		store:     store,
		log:       cfg.Logger,
		config:    cfg,
		pipeline:  pipeline,
		scheduler: sched,
		engine:    engine,
	}, nil
}

func (s *vaultService) Metrics() *metrics.Metrics {
	return s.config.Metrics
}

func (s *vaultService) Ingest(ctx context.Context, data []byte, online *ingest.OnlineMetadata) (*models.MapRecord, error) {
	rec, err := s.pipeline.Ingest(ctx, data, online)
	if err != nil {
		return nil, err
	}
	s.forget(rec.ID)
	return rec, nil
}

func (s *vaultService) ImportFiles(ctx context.Context, paths []string) *ingest.Report {
	report := s.pipeline.ImportFiles(ctx, paths)
	for _, rec := range report.Imported {
		s.forget(rec.ID)
	}
	return report
}

// forget drops stale cached copies of a re-ingested map.
func (s *vaultService) forget(id string) {
	s.scheduler.Invalidate(id)
	s.engine.Forget(id)
}

// ImportFromCatalog downloads and ingests every catalog entry with a download
// link. Failures are reported per catalog id.
func (s *vaultService) ImportFromCatalog(ctx context.Context) (*ingest.Report, error) {
	if s.config.Catalog == nil {
		return nil, ErrNoCatalog
	}

	candidates, err := s.config.Catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &ingest.Report{Failed: make(map[string]error)}
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if cand.DownloadURL == "" {
			s.log.Debugf("Catalog entry %s has no download link", cand.ID)
			continue
		}

		data, err := s.config.Catalog.Download(ctx, cand.DownloadURL)
		if err != nil {
			s.log.Warnf("Failed to download %s: %v", cand.ID, err)
			report.Failed[cand.ID] = err
			continue
		}

		stars := cand.StarRating
		status := cand.OnlineStatus()
		rec, err := s.Ingest(ctx, data, &ingest.OnlineMetadata{StarRating: &stars, Status: &status})
		if err != nil {
			s.log.Warnf("Failed to ingest %s: %v", cand.ID, err)
			report.Failed[cand.ID] = err
			continue
		}
		report.Imported = append(report.Imported, rec)
	}

	s.log.Infof("Imported %d catalog maps, %d failed", len(report.Imported), len(report.Failed))
	return report, nil
}

func (s *vaultService) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.store.Keys(ctx, storage.KindMetadata)
	if err != nil {
		return nil, fmt.Errorf("failed to list maps: %w", err)
	}
	return keys, nil
}

func (s *vaultService) Record(ctx context.Context, id string) (*models.MapRecord, error) {
	if rec, ok := s.scheduler.Records.Get(id); ok {
		return rec, nil
	}
	data, err := s.store.Get(ctx, storage.KindMetadata, id)
	if errors.Is(err, storage.ErrBlobMissing) {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata for %s: %w", id, err)
	}
	return models.DecodeRecord(data)
}

// Payload returns nil, nil when nothing (or an empty value) is stored.
func (s *vaultService) Payload(ctx context.Context, kind storage.Kind, id string) ([]byte, error) {
	data, err := s.store.Get(ctx, kind, id)
	if errors.Is(err, storage.ErrBlobMissing) || (err == nil && len(data) == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s for %s: %w", kind, id, err)
	}
	return data, nil
}

func (s *vaultService) Export(ctx context.Context, id string, legacy bool) ([]byte, error) {
	sel, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if legacy {
		return format.EncodeLegacy(sel.Record, sel.Audio, sel.Cover)
	}
	return format.EncodeCurrent(sel.Record, sel.Audio, sel.Cover)
}

func (s *vaultService) Scheduler() *loader.Scheduler {
	return s.scheduler
}

func (s *vaultService) Search(ctx context.Context, query string, onProgress search.ProgressFunc) ([]string, error) {
	ids, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.Search(ctx, ids, query, onProgress)
}

func (s *vaultService) ClearSearchCache() {
	s.engine.ClearCache()
}

// SelectMap loads a map outside the scheduler queues and hands it to the
// player. Concurrent selections of one id share a single read.
func (s *vaultService) SelectMap(ctx context.Context, id string) (*Selection, error) {
	v, err, _ := s.selects.Do(id, func() (any, error) {
		return s.load(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	sel := v.(*Selection)

	if s.config.Player != nil {
		if err := s.config.Player.Load(ctx, sel); err != nil {
			return nil, fmt.Errorf("player rejected %s: %w", id, err)
		}
	}
	s.log.Infof("Selected %s (%s)", id, sel.Record.Title)
	return sel, nil
}

func (s *vaultService) load(ctx context.Context, id string) (*Selection, error) {
	// 1. Metadata
	rec, err := s.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	sel := &Selection{Record: rec}

	// 2. Audio, probed when it is WAV. The record flags decide whether a
	// payload belongs to the current ingestion.
	if rec.HasAudio {
		if sel.Audio, err = s.Payload(ctx, storage.KindAudio, id); err != nil {
			return nil, err
		}
	}
	if sel.Audio != nil {
		if sel.AudioInfo, err = probeAudio(sel.Audio); err != nil {
			s.log.Warnf("Audio of %s: %v", id, err)
		}
	}

	// 3. Cover
	if rec.HasCover {
		if sel.Cover, err = s.Payload(ctx, storage.KindImage, id); err != nil {
			return nil, err
		}
	}
	return sel, nil
}

func (s *vaultService) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(s.scheduler.Shutdown(ctx), s.store.Close())
}
