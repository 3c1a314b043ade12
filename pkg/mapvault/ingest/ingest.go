// Package ingest turns raw map binaries into content-store entries.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/MapVault/internal/metrics"
	"github.com/himanishpuri/MapVault/pkg/logger"
	"github.com/himanishpuri/MapVault/pkg/mapvault/format"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage"
	"github.com/himanishpuri/MapVault/pkg/models"
)

// MapExtension is the file extension ImportDir looks for.
const MapExtension = ".sspm"

// DefaultParallelism bounds how many files ImportFiles reads and parses at once.
const DefaultParallelism = 4

// OnlineMetadata carries catalog attributes that are not part of the binary.
// Nil fields leave the parsed values alone.
type OnlineMetadata struct {
	StarRating *float64
	Status     *models.OnlineStatus
}

// Pipeline writes normalized maps into a content store.
type Pipeline struct {
	Store       storage.ContentStore
	Log         logger.Interface
	Metrics     *metrics.Metrics
	Parallelism int
}

func New(store storage.ContentStore, log logger.Interface) *Pipeline {
	if log == nil {
		log = logger.GetLogger().Named("ingest")
	}
	return &Pipeline{Store: store, Log: log, Parallelism: DefaultParallelism}
}

// Ingest normalizes data and stores audio, cover and metadata, in that order.
// Metadata goes last so a partial write leaves the map invisible. Re-ingesting
// an id overwrites every part the new binary carries.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, online *OnlineMetadata) (*models.MapRecord, error) {
	m, err := format.Normalize(data)
	if err != nil {
		p.Metrics.ObserveIngest("", len(data), err)
		return nil, err
	}
	err = p.store(ctx, m, online)
	p.Metrics.ObserveIngest(m.Variant, len(data), err)
	if err != nil {
		return nil, err
	}
	return m.Record, nil
}

func (p *Pipeline) store(ctx context.Context, m *format.Map, online *OnlineMetadata) error {
	rec := m.Record
	if online != nil {
		if online.StarRating != nil {
			rec.StarRating = *online.StarRating
		}
		if online.Status != nil {
			rec.OnlineStatus = *online.Status
		}
	}

	// 1. Audio. An empty value clears audio left by an earlier ingestion.
	if err := p.Store.Set(ctx, storage.KindAudio, rec.ID, m.Audio); err != nil {
		return fmt.Errorf("failed to store audio for %s: %w", rec.ID, err)
	}

	// 2. Cover, cleared the same way
	if err := p.Store.Set(ctx, storage.KindImage, rec.ID, m.Cover); err != nil {
		return fmt.Errorf("failed to store cover for %s: %w", rec.ID, err)
	}

	// 3. Metadata
	meta, err := models.EncodeRecord(rec)
	if err != nil {
		return err
	}
	if err := p.Store.Set(ctx, storage.KindMetadata, rec.ID, meta); err != nil {
		return fmt.Errorf("failed to store metadata for %s: %w", rec.ID, err)
	}

	p.Log.Infof("Ingested %s (%s, %d notes, %s variant)", rec.ID, rec.Title, rec.NoteCount, m.Variant)
	return nil
}

// Report summarizes a batch import.
type Report struct {
	Imported []*models.MapRecord
	Failed   map[string]error
}

func (r *Report) fail(path string, err error) {
	if r.Failed == nil {
		r.Failed = make(map[string]error)
	}
	r.Failed[path] = err
}

// ImportFiles reads and parses paths concurrently, then writes them one by one
// in input order. A bad file is recorded in the report and skipped.
func (p *Pipeline) ImportFiles(ctx context.Context, paths []string) *Report {
	type parsed struct {
		m    *format.Map
		size int
		err  error
	}
	results := make([]parsed, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	limit := p.Parallelism
	if limit <= 0 {
		limit = DefaultParallelism
	}
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				results[i].err = fmt.Errorf("failed to read file: %w", err)
				return nil
			}
			results[i].size = len(data)
			results[i].m, results[i].err = format.Normalize(data)
			return nil
		})
	}
	_ = g.Wait() // workers record errors per file and never fail the group

	report := &Report{}
	for i, path := range paths {
		res := results[i]
		if res.err == nil {
			res.err = ctx.Err()
		}
		if res.err != nil {
			if errors.Is(res.err, format.ErrUnparseableFormat) {
				p.Metrics.ObserveIngest("", res.size, res.err)
			}
			p.Log.Warnf("Skipping %s: %v", path, res.err)
			report.fail(path, res.err)
			continue
		}
		err := p.store(ctx, res.m, nil)
		p.Metrics.ObserveIngest(res.m.Variant, res.size, err)
		if err != nil {
			p.Log.Errorf("Failed to import %s: %v", path, err)
			report.fail(path, err)
			continue
		}
		report.Imported = append(report.Imported, res.m.Record)
	}

	p.Log.Infof("Imported %d/%d files", len(report.Imported), len(paths))
	return report
}

// ImportDir imports every map file under dir, recursively, in lexical order.
func (p *Pipeline) ImportDir(ctx context.Context, dir string) (*Report, error) {
	paths, err := FindMaps(dir)
	if err != nil {
		return nil, err
	}
	return p.ImportFiles(ctx, paths), nil
}

// FindMaps lists map files under dir.
func FindMaps(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), MapExtension) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return paths, nil
}
