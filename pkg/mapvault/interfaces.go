package mapvault

import (
	"context"

	"github.com/himanishpuri/MapVault/internal/metrics"
	"github.com/himanishpuri/MapVault/pkg/logger"
	"github.com/himanishpuri/MapVault/pkg/mapvault/ingest"
	"github.com/himanishpuri/MapVault/pkg/mapvault/loader"
	"github.com/himanishpuri/MapVault/pkg/mapvault/search"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage"
	"github.com/himanishpuri/MapVault/pkg/models"
)

type Service interface {
	// Ingest stores one map binary. online may be nil.
	Ingest(ctx context.Context, data []byte, online *ingest.OnlineMetadata) (*models.MapRecord, error)
	ImportFiles(ctx context.Context, paths []string) *ingest.Report
	ImportFromCatalog(ctx context.Context) (*ingest.Report, error)

	// Keys lists stored map ids in insertion order.
	Keys(ctx context.Context) ([]string, error)
	// Record returns a map's metadata from the scheduler cache or the store.
	Record(ctx context.Context, id string) (*models.MapRecord, error)
	// Payload returns raw audio or cover bytes.
	Payload(ctx context.Context, kind storage.Kind, id string) ([]byte, error)
	// Export rebuilds a map binary from stored parts.
	Export(ctx context.Context, id string, legacy bool) ([]byte, error)

	Scheduler() *loader.Scheduler
	Search(ctx context.Context, query string, onProgress search.ProgressFunc) ([]string, error)
	ClearSearchCache()

	SelectMap(ctx context.Context, id string) (*Selection, error)
	// Metrics exposes the service's Prometheus registry.
	Metrics() *metrics.Metrics
	Close() error
}

// Storage is the content store the service reads and writes.
type Storage = storage.ContentStore

type Logger = logger.Interface

// Player receives a selected map. Playback controls live with the player.
type Player interface {
	Load(ctx context.Context, sel *Selection) error
}
