package mapvault

import (
	"github.com/himanishpuri/MapVault/internal/metrics"
	"github.com/himanishpuri/MapVault/pkg/mapvault/catalog"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage"
)

type Config struct {
	Backend         string
	DBPath          string
	BlobURL         string
	RetryBudget     int
	MaxConcurrency  int
	SearchBatchSize int
	RecordCacheSize int
	ImageCacheSize  int
	Logger          Logger
	Storage         Storage
	Player          Player
	Catalog         *catalog.Client
	Metrics         *metrics.Metrics
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithBackend selects the content store backend ("sqlite" or "blob").
func WithBackend(backend string) Option {
	return func(c *Config) {
		c.Backend = backend
	}
}

func WithBlobURL(url string) Option {
	return func(c *Config) {
		c.Backend = storage.BackendBlob
		c.BlobURL = url
	}
}

// WithStorage uses an already opened store. The service closes it on Close.
func WithStorage(s Storage) Option {
	return func(c *Config) {
		c.Storage = s
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithRetryBudget(n int) Option {
	return func(c *Config) {
		c.RetryBudget = n
	}
}

func WithMaxConcurrency(n int) Option {
	return func(c *Config) {
		c.MaxConcurrency = n
	}
}

func WithSearchBatchSize(n int) Option {
	return func(c *Config) {
		c.SearchBatchSize = n
	}
}

// WithRecordCacheSize bounds the record cache with an LRU. 0 keeps every
// loaded record.
func WithRecordCacheSize(n int) Option {
	return func(c *Config) {
		c.RecordCacheSize = n
	}
}

// WithImageCacheSize bounds the decoded cover cache with an LRU.
func WithImageCacheSize(n int) Option {
	return func(c *Config) {
		c.ImageCacheSize = n
	}
}

func WithPlayer(p Player) Option {
	return func(c *Config) {
		c.Player = p
	}
}

func WithCatalog(client *catalog.Client) Option {
	return func(c *Config) {
		c.Catalog = client
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

func defaultConfig() *Config {
	return &Config{
		Backend: storage.BackendSQLite,
		DBPath:  storage.DefaultDBFile,
	}
}
