// Package config loads MapVault settings from defaults, an optional
// mapvault.yaml and MAPVAULT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/himanishpuri/MapVault/pkg/logger"
	"github.com/himanishpuri/MapVault/pkg/mapvault"
	"github.com/himanishpuri/MapVault/pkg/mapvault/catalog"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage"
)

const EnvPrefix = "MAPVAULT"

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Loader  LoaderConfig
	Search  SearchConfig
	Catalog CatalogConfig
}

type ServerConfig struct {
	Addr     string
	LogLevel string
}

type StorageConfig struct {
	Backend string
	DBPath  string
	BlobURL string
}

type LoaderConfig struct {
	RetryBudget     int
	MaxConcurrency  int
	RecordCacheSize int
	ImageCacheSize  int
}

type SearchConfig struct {
	BatchSize int
}

type CatalogConfig struct {
	URL         string
	MaxDownload int64
}

// New returns a viper instance with defaults and environment bindings set.
// Flags can be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetConfigName("mapvault")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables: MAPVAULT_STORAGE_DB_PATH -> storage.db_path
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.log_level", "LOG_LEVEL", EnvPrefix+"_SERVER_LOG_LEVEL")
	_ = v.BindEnv("storage.db_path", EnvPrefix+"_STORAGE_DB_PATH", EnvPrefix+"_DB_PATH")

	// Defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("storage.backend", storage.BackendSQLite)
	v.SetDefault("storage.db_path", storage.DefaultDBFile)
	v.SetDefault("storage.blob_url", "")
	v.SetDefault("loader.retry_budget", 3)
	v.SetDefault("loader.max_concurrency", 1)
	v.SetDefault("loader.record_cache_size", 0)
	v.SetDefault("loader.image_cache_size", 0)
	v.SetDefault("search.batch_size", 20)
	v.SetDefault("catalog.url", "")
	v.SetDefault("catalog.max_download", catalog.DefaultMaxDownload)

	return v
}

// Load reads the optional config file and builds a Config. A missing file is
// fine; a malformed one is not.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:     v.GetString("server.addr"),
			LogLevel: v.GetString("server.log_level"),
		},
		Storage: StorageConfig{
			Backend: v.GetString("storage.backend"),
			DBPath:  v.GetString("storage.db_path"),
			BlobURL: v.GetString("storage.blob_url"),
		},
		Loader: LoaderConfig{
			RetryBudget:     v.GetInt("loader.retry_budget"),
			MaxConcurrency:  v.GetInt("loader.max_concurrency"),
			RecordCacheSize: v.GetInt("loader.record_cache_size"),
			ImageCacheSize:  v.GetInt("loader.image_cache_size"),
		},
		Search: SearchConfig{
			BatchSize: v.GetInt("search.batch_size"),
		},
		Catalog: CatalogConfig{
			URL:         v.GetString("catalog.url"),
			MaxDownload: v.GetInt64("catalog.max_download"),
		},
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case storage.BackendSQLite:
	case storage.BackendBlob:
		if c.Storage.BlobURL == "" {
			errs = append(errs, errors.New("storage.blob_url is required for the blob backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	if c.Loader.RetryBudget < 1 {
		errs = append(errs, errors.New("loader.retry_budget must be at least 1"))
	}
	if c.Loader.MaxConcurrency < 1 {
		errs = append(errs, errors.New("loader.max_concurrency must be at least 1"))
	}
	if c.Loader.RecordCacheSize < 0 || c.Loader.ImageCacheSize < 0 {
		errs = append(errs, errors.New("loader cache sizes cannot be negative"))
	}
	if c.Search.BatchSize < 1 {
		errs = append(errs, errors.New("search.batch_size must be at least 1"))
	}
	return errors.Join(errs...)
}

// ServiceOptions translates the config into service options.
func (c *Config) ServiceOptions(log logger.Interface) []mapvault.Option {
	opts := []mapvault.Option{
		mapvault.WithBackend(c.Storage.Backend),
		mapvault.WithDBPath(c.Storage.DBPath),
		mapvault.WithRetryBudget(c.Loader.RetryBudget),
		mapvault.WithMaxConcurrency(c.Loader.MaxConcurrency),
		mapvault.WithRecordCacheSize(c.Loader.RecordCacheSize),
		mapvault.WithImageCacheSize(c.Loader.ImageCacheSize),
		mapvault.WithSearchBatchSize(c.Search.BatchSize),
		mapvault.WithLogger(log),
	}
	if c.Storage.Backend == storage.BackendBlob {
		opts = append(opts, mapvault.WithBlobURL(c.Storage.BlobURL))
	}
	if c.Catalog.URL != "" {
		client := catalog.NewClient(c.Catalog.URL, log)
		client.MaxDownload = c.Catalog.MaxDownload
		opts = append(opts, mapvault.WithCatalog(client))
	}
	return opts
}
