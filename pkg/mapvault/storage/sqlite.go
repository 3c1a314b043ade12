//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "mapvault.sqlite3"
const errDBClientNil = "db client is nil"

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Blob is one stored value. CreatedAt survives overwrites so that Keys keeps a
// stable first-insertion order.
type Blob struct {
	Kind      string `gorm:"primaryKey;type:varchar(16)"`
	Key       string `gorm:"primaryKey;column:blob_key;type:varchar(255)"`
	Data      []byte
	Size      int
	CreatedAt time.Time `gorm:"index:idx_blob_order"`
	UpdatedAt time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("MAPVAULT_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Blob{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) Get(ctx context.Context, kind Kind, key string) ([]byte, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	if err := checkKind(kind); err != nil {
		return nil, err
	}

	var b Blob
	err := c.DB.WithContext(ctx).
		Where("kind = ? AND blob_key = ?", string(kind), key).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s/%s: %w", kind, key, ErrBlobMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s/%s: %w", kind, key, err)
	}
	return b.Data, nil
}

func (c *DBClient) Set(ctx context.Context, kind Kind, key string, value []byte) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if err := checkKind(kind); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("empty key for %s store", kind)
	}

	b := Blob{Kind: string(kind), Key: key, Data: value, Size: len(value)}
	err := c.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "blob_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "size", "updated_at"}),
	}).Create(&b).Error
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", kind, key, err)
	}
	return nil
}

func (c *DBClient) Keys(ctx context.Context, kind Kind) ([]string, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	if err := checkKind(kind); err != nil {
		return nil, err
	}

	keys := make([]string, 0)
	err := c.DB.WithContext(ctx).Model(&Blob{}).
		Where("kind = ?", string(kind)).
		Order("created_at, blob_key").
		Pluck("blob_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("listing %s keys: %w", kind, err)
	}
	return keys, nil
}
