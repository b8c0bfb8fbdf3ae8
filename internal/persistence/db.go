// Package persistence keeps room snapshots in a SQL database: postgres on servers, sqlite on devices and in tests.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zhulik/pal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"roomfeed/internal/config"
)

type DB struct {
	Logger *slog.Logger
	Config *config.Config

	db *gorm.DB
}

func Provide() pal.ServiceDef {
	return pal.Provide(&DB{})
}

func (db *DB) Init(ctx context.Context) error {
	db.Logger = db.Logger.With("component", "persistence.DB")

	gormDB, err := gorm.Open(dialector(db.Config.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(&Snapshot{}); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	db.db = gormDB
	db.Logger.Info("database ready", "dialect", gormDB.Dialector.Name())

	return nil
}

func (db *DB) Model(a any) *gorm.DB {
	return db.db.Model(a)
}

func (db *DB) DB() (*sql.DB, error) {
	return db.db.DB()
}

func (db *DB) HealthCheck(ctx context.Context) error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (db *DB) Shutdown(_ context.Context) error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return nil
	}
	return sqlDB.Close()
}

// Cache returns the snapshot cache backed by this database.
func (db *DB) Cache() *SnapshotCache {
	return &SnapshotCache{DB: db}
}

// dialector picks postgres for postgres URLs and keyword DSNs, sqlite for everything else.
func dialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return postgres.Open(dsn)
	}
	if dsn == "" {
		dsn = "roomfeed.db"
	}
	return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
}
