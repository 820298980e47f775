// Package sqlite provides a SQLite-backed ChatStore for local development
// and tests. Production deployments use the postgres backend.
package sqlite

import (
	"context"
	"fmt"

	"github.com/brokerdesk/whatsapp-service/internal/config"
	"github.com/brokerdesk/whatsapp-service/internal/model"
	"github.com/brokerdesk/whatsapp-service/internal/plugin/store/gormstore"
	registrymigrate "github.com/brokerdesk/whatsapp-service/internal/registry/migrate"
	registrystore "github.com/brokerdesk/whatsapp-service/internal/registry/store"
	"github.com/charmbracelet/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "sqlite",
		Loader: func(ctx context.Context) (registrystore.ChatStore, error) {
			cfg := config.FromContext(ctx)
			db, err := Open(cfg.DBURL)
			if err != nil {
				return nil, err
			}
			return gormstore.New(db), nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &sqliteMigrator{}})
}

// Open opens a SQLite database and applies the schema. SQLite has no
// separate migration script; gorm's AutoMigrate derives it from the models.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(
		&model.Lead{},
		&model.Conversation{},
		&model.Message{},
		&model.ConversationRead{},
		&model.UserRole{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return db, nil
}

type sqliteMigrator struct{}

func (m *sqliteMigrator) Name() string { return "sqlite-schema" }

func (m *sqliteMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.DatastoreMigrateAtStart {
		return nil
	}
	if cfg.DatastoreType != "sqlite" {
		return nil
	}
	log.Info("Running migration", "name", m.Name())
	db, err := Open(cfg.DBURL)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0
