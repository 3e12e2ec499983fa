package database

import (
	"embed"
	"fmt"

	"battdevy/internal/auth"
	"battdevy/internal/inventory"
	"battdevy/internal/plan"

	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Models lists every table the server owns.
func Models() []interface{} {
	models := []interface{}{&auth.User{}, &plan.UserPlan{}}
	return append(models, inventory.Models()...)
}

// Migrate creates the tables with AutoMigrate and then applies the
// constraints GORM tags cannot express. Postgres gets them through goose
// versioned migrations; SQLite gets the equivalent indexes directly.
func Migrate(db *gorm.DB, dialect Dialect) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	switch dialect {
	case DialectPostgres:
		if err := runGoose(db); err != nil {
			return err
		}
	default:
		if err := createSQLiteIndexes(db); err != nil {
			return err
		}
	}

	log.Info("✅ Database migrated")
	return nil
}

func runGoose(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func createSQLiteIndexes(db *gorm.DB) error {
	// At most one open occupancy per battery
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_usage_history_open_battery
		ON battery_usage_history (battery_id) WHERE ended_at IS NULL
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_devices_user_has_batteries
		ON devices (user_id, has_batteries)
	`).Error; err != nil {
		return err
	}

	return nil
}
