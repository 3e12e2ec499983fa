package database

import (
	"path/filepath"
	"testing"
	"time"

	"battdevy/internal/inventory"

	"github.com/google/uuid"
)

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		dsn     string
		want    Dialect
		wantErr bool
	}{
		{dsn: "postgres://u:p@localhost:5432/battdevy", want: DialectPostgres},
		{dsn: "postgresql://localhost/battdevy?sslmode=disable", want: DialectPostgres},
		{dsn: "host=localhost user=u dbname=battdevy", want: DialectPostgres},
		{dsn: "file:battdevy.db", want: DialectSQLite},
		{dsn: "sqlite://data/battdevy.db", want: DialectSQLite},
		{dsn: "battdevy.db", want: DialectSQLite},
		{dsn: "", wantErr: true},
		{dsn: "mysql://root@localhost/battdevy", wantErr: true},
	}
	for _, tt := range tests {
		got, err := DetectDialect(tt.dsn)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error, got %s", tt.dsn, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.dsn, err)
		}
		if got != tt.want {
			t.Fatalf("%q: expected %s, got %s", tt.dsn, tt.want, got)
		}
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"file:battdevy.db", "file:battdevy.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"file:battdevy.db?mode=rwc", "file:battdevy.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"file:battdevy.db?_pragma=busy_timeout(100)", "file:battdevy.db?_pragma=busy_timeout(100)&_pragma=foreign_keys(1)"},
	}
	for _, tt := range tests {
		if got := sqliteDSN(tt.dsn); got != tt.want {
			t.Fatalf("%q: expected %q, got %q", tt.dsn, tt.want, got)
		}
	}
}

func TestSQLiteForeignKeysSurviveReconnect(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "battdevy.db")
	db, _, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// drop idle connections so each query dials a fresh one
	sqlDB.SetMaxIdleConns(0)

	for i := 0; i < 2; i++ {
		var enabled int
		if err := db.Raw("PRAGMA foreign_keys").Scan(&enabled).Error; err != nil {
			t.Fatalf("PRAGMA foreign_keys: %v", err)
		}
		if enabled != 1 {
			t.Fatalf("query %d: expected foreign_keys on, got %d", i, enabled)
		}
	}
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "battdevy.db")
	db, dialect, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	if dialect != DialectSQLite {
		t.Fatalf("expected sqlite, got %s", dialect)
	}

	if err := Migrate(db, dialect); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// idempotent
	if err := Migrate(db, dialect); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	for _, table := range []string{"users", "user_plans", "battery_groups", "batteries", "devices", "battery_usage_history"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
	if !db.Migrator().HasIndex("battery_usage_history", "idx_usage_history_open_battery") {
		t.Fatal("missing open occupancy index")
	}
}

func TestOpenOccupancyIsUnique(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "battdevy.db")
	db, dialect, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	if err := Migrate(db, dialect); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	userID, batteryID := uuid.New(), uuid.New()
	now := time.Now().UTC()
	open := func() *inventory.UsageHistoryRecord {
		return &inventory.UsageHistoryRecord{UserID: userID, BatteryID: batteryID, DeviceID: uuid.New(), StartedAt: now}
	}
	if err := db.Create(open()).Error; err != nil {
		t.Fatalf("first open record: %v", err)
	}
	if err := db.Create(open()).Error; err == nil {
		t.Fatal("expected second open record for the same battery to fail")
	}

	ended := open()
	ended.EndedAt = &now
	if err := db.Create(ended).Error; err != nil {
		t.Fatalf("closed record should be allowed: %v", err)
	}
}
