package repo

import (
	"path/filepath"
	"testing"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "nope", "app.db"))
	if err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}

func TestOpenSQLite_AndAutoMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	for _, model := range []any{
		&domain.User{}, &domain.Debate{}, &domain.Message{},
		&domain.Definition{}, &domain.Analysis{}, &domain.Idempotency{},
	} {
		if !db.Migrator().HasTable(model) {
			t.Fatalf("missing table for %T", model)
		}
	}

	var fk int
	if err := db.Raw("PRAGMA foreign_keys;").Scan(&fk).Error; err != nil {
		t.Fatalf("read pragma: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys pragma = %d, want 1", fk)
	}
}
