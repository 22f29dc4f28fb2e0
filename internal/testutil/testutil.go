package testutil

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pratik-mahalle/wiman/internal/pkg/logger"
	"github.com/pratik-mahalle/wiman/migrations"
)

var dbCounter int64

// Epoch is the fixed start time used by lifecycle tests
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// NewTestDB creates an in-memory SQLite database with the real schema applied
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	// Shared-cache name keeps every connection of this handle on the same database
	name := fmt.Sprintf("file:wiman_test_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)",
		atomic.AddInt64(&dbCounter, 1))
	db, err := sqlx.Open("sqlite", name)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := applySchema(db, migrations.GetFS()); err != nil {
		db.Close()
		t.Fatalf("Failed to apply schema: %v", err)
	}

	return db
}

func applySchema(db *sqlx.DB, fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		content, err := fs.ReadFile(fsys, f)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
	}
	return nil
}

// CleanupDB closes the test database
func CleanupDB(db *sqlx.DB) {
	if db != nil {
		db.Close()
	}
}

// NewTestLogger returns a logger that only prints errors
func NewTestLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}
