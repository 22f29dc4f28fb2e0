// Package migrations carries the schema as ordered SQL files applied by
// postgres.RunMigrations. Files must stay portable across sqlite and postgres.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var sqlFiles embed.FS

// GetFS exposes the numbered *.sql files at the root of the returned FS
func GetFS() fs.FS {
	return sqlFiles
}
