package sqliterepos

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	kind    TEXT NOT NULL,
	id      TEXT NOT NULL,
	payload BLOB NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE TABLE IF NOT EXISTS users (
	id      TEXT PRIMARY KEY,
	email   TEXT NOT NULL UNIQUE,
	payload BLOB NOT NULL
);`

// Open opens (creating it when missing) the SQLite database file at path.
// Records are stored as JSON documents keyed by kind and id.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	if path == "" {
		path = "mwpanel.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Wrap(err, "creating database directory")
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite")
	}
	// a single connection serialises writers
	db.SetMaxOpenConns(1)
	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating sqlite schema")
	}
	return db, nil
}
