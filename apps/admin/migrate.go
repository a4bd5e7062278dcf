package main

import (
	"database/sql"
	"errors"

	"github.com/trezcool/goose"

	appfs "github.com/Digmusic88/MWPanel3.1--sub000/fs"
)

var (
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error { // mockable
		return goose.RunFS(command, db, appfs.FS, dir, args...)
	}

	errNoSQLDatabase = errors.New("migrations only apply to the postgres storage backend")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, "migrations", arguments...)
}
