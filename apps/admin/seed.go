package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	dig_container "github.com/Digmusic88/MWPanel3.1--sub000/apps/api/di/dig"
	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	dummydb "github.com/Digmusic88/MWPanel3.1--sub000/storage/database/dummy"
)

var (
	errDemoStorage = errors.New("the demo storage is seeded at every API start")
	errNotEmpty    = errors.New("the school already has levels, refusing to seed")
)

// seed loads the demo school into a persistent storage that has no academic data yet.
func (cli *commandLine) seed() error {
	if cli.storage.Backend == core.StorageDemo {
		return errDemoStorage
	}
	ctx := context.Background()
	eng, err := dig_container.NewEngine(ctx, cli.conf, cli.storage, cli.usrSvc, cli.validate, cli.logger, nil)
	if err != nil {
		return err
	}
	if len(eng.ListLevels()) > 0 {
		return errNotEmpty
	}

	demo, err := dummydb.Seed(ctx, cli.usrSvc, eng)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "seeded %d levels, %d groups and %d students; admin: %s (%s)\n",
		len(demo.Levels), len(demo.Groups), len(demo.Students), demo.Admin.Email, demo.Admin.ID)
	return nil
}
