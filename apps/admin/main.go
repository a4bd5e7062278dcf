package main

import (
	"context"
	"fmt"
	"log"
	"os"

	dig_container "github.com/Digmusic88/MWPanel3.1--sub000/apps/api/di/dig"
	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
	logsvc "github.com/Digmusic88/MWPanel3.1--sub000/services/logger"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up storage
	storage, err := dig_container.OpenStorage(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		conf:     conf,
		storage:  storage,
		usrSvc:   user.NewService(storage.Users),
		tokens:   user.NewTokenIssuer(conf.AppName, conf.SecretKey, conf.Server.JWTExpirationDelta),
		validate: validate,
		logger:   logger,
		in:       os.Stdin,
		out:      os.Stdout,
	}
	if conf.Storage.Backend == core.StoragePostgres {
		cli.db = storage.DB.DB
	}

	err = cli.run(os.Args)
	if cErr := storage.Close(); cErr != nil {
		logger.Error("closing storage", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
