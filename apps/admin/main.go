package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/acadmeter/acadmeter/core"
	"github.com/acadmeter/acadmeter/core/user"
	emailsvc "github.com/acadmeter/acadmeter/services/email"
	logsvc "github.com/acadmeter/acadmeter/services/logger"
	"github.com/acadmeter/acadmeter/services/ratelimit"
	"github.com/acadmeter/acadmeter/storage/database"
	sqlxrepos "github.com/acadmeter/acadmeter/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	rollbarLogger := logsvc.NewRollbarLogger(stdLogger, conf)
	rollbarLogger.Enable(!conf.Debug)
	logger = rollbarLogger

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)

	validate := validator.New()
	errAndDie(core.InitValidators(validate, core.NewTranslator()))

	// start CLI
	cli := commandLine{
		db: db.DB,
		usrSvc: user.NewService(
			sqlxrepos.NewUserRepository(db),
			user.NewTokenManager(conf),
			emailsvc.NewConsoleService(conf, logger),
			ratelimit.Noop{},
			validate,
			conf,
		),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", errors.Cause(err))
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
