package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // /debug/pprof on the default mux

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	dig_container "github.com/acadmeter/acadmeter/apps/api/di/dig"
	echoapi "github.com/acadmeter/acadmeter/apps/api/echo"
	"github.com/acadmeter/acadmeter/core"
	"github.com/acadmeter/acadmeter/core/user"
)

// application is everything main needs out of the container.
type application struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	DBLogger   core.Logger `name:"dbLogger"`
	DB         *sqlx.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Server     *echoapi.Server
}

func startWithDig() {
	c := dig_container.New()
	if err := c.Invoke(run); err != nil {
		log.Fatal(err)
	}
}

func run(app application) error {
	logger := app.Logger
	logger.Info(fmt.Sprintf("AcadMeter API %s starting (env %s)", app.Conf.Build, app.Conf.Env))

	if err := prepareAuth(app); err != nil {
		return errors.Wrap(err, "preparing auth")
	}
	defer func() {
		if err := app.DB.Close(); err != nil {
			app.DBLogger.Error("closing database", err)
		}
		logger.Info("AcadMeter API stopped")
	}()

	serveDebug(app.Conf, logger)
	go app.Server.Start()

	select {
	case err := <-app.Server.Errors():
		logger.Error("api server failed", err)
		return errors.Wrap(err, "serving api")
	case sig := <-app.Server.ShutdownSignal():
		logger.Info(fmt.Sprintf("received %v, draining requests", sig))
		drain(app.Server, app.Conf, logger)
	}
	return nil
}

// prepareAuth registers validation messages and the password policy inputs.
func prepareAuth(app application) error {
	if err := core.InitValidators(app.Validate, app.Translator); err != nil {
		return err
	}
	if err := user.InitValidators(app.Validate, app.Translator); err != nil {
		return err
	}
	if err := core.ParseEmailTemplates(); err != nil {
		return errors.Wrap(err, "parsing email templates")
	}
	return user.LoadCommonPasswords(app.Conf.CommonPasswordsFile, app.Logger)
}

// serveDebug exposes /debug/vars and /debug/pprof on the debug host.
func serveDebug(conf *core.Config, logger core.Logger) {
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Warn("debug server stopped", err)
		}
	}()
}

// drain waits up to ShutdownTimeout for in-flight requests, then closes every connection.
func drain(server *echoapi.Server, conf *core.Config, logger core.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown timed out", err)
		if err = server.Close(); err != nil {
			logger.Error("closing api server", err)
		}
	}
}
