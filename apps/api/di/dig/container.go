package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	echoapi "github.com/acadmeter/acadmeter/apps/api/echo"
	"github.com/acadmeter/acadmeter/core"
	"github.com/acadmeter/acadmeter/core/user"
	emailsvc "github.com/acadmeter/acadmeter/services/email"
	logsvc "github.com/acadmeter/acadmeter/services/logger"
	"github.com/acadmeter/acadmeter/services/ratelimit"
	"github.com/acadmeter/acadmeter/storage/database"
	sqlxrepos "github.com/acadmeter/acadmeter/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServerParam struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	UserSvc    *user.Service
	Tokens     *user.TokenManager
	Validate   *validator.Validate
	Translator ut.Translator
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	switch conf.EmailBackend {
	case "sendgrid":
		return emailsvc.NewSendgridService(conf, logger)
	case "smtp":
		return emailsvc.NewSMTPService(conf)
	default:
		return emailsvc.NewConsoleService(conf, logger)
	}
}

// newLimiter throttles reset requests through Redis when configured; without it requests are never limited.
func newLimiter(conf *core.Config, logger core.Logger) (user.Limiter, error) {
	if conf.Redis.URL == "" {
		logger.Warn("no redis url configured: password reset requests are not rate limited")
		return ratelimit.Noop{}, nil
	}
	opts, err := redis.ParseURL(conf.Redis.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	return ratelimit.NewRedisLimiter(redis.NewClient(opts), conf.Auth.ResetMaxRequests, conf.Auth.ResetWindow), nil
}

func newValidator() *validator.Validate {
	return validator.New()
}

func newServer(p ServerParam) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		UserSvc:    p.UserSvc,
		Tokens:     p.Tokens,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newLimiter))
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(newValidator))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(user.NewTokenManager))
	must(c.Provide(user.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
