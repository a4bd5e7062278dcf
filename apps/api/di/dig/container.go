package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/Digmusic88/MWPanel3.1--sub000/apps/api/echo"
	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
	logsvc "github.com/Digmusic88/MWPanel3.1--sub000/services/logger"
	metricsvc "github.com/Digmusic88/MWPanel3.1--sub000/services/metrics"
	"github.com/Digmusic88/MWPanel3.1--sub000/storage/database"
	dummydb "github.com/Digmusic88/MWPanel3.1--sub000/storage/database/dummy"
	sqliterepos "github.com/Digmusic88/MWPanel3.1--sub000/storage/database/sqlite"
	sqlxrepos "github.com/Digmusic88/MWPanel3.1--sub000/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Storage is the selected backend: the user repository, the engine adapter and its loader.
	Storage struct {
		Backend string
		DB      *sqlx.DB // nil in demo mode
		Users   user.Repository
		Adapter academic.Adapter
		Loader  academic.Loader
		demo    *dummydb.DB
	}

	// ShutdownChan receives a value whenever the API asks to be stopped.
	ShutdownChan chan os.Signal

	engineParams struct {
		dig.In
		Conf     *core.Config
		Logger   core.Logger
		Storage  *Storage
		UserSvc  *user.Service
		Validate *validator.Validate
		Observer *metricsvc.Observer
	}

	serverParams struct {
		dig.In
		Conf       *core.Config
		Logger     core.Logger
		UserSvc    *user.Service
		Engine     *academic.Service
		Tokens     *user.TokenIssuer
		Validate   *validator.Validate
		Translator ut.Translator
		Observer   *metricsvc.Observer
		Shutdown   ShutdownChan
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	return validate
}

// OpenStorage opens the backend selected by conf.Storage.Backend, migrating SQL schemas.
func OpenStorage(ctx context.Context, conf *core.Config) (*Storage, error) {
	st := &Storage{Backend: conf.Storage.Backend}
	switch conf.Storage.Backend {
	case core.StorageDemo, "":
		st.Backend = core.StorageDemo
		st.demo = dummydb.Open()
		st.Users = dummydb.NewUserRepository(st.demo)
		adapter := dummydb.NewAdapter(st.demo)
		st.Adapter, st.Loader = adapter, adapter
	case core.StoragePostgres:
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db.DB, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		st.DB = db
		st.Users = sqlxrepos.NewUserRepository(db)
		adapter := sqlxrepos.NewAdapter(db)
		st.Adapter, st.Loader = adapter, adapter
	case core.StorageSQLite:
		db, err := sqliterepos.Open(ctx, conf.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		st.DB = db
		st.Users = sqliterepos.NewUserRepository(db)
		adapter := sqliterepos.NewAdapter(db)
		st.Adapter, st.Loader = adapter, adapter
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
	return st, nil
}

// Close releases the database connection, if any.
func (st *Storage) Close() error {
	if st.DB == nil {
		return nil
	}
	return st.DB.Close()
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) *Storage {
	st, err := OpenStorage(context.Background(), conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	return st
}

func newUserRepository(st *Storage) user.Repository {
	return st.Users
}

// NewEngine builds the academic engine over st and hydrates it.
// The demo backend starts empty and is seeded instead.
func NewEngine(ctx context.Context, conf *core.Config, st *Storage, usrSvc *user.Service,
	validate *validator.Validate, logger core.Logger, obs academic.Observer) (*academic.Service, error) {
	adapter := academic.Adapter(academic.NewRetryingAdapter(st.Adapter, conf.Storage.RetryAttempts, conf.Storage.RetryDelay, logger))
	eng := academic.NewService(academic.Options{
		Adapter:                  adapter,
		People:                   usrSvc,
		Validate:                 validate,
		Logger:                   logger,
		Observer:                 obs,
		ExclusiveGroupMembership: conf.Rules.ExclusiveGroupMembership,
	})

	if st.demo != nil {
		if _, err := dummydb.Seed(ctx, usrSvc, eng); err != nil {
			return nil, errors.Wrap(err, "seeding demo data")
		}
		return eng, nil
	}
	if err := eng.Load(ctx, st.Loader); err != nil {
		return nil, errors.Wrap(err, "loading academic data")
	}
	return eng, nil
}

func newEngine(p engineParams) *academic.Service {
	eng, err := NewEngine(context.Background(), p.Conf, p.Storage, p.UserSvc, p.Validate, p.Logger, p.Observer)
	if err != nil {
		p.Logger.Fatal(fmt.Sprintf("setting up engine: %v", err), err)
	}
	p.Observer.WatchOccupancy(eng)
	return eng
}

func newTokenIssuer(conf *core.Config) *user.TokenIssuer {
	return user.NewTokenIssuer(conf.AppName, conf.SecretKey, conf.Server.JWTExpirationDelta)
}

func newShutdownChan() ShutdownChan {
	return make(ShutdownChan, 1)
}

func newServer(p serverParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Address:    p.Conf.Server.Address,
		AppName:    p.Conf.AppName,
		Debug:      p.Conf.Debug,
		TestMode:   p.Conf.TestMode,
		UserSvc:    p.UserSvc,
		Engine:     p.Engine,
		Tokens:     p.Tokens,
		Validate:   p.Validate,
		Translator: p.Translator,
		Logger:     p.Logger,
		Metrics:    p.Observer.Handler(),
		SignalShutdown: func() {
			select {
			case p.Shutdown <- syscall.SIGTERM:
			default: // already signalled
			}
		},
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newStorage))
	must(c.Provide(newUserRepository))
	must(c.Provide(user.NewService))
	must(c.Provide(metricsvc.NewObserver))
	must(c.Provide(newEngine))
	must(c.Provide(newTokenIssuer))
	must(c.Provide(newShutdownChan))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
