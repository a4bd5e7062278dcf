package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/academic"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
)

type (
	Options struct {
		Address        string
		AppName        string
		Debug          bool
		TestMode       bool
		DisableReqLogs bool

		UserSvc    *user.Service
		Engine     *academic.Service
		Tokens     *user.TokenIssuer
		Validate   *validator.Validate
		Translator ut.Translator
		Logger     core.Logger
		Metrics    http.Handler // served unauthenticated on /metrics when set

		// SignalShutdown is called when a handler reports a shutdown error.
		SignalShutdown func()
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	if opts.SignalShutdown == nil {
		opts.SignalShutdown = func() {}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.opts.Debug || s.opts.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.SignalShutdown)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", s.home)
	if s.opts.Metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.opts.Metrics))
	}

	v1 := s.app.Group("/v1", middleware.JWTWithConfig(jwtConfig(s.opts.Tokens)), actorMiddleware)

	registerUserAPI(v1, s.opts.UserSvc, s.opts.Tokens, s.opts.Validate)
	registerAcademicAPI(v1, s.opts.Engine, s.opts.Validate)
	registerReportAPI(v1, s.opts.Engine, s.opts.UserSvc, s.opts.Validate)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.AppName+" API!")
}
