package echoapi

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/report"
	"github.com/trezcool/reportal/core/user"
)

type (
	// ServerDeps holds everything the API handlers depend on.
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		UserSvc        user.Service
		ReportSvc      report.Service
		Validate       *validator.Validate
		Translator     ut.Translator
		LoginLimiter   core.RateLimiter // login attempts per client IP
		ResetLimiter   core.RateLimiter // password reset requests per client IP
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		// Start blocks until the server stops; it returns http.ErrServerClosed after Stop.
		Start(addr string) error
		Stop(context.Context) error
	}

	server struct {
		deps     *ServerDeps
		app      *echo.Echo
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

// NewServer sets up the API. A SIGTERM is sent on shutdown (if not nil) when a handler fails with a core.shutdown error.
func NewServer(shutdown chan os.Signal, deps *ServerDeps) Server {
	if deps == nil {
		panic("echoapi.NewServer: nil deps")
	}
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "deps.Conf"),
		vala.IsNotNil(deps.Logger, "deps.Logger"),
		vala.IsNotNil(deps.UserSvc, "deps.UserSvc"),
		vala.IsNotNil(deps.ReportSvc, "deps.ReportSvc"),
		vala.IsNotNil(deps.Validate, "deps.Validate"),
		vala.IsNotNil(deps.Translator, "deps.Translator"),
		vala.IsNotNil(deps.LoginLimiter, "deps.LoginLimiter"),
		vala.IsNotNil(deps.ResetLimiter, "deps.ResetLimiter"),
	).CheckAndPanic()

	s := &server{
		deps:     deps,
		app:      echo.New(),
		shutdown: shutdown,
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(noCacheMiddleware())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", home)

	auth := newAuthenticator(conf)
	g := s.app.Group("/api")
	jwt := auth.middleware()
	authed := []echo.MiddlewareFunc{jwt, ctxUserMiddleware(s.deps.UserSvc)}

	registerUserAPI(g, authed, auth, s.deps)
	registerStudentAPI(g, authed, s.deps)
	registerReportAPI(g, authed, s.deps)
	registerDashboardAPI(g, authed, s.deps)
}

func (s *server) signalShutdown() {
	if s.shutdown != nil {
		s.shutdown <- syscall.SIGTERM
	}
}

func (s *server) Start(addr string) error {
	return s.app.Start(addr)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Reportal API!")
}

// uploadBodyLimit leaves room for the multipart envelope around a file of the max upload size.
func uploadBodyLimit(conf *core.Config) string {
	size := conf.Storage.MaxUploadSize
	if size <= 0 {
		size = report.MaxUploadSize
	}
	return strconv.FormatInt(size/1024+1024, 10) + "K"
}
