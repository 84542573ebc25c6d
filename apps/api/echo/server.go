package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/umirovdev/maktab/core"
	"github.com/umirovdev/maktab/core/auth"
	"github.com/umirovdev/maktab/core/school"
	"github.com/umirovdev/maktab/core/user"
)

type (
	// ServerDeps groups everything the API server needs to run.
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Session    *auth.Session
		UserSvc    user.ServiceInterface
		SchoolSvc  school.ServiceInterface
		Resolver   *school.Resolver
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, syscall.SIGINT, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/health", health)
	s.app.Static("/uploads", conf.Server.UploadDir)

	v1 := s.app.Group("/v1")
	jwt := newJWTMiddleware(conf)

	registerAuthAPI(v1, jwt, s.deps.Session, s.deps.Validate)
	registerUserAPI(v1, jwt, s.deps.UserSvc, s.deps.SchoolSvc)
	registerSubjectAPI(v1, jwt, s.deps.SchoolSvc, s.deps.Resolver, s.deps.Validate)
	registerLessonAPI(v1, jwt, s.deps.SchoolSvc, s.deps.Validate)
	registerAssignmentAPI(v1, jwt, s.deps.SchoolSvc, s.deps.Resolver, s.deps.Validate)
	registerTeacherAPI(v1, jwt, s.deps.UserSvc, s.deps.SchoolSvc, s.deps.Validate)
	registerStudentAPI(v1, jwt, s.deps.UserSvc, s.deps.SchoolSvc, s.deps.Resolver, s.deps.Validate)
	registerFileAPI(v1, jwt, conf)
}

// Start runs the listener; it only returns once the server stops.
// Fatal errors are reported on the Errors channel.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors reports listener failures; receipt means the server is down.
func (s *Server) Errors() <-chan error { return s.errors }

// ShutdownSignal relays SIGINT/SIGTERM and internal shutdown requests.
func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Maktab API!")
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
