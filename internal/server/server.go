package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apperrors "github.com/jantman/kiosk-show-replacement-sub000/internal/errors"
	"github.com/jantman/kiosk-show-replacement-sub000/internal/platform/config"
	"github.com/jantman/kiosk-show-replacement-sub000/internal/realtime"
)

const sessionName = "kiosk_admin"

// redisPinger is the minimal interface used by the readiness probe.
// Nil when presence persistence is not configured.
type redisPinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo         *echo.Echo
	config       *config.Config
	manager      *realtime.Manager
	broadcaster  *realtime.Broadcaster
	presence     *realtime.PresenceTracker
	reporter     *realtime.Reporter
	sessionStore *sessions.CookieStore
	limiter      *ConnectionLimiter
	clock        clockwork.Clock
	redis        redisPinger
	startTime    time.Time
}

func NewServer(cfg *config.Config, manager *realtime.Manager, broadcaster *realtime.Broadcaster, presence *realtime.PresenceTracker, reporter *realtime.Reporter, redis redisPinger, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(correlationMiddleware)
	e.Use(apperrors.Middleware())

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}

	srv := &Server{
		echo:         e,
		config:       cfg,
		manager:      manager,
		broadcaster:  broadcaster,
		presence:     presence,
		reporter:     reporter,
		sessionStore: sessionStore,
		limiter:      NewConnectionLimiter(cfg.MaxConnections),
		clock:        clock,
		redis:        redis,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
