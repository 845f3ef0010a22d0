// Package httpapi exposes the record store, the production state machine and
// the sync schedulers over HTTP (echo).
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/integrations/authenticity"
	"github.com/bartek5186/mosync/internal/integrations/odoo"
	"github.com/bartek5186/mosync/internal/production"
	"github.com/bartek5186/mosync/internal/store"
	"github.com/bartek5186/mosync/internal/syncer"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Schedulers is the part of syncer.Syncer the API drives.
type Schedulers interface {
	Start(name string, opts syncer.StartOptions) (bool, error)
	Stop(name string) error
	Status(name string) (syncer.Status, error)
	StatusAll() map[string]syncer.Status
}

type Deps struct {
	Log        zerolog.Logger
	Store      *store.Store
	Production *production.Service
	Schedulers Schedulers
}

type Server struct {
	log   zerolog.Logger
	store *store.Store
	prod  *production.Service
	sched Schedulers
	echo  *echo.Echo
}

func New(d Deps) *Server {
	s := &Server{
		log:   d.Log,
		store: d.Store,
		prod:  d.Production,
		sched: d.Schedulers,
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			var ev *zerolog.Event
			if v.Status >= http.StatusInternalServerError {
				ev = s.log.Error().Err(v.Error)
			} else {
				ev = s.log.Info()
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("http")
			return nil
		},
	}))

	s.routes(e)
	s.echo = e
	return s
}

func (s *Server) routes(e *echo.Echo) {
	e.GET("/healthz", s.health)

	api := e.Group("/api")

	data := api.Group("/data")
	data.GET("/recent-mo", s.listRecentMO)
	data.GET("/manufacturing-identity", s.listIdentity)
	data.GET("/production-log", s.listProductionLog)
	data.GET("/master-authenticity-vendor", s.listVendors)
	data.GET("/authenticity-used-rm", s.listUsedRM)

	api.GET("/mo-options", s.moOptions)
	api.GET("/ready-mo", s.readyMO)
	api.GET("/running-mo", s.runningMO)
	api.GET("/ready-mo-details", s.readyMODetails)

	api.POST("/register-mo", s.registerMO)
	api.POST("/start-production", s.startProduction)
	api.POST("/changeover", s.changeover)
	api.POST("/end-production", s.endProduction)

	sc := api.Group("/scheduler")
	sc.GET("/status", s.schedulerStatus(odooJob))
	sc.POST("/start", s.schedulerStart(odooJob))
	sc.POST("/stop", s.schedulerStop(odooJob))
	sc.GET("/authenticity/status", s.schedulerStatus(authJob))
	sc.POST("/authenticity/start", s.schedulerStart(authJob))
	sc.POST("/authenticity/stop", s.schedulerStop(authJob))
	sc.GET("/all/status", s.schedulerStatusAll)
}

// Handler is the root handler, for httptest and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Start blocks serving addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("HTTP listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "database unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

type errorBody struct {
	Error string `json:"error"`
}

// handleError renders every failure as {"error": msg} with the status of its
// apperr kind; 5xx are logged as well.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	status, msg := 0, ""
	switch {
	case errors.As(err, &he):
		status = he.Code
		msg = http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	default:
		status = apperr.HTTPStatus(err)
		msg = apperr.Message(err)
	}
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("request failed")
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, errorBody{Error: msg})
}

const (
	odooJob = odoo.Name
	authJob = authenticity.Name
)
