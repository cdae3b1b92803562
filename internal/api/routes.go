// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/tpms-dashboard/backend/internal/logging"
	"github.com/tpms-dashboard/backend/internal/models"
	"github.com/tpms-dashboard/backend/internal/status"
	"github.com/tpms-dashboard/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions         SessionManager
	Profiles         storage.Store // optional
	Archive          ArchiveReader // optional
	Hub              *Hub
	Thresholds       status.Thresholds
	DefaultDevice    models.DeviceSettings
	DefaultTireCount int
	ChartAssetsHost  string
	Version          string
	Logger           zerolog.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Dashboard DashboardHandler
	Profile   ProfileHandler
	Session   SessionHandler
	Tire      TireHandler
	Export    ExportHandler
	Stream    StreamHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.Sessions, 0, deps.Logger)
	}

	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Sessions, hub),
		Dashboard: NewDashboardHandler(deps.Sessions, deps.Profiles, deps.DefaultDevice, deps.DefaultTireCount, deps.Logger),
		Profile:   NewProfileHandler(deps.Profiles, deps.Thresholds),
		Session:   NewSessionHandler(deps.Sessions),
		Tire:      NewTireHandler(deps.Sessions, deps.Archive, deps.ChartAssetsHost),
		Export:    NewExportHandler(deps.Sessions),
		Stream:    hub,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Configuration form posted by the dashboard page
	e.POST("/config", handlers.Dashboard.HandleConfig)

	// Prometheus scrape endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiGroup := e.Group("/api")
	apiGroup.GET("/health", handlers.Health.HandleHealth)
	apiGroup.GET("/bootstrap", handlers.Dashboard.HandleBootstrap)
	apiGroup.GET("/thresholds", handlers.Profile.HandleGetThresholds)

	// Saved vehicle profiles
	profileGroup := apiGroup.Group("/profiles")
	profileGroup.GET("", handlers.Profile.HandleListProfiles)
	profileGroup.GET("/:id", handlers.Profile.HandleGetProfile)
	profileGroup.DELETE("/:id", handlers.Profile.HandleDeleteProfile)

	// Dashboard sessions
	sessionGroup := apiGroup.Group("/sessions")
	sessionGroup.GET("", handlers.Session.HandleListSessions)
	sessionGroup.GET("/:id", handlers.Session.HandleGetSession)
	sessionGroup.DELETE("/:id", handlers.Session.HandleDeleteSession)
	sessionGroup.POST("/:id/configure", handlers.Session.HandleConfigure)
	sessionGroup.POST("/:id/start", handlers.Session.HandleStartCollection)
	sessionGroup.POST("/:id/stop", handlers.Session.HandleStopCollection)
	sessionGroup.GET("/:id/layout", handlers.Session.HandleGetLayout)
	sessionGroup.GET("/:id/live", handlers.Session.HandleGetLiveTable)
	sessionGroup.DELETE("/:id/selection", handlers.Session.HandleClearSelection)
	sessionGroup.GET("/:id/ws", handlers.Stream.HandleWebSocket)

	// Tire detail view
	sessionGroup.GET("/:id/tires/:tire", handlers.Tire.HandleGetTire)
	sessionGroup.GET("/:id/tires/:tire/series", handlers.Tire.HandleGetSeries)
	sessionGroup.GET("/:id/tires/:tire/series/msgpack", handlers.Tire.HandleGetSeriesMsgpack)
	sessionGroup.GET("/:id/tires/:tire/chart", handlers.Tire.HandleGetChart)
	sessionGroup.GET("/:id/tires/:tire/archive", handlers.Tire.HandleGetArchive)

	// Exports
	sessionGroup.GET("/:id/export.xlsx", handlers.Export.HandleExportXLSX)
	sessionGroup.GET("/:id/export.pdf", handlers.Export.HandleExportPDF)
}

// MiddlewareOptions selects the optional middleware
type MiddlewareOptions struct {
	EnableRequestLogging bool
	EnableGzip           bool
	EnableCORS           bool
	AllowOrigins         string
	BodyLimit            string
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, o MiddlewareOptions, log zerolog.Logger) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	reqLog := logging.Component(log, "http")
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !o.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || path == "/metrics"
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := reqLog.Info()
			if v.Error != nil {
				ev = reqLog.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	// Compression middleware
	if o.EnableGzip {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Skipper: func(c echo.Context) bool {
				return strings.HasSuffix(c.Request().URL.Path, "/ws")
			},
		}))
	}

	// Body limit middleware
	if o.BodyLimit != "" {
		e.Use(middleware.BodyLimit(o.BodyLimit))
	}

	// CORS configuration
	if o.EnableCORS {
		origins := strings.Split(o.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}
