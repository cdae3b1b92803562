// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/tpms-dashboard/backend/internal/models"
	"github.com/tpms-dashboard/backend/internal/session"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// DashboardHandler handles the page bootstrap and the configuration form
type DashboardHandler interface {
	HandleBootstrap(c echo.Context) error
	HandleConfig(c echo.Context) error
}

// ProfileHandler handles saved vehicle profiles and the threshold table
type ProfileHandler interface {
	HandleListProfiles(c echo.Context) error
	HandleGetProfile(c echo.Context) error
	HandleDeleteProfile(c echo.Context) error
	HandleGetThresholds(c echo.Context) error
}

// SessionHandler handles dashboard session operations
type SessionHandler interface {
	HandleListSessions(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleConfigure(c echo.Context) error
	HandleStartCollection(c echo.Context) error
	HandleStopCollection(c echo.Context) error
	HandleGetLayout(c echo.Context) error
	HandleGetLiveTable(c echo.Context) error
	HandleClearSelection(c echo.Context) error
}

// TireHandler handles the tire detail view
type TireHandler interface {
	HandleGetTire(c echo.Context) error
	HandleGetSeries(c echo.Context) error
	HandleGetSeriesMsgpack(c echo.Context) error
	HandleGetChart(c echo.Context) error
	HandleGetArchive(c echo.Context) error
}

// ExportHandler handles report downloads
type ExportHandler interface {
	HandleExportXLSX(c echo.Context) error
	HandleExportPDF(c echo.Context) error
}

// StreamHandler handles the websocket push channel
type StreamHandler interface {
	HandleWebSocket(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	Create(axles models.AxleConfig, device models.DeviceSettings) (*session.Session, error)
	Get(id string) (*session.Session, bool)
	Delete(id string) bool
	List() []models.SessionInfo
	Options() session.Options
}

// ArchiveReader reads archived readings. Nil when persistence is off.
type ArchiveReader interface {
	Query(ctx context.Context, sessionID string, tire, limit int) ([]models.ArchivedReading, error)
}
