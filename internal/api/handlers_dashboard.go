// handlers_dashboard.go - Page bootstrap and configuration form handlers
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/tpms-dashboard/backend/internal/layout"
	"github.com/tpms-dashboard/backend/internal/logging"
	"github.com/tpms-dashboard/backend/internal/metrics"
	"github.com/tpms-dashboard/backend/internal/models"
	"github.com/tpms-dashboard/backend/internal/status"
	"github.com/tpms-dashboard/backend/internal/storage"
)

// DefaultTireCount is used when the page is opened without no_of_tyres.
const DefaultTireCount = 6

// BootstrapResponse is what the dashboard page needs to draw itself.
type BootstrapResponse struct {
	Session    models.SessionInfo    `json:"session"`
	Layout     []models.TirePosition `json:"layout"`
	Config     string                `json:"config"`
	Device     models.DeviceSettings `json:"device"`
	Thresholds status.Thresholds     `json:"thresholds"`
}

// ConfigResponse is the reply of the configuration form.
// The page only reacts to Status == "success".
type ConfigResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
	ProfileID string `json:"profileId,omitempty"`
}

// DashboardHandlerImpl implements the DashboardHandler interface
type DashboardHandlerImpl struct {
	sessions      SessionManager
	profiles      storage.Store
	defaultDevice models.DeviceSettings
	defaultCount  int
	log           zerolog.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(sessions SessionManager, profiles storage.Store, device models.DeviceSettings, defaultCount int, log zerolog.Logger) DashboardHandler {
	if defaultCount <= 0 {
		defaultCount = DefaultTireCount
	}
	return &DashboardHandlerImpl{
		sessions:      sessions,
		profiles:      profiles,
		defaultDevice: device,
		defaultCount:  defaultCount,
		log:           logging.Component(log, "api"),
	}
}

// HandleBootstrap reads the page query parameters once and opens a session for them.
// Bad parameters never fail the page: they fall back to the default layout, and only
// the configuration form reports errors. A valid config parameter starts collection.
func (h *DashboardHandlerImpl) HandleBootstrap(c echo.Context) error {
	count := h.defaultCount
	declared := 0
	if raw := strings.TrimSpace(c.QueryParam("no_of_tyres")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			count = n
			declared = n
		} else {
			h.log.Debug().Str("no_of_tyres", raw).Msg("ignoring invalid tire count")
		}
	}

	var axles models.AxleConfig
	fromURL := false
	if raw := c.QueryParam("config"); raw != "" {
		accepted, err := layout.Accept(raw, declared, h.sessions.Options().Limits)
		if err != nil {
			h.log.Debug().Err(err).Str("config", raw).Msg("ignoring invalid axle configuration")
		} else {
			axles = accepted
			fromURL = true
		}
	}
	if axles == nil {
		axles = h.fallbackAxles(count)
	}

	device := h.deviceFrom(c.QueryParam)
	sess, err := h.sessions.Create(axles, device)
	if err != nil {
		return FromDomainError(err, "session", "")
	}
	if fromURL {
		if err := sess.StartCollection(); err != nil {
			return FromDomainError(err, "session", sess.ID)
		}
	}

	return c.JSON(http.StatusOK, BootstrapResponse{
		Session:    sess.Info(),
		Layout:     sess.Layout(),
		Config:     layout.String(axles),
		Device:     device,
		Thresholds: sess.Thresholds(),
	})
}

// fallbackAxles derives a layout for count, or the default layout when count has none.
func (h *DashboardHandlerImpl) fallbackAxles(count int) models.AxleConfig {
	limits := h.sessions.Options().Limits
	for _, n := range []int{count, h.defaultCount} {
		if axles := layout.DefaultAxlesFor(n); axles != nil && layout.Validate(axles, limits) == nil {
			return axles
		}
	}
	return append(models.AxleConfig(nil), layout.DefaultAxles...)
}

// HandleConfig accepts the configuration form.
func (h *DashboardHandlerImpl) HandleConfig(c echo.Context) error {
	raw := strings.TrimSpace(c.FormValue("tire_config"))
	declared := 0
	if v := strings.TrimSpace(c.FormValue("no_of_tyres")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return h.configError(c, http.StatusBadRequest, "Number of tyres must be an integer")
		}
		declared = n
	}

	limits := h.sessions.Options().Limits
	axles, err := layout.Accept(raw, declared, limits)
	if err != nil {
		return h.configError(c, http.StatusBadRequest, configMessage(err, limits))
	}

	device := h.deviceFrom(c.FormValue)

	sessionID := c.FormValue("session_id")
	if sessionID != "" {
		sess, ok := h.sessions.Get(sessionID)
		if !ok {
			return h.configError(c, http.StatusNotFound, "Session not found")
		}
		if err := sess.Configure(axles); err != nil {
			return h.configError(c, http.StatusConflict, err.Error())
		}
		sess.SetDevice(device)
	} else {
		sess, err := h.sessions.Create(axles, device)
		if err != nil {
			return h.configError(c, http.StatusInternalServerError, err.Error())
		}
		sessionID = sess.ID
	}

	resp := ConfigResponse{
		Status:    "success",
		Message:   "Configuration received",
		SessionID: sessionID,
	}

	if h.profiles != nil {
		profile, err := h.profiles.Save(models.VehicleProfile{
			Name:       c.FormValue("name"),
			AxleConfig: axles,
			TireCount:  axles.TotalTires(),
			Device:     device,
		})
		if err != nil {
			// profile persistence is best effort
			h.log.Error().Err(err).Msg("failed to save vehicle profile")
		} else {
			resp.ProfileID = profile.ID
		}
	}

	metrics.IncConfiguration(metrics.ResultSuccess)
	h.log.Info().
		Str("session", logging.ShortID(sessionID)).
		Str("axles", layout.String(axles)).
		Str("rx_id", device.RxID).
		Str("tx_id", device.TxID).
		Int("baud_rate", device.BaudRate).
		Msg("configuration received")

	return c.JSON(http.StatusOK, resp)
}

func (h *DashboardHandlerImpl) configError(c echo.Context, status int, message string) error {
	metrics.IncConfiguration(metrics.ResultError)
	return c.JSON(status, ConfigResponse{Status: "error", Message: message})
}

// deviceFrom reads the receiver settings, keeping defaults for missing fields.
func (h *DashboardHandlerImpl) deviceFrom(get func(string) string) models.DeviceSettings {
	d := h.defaultDevice
	if v := strings.TrimSpace(get("rx_id")); v != "" {
		d.RxID = v
	}
	if v := strings.TrimSpace(get("tx_id")); v != "" {
		d.TxID = v
	}
	if v := strings.TrimSpace(get("baud_rate")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			d.BaudRate = n
		}
	}
	return d
}

func configMessage(err error, limits layout.Limits) string {
	switch {
	case errors.Is(err, layout.ErrEmptyConfig):
		return "Please enter a tire configuration"
	case errors.Is(err, layout.ErrInvalidAxle):
		return "Each axle must have an even number of tires"
	case errors.Is(err, layout.ErrTireCountMismatch):
		return "Total number of tires does not match the configuration"
	case errors.Is(err, layout.ErrTireCountRange):
		return fmt.Sprintf("Total number of tires must be between %d and %d", limits.MinTires, limits.MaxTires)
	default:
		return err.Error()
	}
}
