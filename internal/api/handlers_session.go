// handlers_session.go - Dashboard session handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/tpms-dashboard/backend/internal/layout"
	"github.com/tpms-dashboard/backend/internal/session"
)

// ConfigureRequest reconfigures a session's axles.
type ConfigureRequest struct {
	Config    string `json:"config"`
	TireCount int    `json:"tireCount,omitempty"`
}

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessions SessionManager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions SessionManager) SessionHandler {
	return &SessionHandlerImpl{sessions: sessions}
}

// lookupSession resolves the :id path parameter.
func lookupSession(c echo.Context, sessions SessionManager) (*session.Session, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}
	sess, ok := sessions.Get(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	return sess, nil
}

// parseTire resolves the :tire path parameter (1-based).
func parseTire(c echo.Context) (int, error) {
	tire, err := strconv.Atoi(c.Param("tire"))
	if err != nil || tire < 1 {
		return 0, NewValidationError("tire")
	}
	return tire, nil
}

// HandleListSessions returns all open sessions
func (h *SessionHandlerImpl) HandleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessions.List())
}

// HandleGetSession returns a session summary and keeps it alive
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	sess, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Info())
}

// HandleDeleteSession closes a session
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if !h.sessions.Delete(id) {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleConfigure replaces the axle configuration of a session
func (h *SessionHandlerImpl) HandleConfigure(c echo.Context) error {
	sess, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}

	var req ConfigureRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	axles, err := layout.Accept(req.Config, req.TireCount, h.sessions.Options().Limits)
	if err != nil {
		return FromDomainError(err, "session", sess.ID)
	}
	if err := sess.Configure(axles); err != nil {
		return FromDomainError(err, "session", sess.ID)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session": sess.Info(),
		"layout":  sess.Layout(),
	})
}

// HandleStartCollection re-initializes tire data and starts the simulation
func (h *SessionHandlerImpl) HandleStartCollection(c echo.Context) error {
	sess, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}
	if err := sess.StartCollection(); err != nil {
		return FromDomainError(err, "session", sess.ID)
	}
	return c.JSON(http.StatusOK, sess.Info())
}

// HandleStopCollection halts the simulation
func (h *SessionHandlerImpl) HandleStopCollection(c echo.Context) error {
	sess, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}
	sess.StopCollection()
	return c.JSON(http.StatusOK, sess.Info())
}

// HandleGetLayout returns the tire positions
func (h *SessionHandlerImpl) HandleGetLayout(c echo.Context) error {
	sess, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Layout())
}

// HandleGetLiveTable returns one row per tire
func (h *SessionHandlerImpl) HandleGetLiveTable(c echo.Context) error {
	sess, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.LiveTable())
}

// HandleClearSelection closes the tire detail view
func (h *SessionHandlerImpl) HandleClearSelection(c echo.Context) error {
	sess, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}
	sess.ClearSelection()
	return c.NoContent(http.StatusNoContent)
}
