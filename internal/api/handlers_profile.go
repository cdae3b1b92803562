// handlers_profile.go - Saved vehicle profiles and threshold table
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/tpms-dashboard/backend/internal/status"
	"github.com/tpms-dashboard/backend/internal/storage"
)

const defaultProfileLimit = 20

// ProfileHandlerImpl implements the ProfileHandler interface
type ProfileHandlerImpl struct {
	profiles   storage.Store
	thresholds status.Thresholds
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles storage.Store, thresholds status.Thresholds) ProfileHandler {
	return &ProfileHandlerImpl{
		profiles:   profiles,
		thresholds: thresholds,
	}
}

// HandleListProfiles returns saved profiles, newest first
func (h *ProfileHandlerImpl) HandleListProfiles(c echo.Context) error {
	if h.profiles == nil {
		return NewServiceUnavailableError("profile storage is disabled")
	}

	limit := defaultProfileLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return NewValidationError("limit")
		}
		limit = n
	}

	profiles, err := h.profiles.List(limit)
	if err != nil {
		return NewInternalError("failed to list profiles", err)
	}
	return c.JSON(http.StatusOK, profiles)
}

// HandleGetProfile returns one profile
func (h *ProfileHandlerImpl) HandleGetProfile(c echo.Context) error {
	if h.profiles == nil {
		return NewServiceUnavailableError("profile storage is disabled")
	}
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	profile, err := h.profiles.Get(id)
	if err != nil {
		return FromDomainError(err, "profile", id)
	}
	return c.JSON(http.StatusOK, profile)
}

// HandleDeleteProfile removes a profile
func (h *ProfileHandlerImpl) HandleDeleteProfile(c echo.Context) error {
	if h.profiles == nil {
		return NewServiceUnavailableError("profile storage is disabled")
	}
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.profiles.Delete(id); err != nil {
		return FromDomainError(err, "profile", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleGetThresholds returns the active classification table
func (h *ProfileHandlerImpl) HandleGetThresholds(c echo.Context) error {
	return c.JSON(http.StatusOK, h.thresholds)
}
