// handlers_tire.go - Tire detail view handlers
package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/tpms-dashboard/backend/internal/chart"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultArchiveLimit = 500
	maxArchiveLimit     = 10000
)

// TireHandlerImpl implements the TireHandler interface
type TireHandlerImpl struct {
	sessions   SessionManager
	archive    ArchiveReader
	assetsHost string
}

// NewTireHandler creates a new tire handler. archive may be nil.
func NewTireHandler(sessions SessionManager, archive ArchiveReader, assetsHost string) TireHandler {
	return &TireHandlerImpl{
		sessions:   sessions,
		archive:    archive,
		assetsHost: assetsHost,
	}
}

// HandleGetTire opens the detail view of a tire and returns its cards
func (h *TireHandlerImpl) HandleGetTire(c echo.Context) error {
	sess, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}
	tire, err := parseTire(c)
	if err != nil {
		return err
	}

	if err := sess.SelectTire(tire); err != nil {
		return FromDomainError(err, "tire", c.Param("tire"))
	}
	detail, err := sess.TireDetail(tire)
	if err != nil {
		return FromDomainError(err, "tire", c.Param("tire"))
	}
	return c.JSON(http.StatusOK, detail)
}

// HandleGetSeries returns the merged chart data of a tire
func (h *TireHandlerImpl) HandleGetSeries(c echo.Context) error {
	sess, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}
	tire, err := parseTire(c)
	if err != nil {
		return err
	}

	data, err := sess.ChartData(tire)
	if err != nil {
		return FromDomainError(err, "tire", c.Param("tire"))
	}
	return c.JSON(http.StatusOK, data)
}

// HandleGetSeriesMsgpack returns the merged chart data encoded as msgpack
func (h *TireHandlerImpl) HandleGetSeriesMsgpack(c echo.Context) error {
	sess, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}
	tire, err := parseTire(c)
	if err != nil {
		return err
	}

	data, err := sess.ChartData(tire)
	if err != nil {
		return FromDomainError(err, "tire", c.Param("tire"))
	}

	encoded, err := msgpack.Marshal(data)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", encoded)
}

// HandleGetChart renders the tire history as an ECharts page
func (h *TireHandlerImpl) HandleGetChart(c echo.Context) error {
	sess, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}
	tire, err := parseTire(c)
	if err != nil {
		return err
	}
	view, err := chart.ParseView(c.QueryParam("view"))
	if err != nil {
		return NewBadRequestError("invalid chart view", err)
	}

	detail, err := sess.TireDetail(tire)
	if err != nil {
		return FromDomainError(err, "tire", c.Param("tire"))
	}
	data, err := sess.ChartData(tire)
	if err != nil {
		return FromDomainError(err, "tire", c.Param("tire"))
	}

	var buf bytes.Buffer
	err = chart.RenderTireChart(&buf, data, chart.RenderOptions{
		Title:      fmt.Sprintf("Tire %d", tire),
		Subtitle:   detail.Name,
		View:       view,
		AssetsHost: h.assetsHost,
	})
	if err != nil {
		return NewInternalError("failed to render chart", err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// HandleGetArchive returns archived readings of a tire, oldest first
func (h *TireHandlerImpl) HandleGetArchive(c echo.Context) error {
	if h.archive == nil {
		return NewServiceUnavailableError("archive is disabled")
	}
	sess, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}
	tire, err := parseTire(c)
	if err != nil {
		return err
	}

	limit := defaultArchiveLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return NewValidationError("limit")
		}
		limit = n
	}
	if limit > maxArchiveLimit {
		limit = maxArchiveLimit
	}

	readings, err := h.archive.Query(c.Request().Context(), sess.ID, tire, limit)
	if err != nil {
		return NewInternalError("failed to query archive", err)
	}
	return c.JSON(http.StatusOK, readings)
}
