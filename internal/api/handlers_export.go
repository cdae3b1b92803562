// handlers_export.go - Report download handlers
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tpms-dashboard/backend/internal/export"
	"github.com/tpms-dashboard/backend/internal/metrics"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimePDF  = "application/pdf"
)

// ExportHandlerImpl implements the ExportHandler interface
type ExportHandlerImpl struct {
	sessions SessionManager
	now      func() time.Time
}

// NewExportHandler creates a new export handler
func NewExportHandler(sessions SessionManager) ExportHandler {
	return &ExportHandlerImpl{
		sessions: sessions,
		now:      time.Now,
	}
}

// HandleExportXLSX downloads the live table and history as a workbook
func (h *ExportHandlerImpl) HandleExportXLSX(c echo.Context) error {
	return h.export(c, "xlsx", mimeXLSX, export.BuildXLSX)
}

// HandleExportPDF downloads the live table as a PDF
func (h *ExportHandlerImpl) HandleExportPDF(c echo.Context) error {
	return h.export(c, "pdf", mimePDF, export.BuildPDF)
}

func (h *ExportHandlerImpl) export(c echo.Context, format, mime string, build func(export.Report) ([]byte, error)) error {
	sess, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}

	report, err := export.NewReport(sess, h.now())
	if err != nil {
		metrics.IncExport(format, metrics.ResultError)
		return FromDomainError(err, "session", sess.ID)
	}
	data, err := build(report)
	if err != nil {
		metrics.IncExport(format, metrics.ResultError)
		return NewInternalError(fmt.Sprintf("failed to build %s export", format), err)
	}

	metrics.IncExport(format, metrics.ResultSuccess)
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", report.Filename(format)))
	return c.Blob(http.StatusOK, mime, data)
}
