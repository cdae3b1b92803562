// Package export renders a session's live table and history as XLSX or PDF.
package export

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/tpms-dashboard/backend/internal/layout"
	"github.com/tpms-dashboard/backend/internal/models"
)

// Source is the read side of a dashboard session.
type Source interface {
	Info() models.SessionInfo
	LiveTable() []models.LiveRow
	ChartData(tire int) (models.ChartData, error)
}

// Report is a point-in-time copy of a session.
type Report struct {
	Session     models.SessionInfo
	GeneratedAt time.Time
	Rows        []models.LiveRow
	History     []models.ChartData // index tire-1
}

// NewReport snapshots src.
func NewReport(src Source, at time.Time) (Report, error) {
	r := Report{
		Session:     src.Info(),
		GeneratedAt: at,
		Rows:        src.LiveTable(),
	}
	r.History = make([]models.ChartData, len(r.Rows))
	for i, row := range r.Rows {
		data, err := src.ChartData(row.Tire)
		if err != nil {
			return Report{}, fmt.Errorf("history of tire %d: %w", row.Tire, err)
		}
		r.History[i] = data
	}
	return r, nil
}

// Filename returns a download name such as tpms_1a2b3c4d_20240501-100000.xlsx.
func (r Report) Filename(ext string) string {
	id := r.Session.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("tpms_%s_%s.%s", id, r.GeneratedAt.Format("20060102-150405"), ext)
}

// BuildXLSX renders a workbook with a summary, live and history sheet.
func BuildXLSX(r Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	liveSheet := "live"
	historySheet := "history"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(liveSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(historySheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "TPMS Report")
	_ = f.SetCellValue(summarySheet, "A3", "Session")
	_ = f.SetCellValue(summarySheet, "B3", r.Session.ID)
	_ = f.SetCellValue(summarySheet, "A4", "Axle configuration")
	_ = f.SetCellValue(summarySheet, "B4", layout.String(r.Session.AxleConfig))
	_ = f.SetCellValue(summarySheet, "A5", "Tires")
	_ = f.SetCellValue(summarySheet, "B5", r.Session.TireCount)
	_ = f.SetCellValue(summarySheet, "A6", "RX ID")
	_ = f.SetCellValue(summarySheet, "B6", r.Session.Device.RxID)
	_ = f.SetCellValue(summarySheet, "A7", "TX ID")
	_ = f.SetCellValue(summarySheet, "B7", r.Session.Device.TxID)
	_ = f.SetCellValue(summarySheet, "A8", "Baud rate")
	_ = f.SetCellValue(summarySheet, "B8", r.Session.Device.BaudRate)
	_ = f.SetCellValue(summarySheet, "A9", "Generated")
	_ = f.SetCellValue(summarySheet, "B9", r.GeneratedAt.Format(time.RFC3339))

	liveHeader := []string{"Tire", "Position", "Pressure (PSI)", "Temperature (°C)", "Battery (%)", "Status", "Updated"}
	for i, h := range liveHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(liveSheet, cell, h)
	}
	for i, row := range r.Rows {
		n := i + 2
		_ = f.SetCellValue(liveSheet, fmt.Sprintf("A%d", n), row.Tire)
		_ = f.SetCellValue(liveSheet, fmt.Sprintf("B%d", n), row.Name)
		_ = f.SetCellValue(liveSheet, fmt.Sprintf("C%d", n), round2(row.Snapshot.Pressure))
		_ = f.SetCellValue(liveSheet, fmt.Sprintf("D%d", n), round2(row.Snapshot.Temperature))
		_ = f.SetCellValue(liveSheet, fmt.Sprintf("E%d", n), round2(row.Snapshot.Battery))
		_ = f.SetCellValue(liveSheet, fmt.Sprintf("F%d", n), string(row.Status))
		_ = f.SetCellValue(liveSheet, fmt.Sprintf("G%d", n), row.Snapshot.UpdatedAt.Format(time.RFC3339))
	}

	historyHeader := []string{"Tire", "Time", "Pressure (PSI)", "Temperature (°C)", "Battery (%)"}
	for i, h := range historyHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(historySheet, cell, h)
	}
	n := 2
	for i, data := range r.History {
		tire := i + 1
		if i < len(r.Rows) {
			tire = r.Rows[i].Tire
		}
		for j, label := range data.Labels {
			_ = f.SetCellValue(historySheet, fmt.Sprintf("A%d", n), tire)
			_ = f.SetCellValue(historySheet, fmt.Sprintf("B%d", n), label)
			for k, kind := range models.MetricKinds {
				if v := data.Column(kind)[j]; v != nil {
					cell, _ := excelize.CoordinatesToCellName(3+k, n)
					_ = f.SetCellValue(historySheet, cell, round2(*v))
				}
			}
			n++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders the live table as a one-page PDF.
func BuildPDF(r Report) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "TPMS Report")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Session: %s", r.Session.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Axle configuration: %s (%d tires)", layout.String(r.Session.AxleConfig), r.Session.TireCount))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Receiver: RX %s / TX %s @ %d baud", r.Session.Device.RxID, r.Session.Device.TxID, r.Session.Device.BaudRate))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", r.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	widths := []float64{15, 70, 35, 40, 30, 30, 45}
	header := []string{"Tire", "Position", "Pressure (PSI)", "Temperature (C)", "Battery (%)", "Status", "Points"}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range header {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for i, row := range r.Rows {
		points := 0
		if i < len(r.History) {
			points = len(r.History[i].Labels)
		}
		pdf.CellFormat(widths[0], 6, fmt.Sprintf("%d", row.Tire), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 6, row.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, fmt.Sprintf("%.1f", row.Snapshot.Pressure), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, fmt.Sprintf("%.1f", row.Snapshot.Temperature), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, fmt.Sprintf("%.0f", row.Snapshot.Battery), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 6, string(row.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[6], 6, fmt.Sprintf("%d", points), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
