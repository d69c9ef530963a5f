package measurement

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Measurements"

var exportColumns = []string{
	"id", "name", "area_sq_meters", "unit", "display_area", "display",
	"perimeter_meters", "vertex_count", "created_at",
}

func exportRow(m Measurement) []interface{} {
	return []interface{}{
		m.ID.String(),
		m.Name,
		m.AreaSqMeters,
		string(m.Unit),
		m.DisplayArea,
		m.DisplayText(),
		m.PerimeterMeters,
		m.VertexCount,
		m.CreatedAt,
	}
}

// WriteCSV writes one header row and one row per measurement.
func WriteCSV(w io.Writer, measurements []Measurement) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, m := range measurements {
		row := exportRow(m)
		record := make([]string, len(row))
		for i, val := range row {
			record[i] = formatCSVValue(val)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatCSVValue(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// WriteXLSX writes a single-sheet workbook with a styled, frozen header row.
func WriteXLSX(w io.Writer, measurements []Measurement) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	dateStyle, err := file.NewStyle(&excelize.Style{NumFmt: 22}) // m/d/yy h:mm
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(exportSheet, cell, col); err != nil {
			return err
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
	if err := file.SetCellStyle(exportSheet, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for r, m := range measurements {
		for c, val := range exportRow(m) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := file.SetCellValue(exportSheet, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if _, ok := val.(time.Time); ok {
				file.SetCellStyle(exportSheet, cell, cell, dateStyle)
			}
		}
	}

	if err := file.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if len(measurements) > 0 {
		if err := file.AutoFilter(exportSheet, "A1:"+lastHeader, nil); err != nil {
			return err
		}
	}
	file.SetColWidth(exportSheet, "A", "A", 38)
	file.SetColWidth(exportSheet, "B", "B", 30)

	return file.Write(w)
}

// ContentType returns the MIME type and file extension for format.
func ContentType(format ExportFormat) (string, string) {
	switch format {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"
	default:
		return "text/csv", "csv"
	}
}
