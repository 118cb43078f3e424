package report

import (
	"fmt"
	"io"

	"atmosfera/internal/annotator"
	"atmosfera/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SheetLog = "Log Rekomendasi"
	SheetKPI = "KPI"
)

// tier fill colors, matching the dashboard highlight
var tierFill = map[models.Tier]string{
	models.TierOK:   "C6EFCE",
	models.TierWarn: "FFEB9C",
	models.TierBad:  "FFC7CE",
}

// WriteHistoryXLSX writes the recommendation log and the KPI summary as a workbook.
func WriteHistoryXLSX(w io.Writer, annotations []annotator.Annotation, kpi annotator.KPI) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetLog); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetKPI); err != nil {
		return fmt.Errorf("failed to create KPI sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9D9D9"}},
	})
	if err != nil {
		return err
	}
	styles := make(map[models.Tier]int, len(tierFill))
	for tier, color := range tierFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		})
		if err != nil {
			return err
		}
		styles[tier] = id
	}

	for i, h := range historyHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(SheetLog, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(historyHeader), 1)
	f.SetCellStyle(SheetLog, "A1", last, header)

	for r, a := range annotations {
		row := r + 2
		for c, v := range historyRecord(a) {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			f.SetCellValue(SheetLog, cell, v)
		}
		// pm25 as a number so spreadsheets can aggregate it
		f.SetCellValue(SheetLog, fmt.Sprintf("F%d", row), a.PM25)
		// public G..I, policy J..L
		if id, ok := styles[a.Public.Tier]; ok {
			f.SetCellStyle(SheetLog, fmt.Sprintf("G%d", row), fmt.Sprintf("I%d", row), id)
		}
		if id, ok := styles[a.Policy.Tier]; ok {
			f.SetCellStyle(SheetLog, fmt.Sprintf("J%d", row), fmt.Sprintf("L%d", row), id)
		}
	}
	f.SetColWidth(SheetLog, "A", "C", 18)
	f.SetColWidth(SheetLog, "I", "I", 60)
	f.SetColWidth(SheetLog, "L", "L", 60)

	summary := [][]interface{}{
		{"Indikator", "Nilai"},
		{"Jumlah data", kpi.Rows},
		{"Periode", fmt.Sprintf("%d-%d", kpi.FromYear, kpi.ToYear)},
		{"Rata-rata PM2.5", kpi.GlobalPM25},
		{"Stasiun kritis", kpi.CriticalStation},
		{"Hari tidak sehat (stasiun kritis)", kpi.CriticalCount},
		{"Rasio sehat (%)", kpi.HealthyRatio},
	}
	for r, values := range summary {
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			f.SetCellValue(SheetKPI, cell, v)
		}
	}
	f.SetCellStyle(SheetKPI, "A1", "B1", header)

	start := len(summary) + 2
	f.SetCellValue(SheetKPI, fmt.Sprintf("A%d", start), "Bulan")
	f.SetCellValue(SheetKPI, fmt.Sprintf("B%d", start), "Rata-rata PM2.5")
	f.SetCellValue(SheetKPI, fmt.Sprintf("C%d", start), "Jumlah")
	f.SetCellStyle(SheetKPI, fmt.Sprintf("A%d", start), fmt.Sprintf("C%d", start), header)
	for i, m := range kpi.Monthly {
		row := start + 1 + i
		f.SetCellValue(SheetKPI, fmt.Sprintf("A%d", row), m.Month)
		f.SetCellValue(SheetKPI, fmt.Sprintf("B%d", row), m.PM25)
		f.SetCellValue(SheetKPI, fmt.Sprintf("C%d", row), m.Count)
	}
	f.SetColWidth(SheetKPI, "A", "A", 34)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
