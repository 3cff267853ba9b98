package pipeline

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"wastewatch/internal"
)

// exportHeaders is the standardized column set of the normalized table.
// The first ten are role names, so exported output round-trips through
// Derive with IdentityMapping.
var exportHeaders = []string{
	"product", "year", "month",
	"begin_inventory", "production", "domestic", "export", "end_inventory",
	"shipment_value", "capacity",
	"waste", "total_distribution", "waste_rate", "avg_inventory",
	"inventory_turnover", "capacity_utilization", "value_per_unit",
	"waste_value", "days_of_supply", "production_demand_gap",
}

func exportRecord(row internal.NormalizedRow) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		row.Product,
		strconv.Itoa(row.Year),
		strconv.Itoa(row.Month),
		f(row.BeginInventory), f(row.Production), f(row.Domestic), f(row.Export), f(row.EndInventory),
		f(row.ShipmentValue), f(row.Capacity),
		f(row.Waste), f(row.TotalDistribution), f(row.WasteRate), f(row.AvgInventory),
		f(row.InventoryTurnover), f(row.CapacityUtilization), f(row.ValuePerUnit),
		f(row.WasteValue), f(row.DaysOfSupply), f(row.ProductionDemandGap),
	}
}

// ExportCSV renders the normalized table as a CSV byte stream for download.
func ExportCSV(table internal.NormalizedTable) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(exportHeaders); err != nil {
		return nil, err
	}
	for _, row := range table.Rows {
		if err := w.Write(exportRecord(row)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportXLSX writes the normalized table as a workbook with a data sheet
// and a totals sheet.
func ExportXLSX(table internal.NormalizedTable, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, h := range exportHeaders {
		cellName, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cellName, h)
	}

	for i, row := range table.Rows {
		r := i + 2
		set := func(col int, value any) {
			cellName, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cellName, value)
		}
		set(1, row.Product)
		set(2, row.Year)
		set(3, row.Month)
		set(4, row.BeginInventory)
		set(5, row.Production)
		set(6, row.Domestic)
		set(7, row.Export)
		set(8, row.EndInventory)
		set(9, row.ShipmentValue)
		set(10, row.Capacity)
		set(11, row.Waste)
		set(12, row.TotalDistribution)
		set(13, row.WasteRate)
		set(14, row.AvgInventory)
		set(15, row.InventoryTurnover)
		set(16, row.CapacityUtilization)
		set(17, row.ValuePerUnit)
		set(18, row.WasteValue)
		set(19, row.DaysOfSupply)
		set(20, row.ProductionDemandGap)
	}

	if _, err := f.NewSheet("Totals"); err == nil {
		var waste, production, wasteValue float64
		for _, row := range table.Rows {
			waste += row.Waste
			production += row.Production
			wasteValue += row.WasteValue
		}
		_ = f.SetCellValue("Totals", "A1", "total_waste")
		_ = f.SetCellValue("Totals", "B1", waste)
		_ = f.SetCellValue("Totals", "A2", "total_production")
		_ = f.SetCellValue("Totals", "B2", production)
		_ = f.SetCellValue("Totals", "A3", "overall_waste_rate")
		_ = f.SetCellValue("Totals", "B3", safeDiv(waste, production))
		_ = f.SetCellValue("Totals", "A4", "total_waste_value")
		_ = f.SetCellValue("Totals", "B4", wasteValue)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
