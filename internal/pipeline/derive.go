package pipeline

import (
	"fmt"
	"math"
	"strings"

	"wastewatch/internal"
	"wastewatch/internal/util"
)

// Derive is the metric deriver: it renames columns per the role mapping,
// coerces numerics, filters by product and year range, computes the derived
// waste/economics fields, and sanitizes the result so every output value is
// finite. Pure and stateless; calling it twice with identical inputs yields
// identical output.
func Derive(raw internal.RawTable, mapping internal.RoleMapping, selectedProducts []string, years internal.YearRange) (internal.NormalizedTable, error) {
	binding, warnings, err := bindRoles(raw.Headers, mapping)
	if err != nil {
		return internal.NormalizedTable{}, err
	}

	_, hasCapacity := binding[internal.RoleCapacity]
	_, hasShipment := binding[internal.RoleShipmentValue]

	selected := make(map[string]struct{}, len(selectedProducts))
	for _, p := range selectedProducts {
		selected[strings.TrimSpace(p)] = struct{}{}
	}

	table := internal.NormalizedTable{Rows: []internal.NormalizedRow{}, Warnings: warnings}
	if len(selected) == 0 {
		return table, nil
	}

	for _, cells := range raw.Rows {
		product := strings.TrimSpace(cell(cells, binding[internal.RoleProduct]))
		if _, ok := selected[product]; !ok {
			continue
		}

		year := numericCell(cells, binding, internal.RoleYear)
		if year < float64(years.Min) || year > float64(years.Max) {
			continue
		}

		row := internal.NormalizedRow{
			Product:        product,
			Year:           int(year),
			Month:          int(numericCell(cells, binding, internal.RoleMonth)),
			BeginInventory: numericCell(cells, binding, internal.RoleBeginInventory),
			Production:     numericCell(cells, binding, internal.RoleProduction),
			Domestic:       numericCell(cells, binding, internal.RoleDomestic),
			Export:         numericCell(cells, binding, internal.RoleExport),
			EndInventory:   numericCell(cells, binding, internal.RoleEndInventory),
			ShipmentValue:  numericCell(cells, binding, internal.RoleShipmentValue),
			Capacity:       numericCell(cells, binding, internal.RoleCapacity),
		}

		row.Waste = row.BeginInventory + row.Production - row.Domestic - row.Export - row.EndInventory
		row.TotalDistribution = row.Domestic + row.Export
		row.WasteRate = safeDiv(row.Waste, row.Production)
		row.AvgInventory = (row.BeginInventory + row.EndInventory) / 2
		row.InventoryTurnover = safeDiv(row.Domestic, row.AvgInventory)
		if hasCapacity {
			row.CapacityUtilization = safeDiv(row.Production, row.Capacity)
		}
		if hasShipment {
			row.ValuePerUnit = safeDiv(row.ShipmentValue, row.TotalDistribution)
		}
		row.WasteValue = row.Waste * row.ValuePerUnit
		row.DaysOfSupply = safeDiv(row.EndInventory, row.Domestic) * 30
		row.ProductionDemandGap = row.Production - row.Domestic

		sanitizeRow(&row)
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// bindRoles resolves the mapping against cleaned headers. Unbound optional
// roles produce a warning and default values downstream; unbound required
// roles make the whole derivation meaningless, so they error out instead of
// fabricating data.
func bindRoles(headers []string, mapping internal.RoleMapping) (map[internal.Role]int, []string, error) {
	index := map[string]int{}
	for i, h := range headers {
		index[util.CleanHeader(h)] = i
	}

	binding := map[internal.Role]int{}
	var warnings []string
	for role, column := range mapping {
		col, ok := index[util.CleanHeader(column)]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("column %q mapped to role %s not found in dataset", column, role))
			continue
		}
		binding[role] = col
	}

	for _, role := range internal.RequiredRoles {
		if _, ok := binding[role]; !ok {
			return nil, nil, fmt.Errorf("required role %s is not bound to any column", role)
		}
	}

	for _, role := range internal.NumericRoles {
		if role == internal.RoleYear {
			continue
		}
		if _, ok := binding[role]; !ok {
			warnings = append(warnings, fmt.Sprintf("role %s not mapped; values default to 0", role))
		}
	}

	return binding, warnings, nil
}

// cell returns cells[col] when col is in range; binding misses pass -1.
func cell(cells []string, col int) string {
	if col < 0 || col >= len(cells) {
		return ""
	}
	return cells[col]
}

// numericCell coerces one bound cell, treating unbound roles and
// unparseable values as 0 per the leniency policy.
func numericCell(cells []string, binding map[internal.Role]int, role internal.Role) float64 {
	col, ok := binding[role]
	if !ok {
		return 0
	}
	v := util.CoerceNumber(cell(cells, col))
	if v == nil {
		return 0
	}
	return *v
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func sanitizeRow(row *internal.NormalizedRow) {
	for _, p := range []*float64{
		&row.BeginInventory, &row.Production, &row.Domestic, &row.Export,
		&row.EndInventory, &row.ShipmentValue, &row.Capacity,
		&row.Waste, &row.TotalDistribution, &row.WasteRate, &row.AvgInventory,
		&row.InventoryTurnover, &row.CapacityUtilization, &row.ValuePerUnit,
		&row.WasteValue, &row.DaysOfSupply, &row.ProductionDemandGap,
	} {
		if math.IsInf(*p, 0) || math.IsNaN(*p) {
			*p = 0
		}
	}
}

// Products lists distinct product labels in dataset order, using the
// mapped product column.
func Products(raw internal.RawTable, mapping internal.RoleMapping) []string {
	col := columnIndex(raw.Headers, mapping[internal.RoleProduct])
	if col < 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, cells := range raw.Rows {
		p := strings.TrimSpace(cell(cells, col))
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// YearBounds reports the min and max parseable year in the dataset. ok is
// false when no row has a usable year value.
func YearBounds(raw internal.RawTable, mapping internal.RoleMapping) (internal.YearRange, bool) {
	col := columnIndex(raw.Headers, mapping[internal.RoleYear])
	if col < 0 {
		return internal.YearRange{}, false
	}
	found := false
	bounds := internal.YearRange{}
	for _, cells := range raw.Rows {
		v := util.CoerceInt(cell(cells, col))
		if v == nil {
			continue
		}
		if !found || *v < bounds.Min {
			bounds.Min = *v
		}
		if !found || *v > bounds.Max {
			bounds.Max = *v
		}
		found = true
	}
	return bounds, found
}

func columnIndex(headers []string, column string) int {
	if strings.TrimSpace(column) == "" {
		return -1
	}
	want := util.CleanHeader(column)
	for i, h := range headers {
		if util.CleanHeader(h) == want {
			return i
		}
	}
	return -1
}
