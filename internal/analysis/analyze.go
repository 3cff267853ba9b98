package analysis

import (
	"fmt"
	"sort"
	"strconv"

	"wastewatch/internal"
)

// All functions here are stateless consumers of the deriver output. They
// take the normalized rows explicitly; nothing is shared or cached between
// calls. Group keys keep first-seen order so chart series follow dataset
// order, matching how the deriver emits rows.

type accumulator struct {
	order []string
	sum   map[string]float64
	count map[string]int
}

func newAccumulator() *accumulator {
	return &accumulator{sum: map[string]float64{}, count: map[string]int{}}
}

func (a *accumulator) add(key string, value float64) {
	if _, ok := a.sum[key]; !ok {
		a.order = append(a.order, key)
	}
	a.sum[key] += value
	a.count[key]++
}

func (a *accumulator) sums(name string) Series {
	s := Series{Name: name, Points: []Point{}}
	for _, key := range a.order {
		s.Points = append(s.Points, Point{Label: key, Value: a.sum[key]})
	}
	return s
}

func (a *accumulator) means(name string) Series {
	s := Series{Name: name, Points: []Point{}}
	for _, key := range a.order {
		s.Points = append(s.Points, Point{Label: key, Value: a.sum[key] / float64(a.count[key])})
	}
	return s
}

func monthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

func sortChronological(s Series) Series {
	sort.SliceStable(s.Points, func(i, j int) bool { return s.Points[i].Label < s.Points[j].Label })
	return s
}

func sortValueDesc(s Series) Series {
	sort.SliceStable(s.Points, func(i, j int) bool { return s.Points[i].Value > s.Points[j].Value })
	return s
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// perProduct splits rows by product in first-seen order.
func perProduct(rows []internal.NormalizedRow) ([]string, map[string][]internal.NormalizedRow) {
	var order []string
	byProduct := map[string][]internal.NormalizedRow{}
	for _, row := range rows {
		if _, ok := byProduct[row.Product]; !ok {
			order = append(order, row.Product)
		}
		byProduct[row.Product] = append(byProduct[row.Product], row)
	}
	return order, byProduct
}

// BuildOverview computes the headline totals and trend series.
func BuildOverview(rows []internal.NormalizedRow) Overview {
	out := Overview{}

	byTime := newAccumulator()
	wasteByProduct := newAccumulator()
	productionByProduct := newAccumulator()
	var turnoverSum float64

	for _, row := range rows {
		out.TotalWaste += row.Waste
		out.TotalProduction += row.Production
		out.TotalWasteValue += row.WasteValue
		turnoverSum += row.InventoryTurnover

		byTime.add(monthKey(row.Year, row.Month), row.Waste)
		wasteByProduct.add(row.Product, row.Waste)
		productionByProduct.add(row.Product, row.Production)
	}

	out.OverallWasteRate = safeDiv(out.TotalWaste, out.TotalProduction)
	out.AvgInventoryTurnover = safeDiv(turnoverSum, float64(len(rows)))
	out.WasteOverTime = sortChronological(byTime.sums("waste"))
	out.WasteByProduct = wasteByProduct.sums("waste")

	rate := Series{Name: "waste_rate", Points: []Point{}}
	for _, p := range out.WasteByProduct.Points {
		rate.Points = append(rate.Points, Point{Label: p.Label, Value: safeDiv(p.Value, productionByProduct.sum[p.Label])})
	}
	out.WasteRateByProduct = rate

	return out
}

// BuildWasteReport covers seasonal patterns and yearly comparison.
func BuildWasteReport(rows []internal.NormalizedRow) WasteReport {
	out := WasteReport{AvgWasteByMonth: []Series{}, WasteByYear: []Series{}}

	order, byProduct := perProduct(rows)
	for _, product := range order {
		byMonth := newAccumulator()
		byYear := newAccumulator()
		for _, row := range byProduct[product] {
			byMonth.add(fmt.Sprintf("%02d", row.Month), row.Waste)
			byYear.add(fmt.Sprintf("%04d", row.Year), row.Waste)
		}
		out.AvgWasteByMonth = append(out.AvgWasteByMonth, sortChronological(byMonth.means(product)))
		out.WasteByYear = append(out.WasteByYear, sortChronological(byYear.sums(product)))
	}

	return out
}

// BuildInventoryReport covers turnover, days of supply, and the monthly
// beginning-inventory pattern.
func BuildInventoryReport(rows []internal.NormalizedRow) InventoryReport {
	out := InventoryReport{AvgBeginInventoryByMonth: []Series{}}

	turnover := newAccumulator()
	daysOfSupply := newAccumulator()
	for _, row := range rows {
		turnover.add(row.Product, row.InventoryTurnover)
		daysOfSupply.add(row.Product, row.DaysOfSupply)
	}
	out.AvgTurnoverByProduct = turnover.means("inventory_turnover")
	out.AvgDaysOfSupplyByProduct = daysOfSupply.means("days_of_supply")

	order, byProduct := perProduct(rows)
	for _, product := range order {
		byMonth := newAccumulator()
		for _, row := range byProduct[product] {
			byMonth.add(fmt.Sprintf("%02d", row.Month), row.BeginInventory)
		}
		out.AvgBeginInventoryByMonth = append(out.AvgBeginInventoryByMonth, sortChronological(byMonth.means(product)))
	}

	return out
}

// BuildProductionReport compares production against demand.
func BuildProductionReport(rows []internal.NormalizedRow) ProductionReport {
	production := newAccumulator()
	domestic := newAccumulator()
	utilization := newAccumulator()
	gap := newAccumulator()

	for _, row := range rows {
		production.add(row.Product, row.Production)
		domestic.add(row.Product, row.Domestic)
		utilization.add(row.Product, row.CapacityUtilization)
		gap.add(row.Product, row.ProductionDemandGap)
	}

	return ProductionReport{
		ProductionByProduct:             production.sums("production"),
		DomesticByProduct:               domestic.sums("domestic"),
		AvgCapacityUtilizationByProduct: utilization.means("capacity_utilization"),
		AvgDemandGapByProduct:           gap.means("production_demand_gap"),
	}
}

// BuildEconomicReport covers the money side of waste.
func BuildEconomicReport(rows []internal.NormalizedRow) EconomicReport {
	wasteValue := newAccumulator()
	shipment := newAccumulator()
	byTime := newAccumulator()
	byMonth := newAccumulator()

	for _, row := range rows {
		wasteValue.add(row.Product, row.WasteValue)
		shipment.add(row.Product, row.ShipmentValue)
		byTime.add(monthKey(row.Year, row.Month), row.WasteValue)
		byMonth.add(fmt.Sprintf("%02d", row.Month), row.WasteValue)
	}

	pct := Series{Name: "waste_pct_of_value", Points: []Point{}}
	for _, key := range wasteValue.order {
		pct.Points = append(pct.Points, Point{Label: key, Value: safeDiv(wasteValue.sum[key], shipment.sum[key]) * 100})
	}

	return EconomicReport{
		WasteValueByProduct:         sortValueDesc(wasteValue.sums("waste_value")),
		WasteValueOverTime:          sortChronological(byTime.sums("waste_value")),
		WastePctOfShipmentByProduct: pct,
		AvgWasteValueByMonth:        sortChronological(byMonth.means("waste_value")),
	}
}

// BuildInsights picks out the findings the dashboard calls out in prose.
// Empty input yields OK=false; nothing is fabricated.
func BuildInsights(rows []internal.NormalizedRow) Insights {
	if len(rows) == 0 {
		return Insights{}
	}

	waste := newAccumulator()
	production := newAccumulator()
	turnover := newAccumulator()
	wasteByMonth := newAccumulator()
	for _, row := range rows {
		waste.add(row.Product, row.Waste)
		production.add(row.Product, row.Production)
		turnover.add(row.Product, row.InventoryTurnover)
		wasteByMonth.add(fmt.Sprintf("%02d", row.Month), row.Waste)
	}

	out := Insights{OK: true}
	first := true
	for _, product := range waste.order {
		rate := safeDiv(waste.sum[product], production.sum[product])
		if first || rate > out.HighestWasteRate {
			out.HighestWasteRateProduct = product
			out.HighestWasteRate = rate
		}
		if first || rate < out.LowestWasteRate {
			out.LowestWasteRateProduct = product
			out.LowestWasteRate = rate
		}
		first = false
	}

	best := 0.0
	for i, key := range wasteByMonth.order {
		mean := wasteByMonth.sum[key] / float64(wasteByMonth.count[key])
		if i == 0 || mean > best {
			best = mean
			if month, err := strconv.Atoi(key); err == nil {
				out.PeakWasteMonth = month
			}
		}
	}

	firstTurnover := true
	for _, product := range turnover.order {
		mean := turnover.sum[product] / float64(turnover.count[product])
		if firstTurnover || mean < out.SlowestTurnover {
			out.SlowestTurnoverProduct = product
			out.SlowestTurnover = mean
		}
		firstTurnover = false
	}

	return out
}
