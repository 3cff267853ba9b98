package analysis

import (
	"math"
	"testing"

	"wastewatch/internal"
)

func sampleRows() []internal.NormalizedRow {
	return []internal.NormalizedRow{
		{Product: "Frozen Chicken", Year: 2021, Month: 3, Production: 500, Domestic: 400, Waste: 70, WasteRate: 0.14, WasteValue: 155, InventoryTurnover: 4.4, DaysOfSupply: 6, ShipmentValue: 1000, BeginInventory: 100, CapacityUtilization: 0.83, ProductionDemandGap: 100},
		{Product: "Frozen Chicken", Year: 2021, Month: 4, Production: 450, Domestic: 420, Waste: 10, WasteRate: 0.022, WasteValue: 20, InventoryTurnover: 5.1, DaysOfSupply: 4, ShipmentValue: 900, BeginInventory: 80, CapacityUtilization: 0.75, ProductionDemandGap: 30},
		{Product: "Canned Tuna", Year: 2020, Month: 3, Production: 250, Domestic: 180, Waste: 20, WasteRate: 0.08, WasteValue: 50, InventoryTurnover: 2.0, DaysOfSupply: 9, ShipmentValue: 560, BeginInventory: 20, CapacityUtilization: 0.9, ProductionDemandGap: 70},
	}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func TestBuildOverview(t *testing.T) {
	out := BuildOverview(sampleRows())

	approx(t, "totalWaste", out.TotalWaste, 100)
	approx(t, "totalProduction", out.TotalProduction, 1200)
	approx(t, "overallWasteRate", out.OverallWasteRate, 100.0/1200)
	approx(t, "totalWasteValue", out.TotalWasteValue, 225)

	if len(out.WasteOverTime.Points) != 3 {
		t.Fatalf("wasteOverTime=%v", out.WasteOverTime.Points)
	}
	// chronological: 2020-03, 2021-03, 2021-04
	if out.WasteOverTime.Points[0].Label != "2020-03" {
		t.Fatalf("first point=%v", out.WasteOverTime.Points[0])
	}
	if len(out.WasteByProduct.Points) != 2 {
		t.Fatalf("wasteByProduct=%v", out.WasteByProduct.Points)
	}
	approx(t, "chicken waste", out.WasteByProduct.Points[0].Value, 80)
	approx(t, "chicken waste rate", out.WasteRateByProduct.Points[0].Value, 80.0/950)
}

func TestBuildOverviewEmpty(t *testing.T) {
	out := BuildOverview(nil)
	if out.TotalWaste != 0 || out.OverallWasteRate != 0 || out.AvgInventoryTurnover != 0 {
		t.Fatalf("empty overview not zeroed: %+v", out)
	}
	if len(out.WasteOverTime.Points) != 0 {
		t.Fatalf("points=%v", out.WasteOverTime.Points)
	}
}

func TestBuildWasteReport(t *testing.T) {
	out := BuildWasteReport(sampleRows())
	if len(out.AvgWasteByMonth) != 2 || len(out.WasteByYear) != 2 {
		t.Fatalf("series counts: %d %d", len(out.AvgWasteByMonth), len(out.WasteByYear))
	}
	chicken := out.AvgWasteByMonth[0]
	if chicken.Name != "Frozen Chicken" || len(chicken.Points) != 2 {
		t.Fatalf("chicken series: %+v", chicken)
	}
	approx(t, "march avg", chicken.Points[0].Value, 70)
}

func TestBuildInventoryReport(t *testing.T) {
	out := BuildInventoryReport(sampleRows())
	approx(t, "chicken turnover", out.AvgTurnoverByProduct.Points[0].Value, (4.4+5.1)/2)
	approx(t, "tuna days of supply", out.AvgDaysOfSupplyByProduct.Points[1].Value, 9)
}

func TestBuildProductionReport(t *testing.T) {
	out := BuildProductionReport(sampleRows())
	approx(t, "chicken production", out.ProductionByProduct.Points[0].Value, 950)
	approx(t, "chicken demand gap", out.AvgDemandGapByProduct.Points[0].Value, 65)
}

func TestBuildEconomicReport(t *testing.T) {
	out := BuildEconomicReport(sampleRows())
	// sorted by waste value descending, chicken (175) first
	approx(t, "top waste value", out.WasteValueByProduct.Points[0].Value, 175)
	approx(t, "chicken pct", out.WastePctOfShipmentByProduct.Points[0].Value, 175.0/1900*100)
}

func TestBuildInsights(t *testing.T) {
	out := BuildInsights(sampleRows())
	if !out.OK {
		t.Fatal("expected OK insights")
	}
	if out.HighestWasteRateProduct != "Frozen Chicken" {
		t.Fatalf("highest=%q", out.HighestWasteRateProduct)
	}
	if out.LowestWasteRateProduct != "Canned Tuna" {
		t.Fatalf("lowest=%q", out.LowestWasteRateProduct)
	}
	if out.PeakWasteMonth != 3 {
		t.Fatalf("peak month=%d", out.PeakWasteMonth)
	}
	if out.SlowestTurnoverProduct != "Canned Tuna" {
		t.Fatalf("slowest=%q", out.SlowestTurnoverProduct)
	}
}

func TestBuildInsightsEmpty(t *testing.T) {
	out := BuildInsights(nil)
	if out.OK {
		t.Fatal("empty rows should not produce insights")
	}
}
