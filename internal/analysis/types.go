package analysis

// Point is one labelled value in a chart series.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Series is a render-ready data series; the frontend decides how to draw it.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

type Overview struct {
	TotalWaste           float64 `json:"totalWaste"`
	TotalProduction      float64 `json:"totalProduction"`
	OverallWasteRate     float64 `json:"overallWasteRate"`
	TotalWasteValue      float64 `json:"totalWasteValue"`
	AvgInventoryTurnover float64 `json:"avgInventoryTurnover"`

	WasteOverTime      Series `json:"wasteOverTime"`
	WasteByProduct     Series `json:"wasteByProduct"`
	WasteRateByProduct Series `json:"wasteRateByProduct"`
}

type WasteReport struct {
	AvgWasteByMonth []Series `json:"avgWasteByMonth"`
	WasteByYear     []Series `json:"wasteByYear"`
}

type InventoryReport struct {
	AvgTurnoverByProduct     Series   `json:"avgTurnoverByProduct"`
	AvgDaysOfSupplyByProduct Series   `json:"avgDaysOfSupplyByProduct"`
	AvgBeginInventoryByMonth []Series `json:"avgBeginInventoryByMonth"`
}

type ProductionReport struct {
	ProductionByProduct             Series `json:"productionByProduct"`
	DomesticByProduct               Series `json:"domesticByProduct"`
	AvgCapacityUtilizationByProduct Series `json:"avgCapacityUtilizationByProduct"`
	AvgDemandGapByProduct           Series `json:"avgDemandGapByProduct"`
}

type EconomicReport struct {
	WasteValueByProduct         Series `json:"wasteValueByProduct"`
	WasteValueOverTime          Series `json:"wasteValueOverTime"`
	WastePctOfShipmentByProduct Series `json:"wastePctOfShipmentByProduct"`
	AvgWasteValueByMonth        Series `json:"avgWasteValueByMonth"`
}

type Insights struct {
	OK bool `json:"ok"`

	HighestWasteRateProduct string  `json:"highestWasteRateProduct,omitempty"`
	HighestWasteRate        float64 `json:"highestWasteRate,omitempty"`
	LowestWasteRateProduct  string  `json:"lowestWasteRateProduct,omitempty"`
	LowestWasteRate         float64 `json:"lowestWasteRate,omitempty"`
	PeakWasteMonth          int     `json:"peakWasteMonth,omitempty"`
	SlowestTurnoverProduct  string  `json:"slowestTurnoverProduct,omitempty"`
	SlowestTurnover         float64 `json:"slowestTurnover,omitempty"`
}
