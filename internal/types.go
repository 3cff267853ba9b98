package internal

type Role string

const (
	RoleProduct        Role = "product"
	RoleYear           Role = "year"
	RoleMonth          Role = "month"
	RoleBeginInventory Role = "begin_inventory"
	RoleProduction     Role = "production"
	RoleDomestic       Role = "domestic"
	RoleExport         Role = "export"
	RoleEndInventory   Role = "end_inventory"
	RoleShipmentValue  Role = "shipment_value"
	RoleCapacity       Role = "capacity"
)

// AllRoles lists every role in normalized column order.
var AllRoles = []Role{
	RoleProduct, RoleYear, RoleMonth, RoleBeginInventory, RoleProduction,
	RoleDomestic, RoleExport, RoleEndInventory, RoleShipmentValue, RoleCapacity,
}

// NumericRoles holds every role coerced to float64 during normalization.
var NumericRoles = []Role{
	RoleYear, RoleMonth, RoleBeginInventory, RoleProduction, RoleDomestic,
	RoleExport, RoleEndInventory, RoleShipmentValue, RoleCapacity,
}

// RequiredRoles must be bound before filtering and grouping make sense.
var RequiredRoles = []Role{RoleProduct, RoleYear}

// RoleMapping binds a semantic role to a literal dataset column name.
// At most one column per role; unbound optional roles fall back to defaults.
type RoleMapping map[Role]string

type RawTable struct {
	Headers []string
	Rows    [][]string
}

type YearRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type NormalizedRow struct {
	Product string `json:"product"`
	Year    int    `json:"year"`
	Month   int    `json:"month"`

	BeginInventory float64 `json:"begin_inventory"`
	Production     float64 `json:"production"`
	Domestic       float64 `json:"domestic"`
	Export         float64 `json:"export"`
	EndInventory   float64 `json:"end_inventory"`
	ShipmentValue  float64 `json:"shipment_value"`
	Capacity       float64 `json:"capacity"`

	Waste               float64 `json:"waste"`
	TotalDistribution   float64 `json:"total_distribution"`
	WasteRate           float64 `json:"waste_rate"`
	AvgInventory        float64 `json:"avg_inventory"`
	InventoryTurnover   float64 `json:"inventory_turnover"`
	CapacityUtilization float64 `json:"capacity_utilization"`
	ValuePerUnit        float64 `json:"value_per_unit"`
	WasteValue          float64 `json:"waste_value"`
	DaysOfSupply        float64 `json:"days_of_supply"`
	ProductionDemandGap float64 `json:"production_demand_gap"`
}

type NormalizedTable struct {
	Rows     []NormalizedRow `json:"rows"`
	Warnings []string        `json:"warnings,omitempty"`
}

type DatasetSource string

const (
	SourceCSV  DatasetSource = "csv"
	SourceXLSX DatasetSource = "xlsx"
	SourceHTML DatasetSource = "html"
	SourcePDF  DatasetSource = "pdf"
)

type DatasetRow struct {
	ID          int
	Name        string
	Source      string
	Hash        string
	ReportID    *int
	RowCount    int
	TableJSON   string
	MappingJSON string
	CreatedAt   string
}

type ReportRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type MatchStatus string

type MatchReason string

const (
	MatchOK       MatchStatus = "OK"
	MatchReview   MatchStatus = "REVIEW"
	MatchNotFound MatchStatus = "NOT_FOUND"

	ReasonAlias MatchReason = "ALIAS"
	ReasonName  MatchReason = "NAME"
	ReasonFuzzy MatchReason = "FUZZY"
	ReasonNone  MatchReason = "NONE"
)

type CatalogProduct struct {
	ID        int
	SyncUID   *string
	Name      string
	Category  *string
	Unit      *string
	Aliases   []string
	UpdatedAt *string
	RawJSON   string
}

type MatchCandidate struct {
	ID      int     `json:"id"`
	SyncUID *string `json:"syncUid"`
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
}

type ProductMatch struct {
	Status     MatchStatus      `json:"status"`
	Confidence float64          `json:"confidence"`
	Reason     MatchReason      `json:"reason"`
	Product    *CatalogProduct  `json:"product,omitempty"`
	Candidates []MatchCandidate `json:"candidates"`
}
