package pipeline

import (
	"strings"

	"wastewatch/internal"
	"wastewatch/internal/util"
)

// rolePatterns are checked in order; the first header containing a pattern
// claims the role, and a claimed header is never bound twice. Inventory
// roles come before month so "Begin month inventory" is not mistaken for a
// month column.
var rolePatterns = []struct {
	role     internal.Role
	patterns []string
}{
	{internal.RoleProduct, []string{"product", "commodity", "item", "sku"}},
	{internal.RoleYear, []string{"year"}},
	{internal.RoleBeginInventory, []string{"begin", "opening", "start inventory"}},
	{internal.RoleEndInventory, []string{"month-end", "month end", "ending", "end inventory", "closing"}},
	{internal.RoleProduction, []string{"production", "produced", "output", "manufactur"}},
	{internal.RoleDomestic, []string{"domestic", "local sale", "internal sale"}},
	{internal.RoleExport, []string{"export"}},
	{internal.RoleCapacity, []string{"capacity"}},
	{internal.RoleShipmentValue, []string{"shipment value", "shipment", "baht", "revenue", "value"}},
	{internal.RoleMonth, []string{"month", "period"}},
}

// DetectMapping infers a role mapping from raw column headers by
// case-insensitive substring matching against per-role synonym lists.
// Pure function: same headers, same mapping.
func DetectMapping(headers []string) internal.RoleMapping {
	cleaned := make([]string, len(headers))
	lowered := make([]string, len(headers))
	for i, h := range headers {
		cleaned[i] = util.CleanHeader(h)
		lowered[i] = strings.ToLower(cleaned[i])
	}

	mapping := internal.RoleMapping{}
	claimed := make([]bool, len(headers))

	for _, rp := range rolePatterns {
		for _, pattern := range rp.patterns {
			found := -1
			for i, h := range lowered {
				if claimed[i] || h == "" {
					continue
				}
				if strings.Contains(h, pattern) {
					found = i
					break
				}
			}
			if found >= 0 {
				mapping[rp.role] = cleaned[found]
				claimed[found] = true
				break
			}
		}
	}

	return mapping
}

// IdentityMapping binds every role to its standardized column name, the
// header set produced by ExportCSV. Re-deriving exported output with this
// mapping is a no-op.
func IdentityMapping() internal.RoleMapping {
	mapping := internal.RoleMapping{}
	for _, role := range []internal.Role{
		internal.RoleProduct, internal.RoleYear, internal.RoleMonth,
		internal.RoleBeginInventory, internal.RoleProduction, internal.RoleDomestic,
		internal.RoleExport, internal.RoleEndInventory, internal.RoleShipmentValue,
		internal.RoleCapacity,
	} {
		mapping[role] = string(role)
	}
	return mapping
}
