package registry

import (
	"wastewatch/internal"
	"wastewatch/internal/util"
)

// Index supports canonicalizing dataset product labels: exact lookup by
// normalized name or alias, plus a token index for fuzzy candidates.
type Index struct {
	ProductsByID       map[int]internal.CatalogProduct
	ByAlias            map[string][]internal.CatalogProduct
	ByName             map[string][]internal.CatalogProduct
	TokenToProductIDs  map[string]map[int]struct{}
	NormalizedNameByID map[int]string
}

func BuildIndex(products []internal.CatalogProduct) *Index {
	idx := &Index{
		ProductsByID:       map[int]internal.CatalogProduct{},
		ByAlias:            map[string][]internal.CatalogProduct{},
		ByName:             map[string][]internal.CatalogProduct{},
		TokenToProductIDs:  map[string]map[int]struct{}{},
		NormalizedNameByID: map[int]string{},
	}

	for _, p := range products {
		idx.ProductsByID[p.ID] = p
		normName := util.NormalizeLabel(p.Name)
		idx.NormalizedNameByID[p.ID] = normName
		idx.ByName[normName] = append(idx.ByName[normName], p)

		for _, alias := range p.Aliases {
			norm := util.NormalizeLabel(alias)
			if norm == "" {
				continue
			}
			idx.ByAlias[norm] = append(idx.ByAlias[norm], p)
		}
		if p.SyncUID != nil {
			norm := util.NormalizeLabel(*p.SyncUID)
			if norm != "" {
				idx.ByAlias[norm] = append(idx.ByAlias[norm], p)
			}
		}

		for _, token := range util.Tokenize(p.Name) {
			if _, ok := idx.TokenToProductIDs[token]; !ok {
				idx.TokenToProductIDs[token] = map[int]struct{}{}
			}
			idx.TokenToProductIDs[token][p.ID] = struct{}{}
		}
	}

	return idx
}
