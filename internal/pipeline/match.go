package pipeline

import (
	"sort"

	"wastewatch/internal"
	"wastewatch/internal/config"
	"wastewatch/internal/registry"
	"wastewatch/internal/util"
)

// Matcher canonicalizes free-form product labels against the synced
// registry. Heterogeneous uploads spell the same product differently
// ("Frozen Chicken", "chicken, frozen"); matching annotates labels with a
// canonical id so cross-dataset grouping lines up. It never alters the
// derived metrics.
type Matcher struct {
	cfg   config.Config
	index *registry.Index
}

func NewMatcher(cfg config.Config, products []internal.CatalogProduct) *Matcher {
	return &Matcher{cfg: cfg, index: registry.BuildIndex(products)}
}

func (m *Matcher) Match(label string) internal.ProductMatch {
	normalized := util.NormalizeLabel(label)
	if normalized == "" {
		return internal.ProductMatch{Status: internal.MatchNotFound, Reason: internal.ReasonNone, Candidates: []internal.MatchCandidate{}}
	}

	if byAlias := m.index.ByAlias[normalized]; len(byAlias) == 1 {
		p := byAlias[0]
		return internal.ProductMatch{
			Status:     internal.MatchOK,
			Confidence: 0.99,
			Reason:     internal.ReasonAlias,
			Product:    &p,
			Candidates: []internal.MatchCandidate{{ID: p.ID, SyncUID: p.SyncUID, Name: p.Name, Score: 0.99}},
		}
	} else if len(byAlias) > 1 {
		return internal.ProductMatch{
			Status:     internal.MatchReview,
			Confidence: 0.80,
			Reason:     internal.ReasonAlias,
			Candidates: toCandidates(byAlias, 0.80),
		}
	}

	if exact := m.index.ByName[normalized]; len(exact) == 1 {
		p := exact[0]
		return internal.ProductMatch{
			Status:     internal.MatchOK,
			Confidence: 0.95,
			Reason:     internal.ReasonName,
			Product:    &p,
			Candidates: []internal.MatchCandidate{{ID: p.ID, SyncUID: p.SyncUID, Name: p.Name, Score: 0.95}},
		}
	} else if len(exact) > 1 {
		return internal.ProductMatch{
			Status:     internal.MatchReview,
			Confidence: 0.78,
			Reason:     internal.ReasonName,
			Candidates: toCandidates(exact, 0.78),
		}
	}

	candidates := m.rankCandidates(normalized)
	if len(candidates) == 0 {
		return internal.ProductMatch{Status: internal.MatchNotFound, Confidence: 0, Reason: internal.ReasonNone, Candidates: []internal.MatchCandidate{}}
	}

	top1 := candidates[0]
	gap := top1.Score
	if len(candidates) > 1 {
		gap = top1.Score - candidates[1].Score
	}

	best := m.index.ProductsByID[top1.ID]
	if top1.Score >= m.cfg.MatchOKThreshold && gap >= m.cfg.MatchGapThreshold {
		return internal.ProductMatch{Status: internal.MatchOK, Confidence: top1.Score, Reason: internal.ReasonFuzzy, Product: &best, Candidates: candidates}
	}
	if top1.Score >= m.cfg.MatchReviewThreshold {
		return internal.ProductMatch{Status: internal.MatchReview, Confidence: top1.Score, Reason: internal.ReasonFuzzy, Product: &best, Candidates: candidates}
	}
	return internal.ProductMatch{Status: internal.MatchNotFound, Confidence: top1.Score, Reason: internal.ReasonNone, Candidates: candidates}
}

// MatchAll canonicalizes every distinct product in a raw table.
func (m *Matcher) MatchAll(raw internal.RawTable, mapping internal.RoleMapping) map[string]internal.ProductMatch {
	out := map[string]internal.ProductMatch{}
	for _, label := range Products(raw, mapping) {
		out[label] = m.Match(label)
	}
	return out
}

func (m *Matcher) rankCandidates(query string) []internal.MatchCandidate {
	queryTokens := util.Tokenize(query)
	ids := map[int]struct{}{}

	for _, token := range queryTokens {
		for id := range m.index.TokenToProductIDs[token] {
			ids[id] = struct{}{}
		}
	}

	if len(ids) == 0 {
		i := 0
		for id := range m.index.ProductsByID {
			ids[id] = struct{}{}
			i++
			if i >= 1500 {
				break
			}
		}
	}

	out := make([]internal.MatchCandidate, 0, len(ids))
	for id := range ids {
		product := m.index.ProductsByID[id]
		candidateName := m.index.NormalizedNameByID[id]
		score := scoreLabel(query, candidateName, queryTokens, util.Tokenize(candidateName))
		out = append(out, internal.MatchCandidate{ID: product.ID, SyncUID: product.SyncUID, Name: product.Name, Score: score})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

func scoreLabel(query, candidate string, queryTokens, candidateTokens []string) float64 {
	dice := util.DiceCoefficient(query, candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return dice
	}

	set := map[string]struct{}{}
	for _, t := range candidateTokens {
		set[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			overlap++
		}
	}
	tokenScore := float64(overlap) / float64(len(queryTokens))
	return 0.65*dice + 0.35*tokenScore
}

func toCandidates(products []internal.CatalogProduct, score float64) []internal.MatchCandidate {
	limit := len(products)
	if limit > 5 {
		limit = 5
	}
	out := make([]internal.MatchCandidate, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, internal.MatchCandidate{ID: products[i].ID, SyncUID: products[i].SyncUID, Name: products[i].Name, Score: score})
	}
	return out
}
