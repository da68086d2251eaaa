/*
resolver.go - Grid resolution (most-specific-wins)

ALGORITHM:
  1. Keep valid grids for the policy's product type whose effective window
     contains the resolution date.
  2. Drop grids scoped to a different provider, tier or agent type.
  3. Rank survivors: provider match first, then tier and agent-type matches.
  4. Ties go to the lowest grid ID (then table name), so repeated runs over
     the same input always pick the same row.

Resolve is a pure function. Malformed grids are skipped, never selected.
*/
package commission

import (
	"sort"
	"strings"
	"time"
)

// GridMatch is the outcome of a resolution, for auditing.
type GridMatch struct {
	Grid        Grid
	Specificity int
	Candidates  int
	Skipped     int // malformed grids ignored during the scan
}

// Resolve finds the single best grid row for a policy. source may be nil for
// direct policies.
func Resolve(p Policy, source *SourceEntity, grids []Grid, at time.Time) (Grid, bool) {
	m, ok := ResolveMatch(p, source, grids, at)
	return m.Grid, ok
}

// ResolveMatch is Resolve plus scan details.
func ResolveMatch(p Policy, source *SourceEntity, grids []Grid, at time.Time) (GridMatch, bool) {
	var (
		best    []scoredGrid
		skipped int
	)

	for _, g := range grids {
		if g.Validate() != nil {
			skipped++
			continue
		}
		if g.TenantID != "" && p.TenantID != "" && g.TenantID != p.TenantID {
			continue
		}
		if !sameKey(g.ProductType, p.ProductType) || !g.ActiveAt(at) {
			continue
		}
		score, ok := specificity(g, p, source)
		if !ok {
			continue
		}
		best = append(best, scoredGrid{grid: g, score: score})
	}

	if len(best) == 0 {
		return GridMatch{Skipped: skipped}, false
	}

	sort.SliceStable(best, func(i, j int) bool {
		if best[i].score != best[j].score {
			return best[i].score > best[j].score
		}
		if best[i].grid.ID != best[j].grid.ID {
			return best[i].grid.ID < best[j].grid.ID
		}
		return best[i].grid.Table < best[j].grid.Table
	})

	return GridMatch{
		Grid:        best[0].grid,
		Specificity: best[0].score,
		Candidates:  len(best),
		Skipped:     skipped,
	}, true
}

type scoredGrid struct {
	grid  Grid
	score int
}

// Provider outranks tier and agent type combined.
const (
	scoreProvider  = 4
	scoreTier      = 2
	scoreAgentType = 1
)

// specificity scores a grid against the policy and its source. ok is false
// when the grid is scoped to something the policy does not match.
func specificity(g Grid, p Policy, source *SourceEntity) (score int, ok bool) {
	if g.Provider != "" {
		if !sameKey(g.Provider, p.Provider) {
			return 0, false
		}
		score += scoreProvider
	}

	if g.TierID != "" {
		if source == nil || source.TierID() != g.TierID {
			return 0, false
		}
		score += scoreTier
	}

	if g.AgentType != "" {
		if source == nil || !sameKey(g.AgentType, source.EffectiveAgentType()) {
			return 0, false
		}
		score += scoreAgentType
	}

	return score, true
}

func sameKey(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// resolutionDate is the policy's start date, or now when the policy has none.
func resolutionDate(p Policy, now time.Time) time.Time {
	if p.StartDate.IsZero() {
		return now
	}
	return p.StartDate
}
