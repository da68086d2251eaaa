package factory

import (
	"fmt"

	"github.com/brokerdesk/commission-engine/commission"
)

// =============================================================================
// GRID SCHEMA
// =============================================================================

// GridJSON is one selectable rate row.
type GridJSON struct {
	ID            string `json:"id" yaml:"id"`
	Table         string `json:"table,omitempty" yaml:"table,omitempty"`
	TenantID      string `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	ProductType   string `json:"product_type,omitempty" yaml:"product_type,omitempty"`
	Provider      string `json:"provider,omitempty" yaml:"provider,omitempty"`
	TierID        string `json:"tier_id,omitempty" yaml:"tier_id,omitempty"`
	AgentType     string `json:"agent_type,omitempty" yaml:"agent_type,omitempty"`
	BaseRate      Number `json:"base_rate" yaml:"base_rate"`
	RewardRate    Number `json:"reward_rate,omitempty" yaml:"reward_rate,omitempty"`
	BonusRate     Number `json:"bonus_rate,omitempty" yaml:"bonus_rate,omitempty"`
	EffectiveFrom string `json:"effective_from,omitempty" yaml:"effective_from,omitempty"`
	EffectiveTo   string `json:"effective_to,omitempty" yaml:"effective_to,omitempty"`
}

// GridTableJSON is a named grid table whose rows inherit its scope and
// effective window unless they set their own.
type GridTableJSON struct {
	Name          string     `json:"name" yaml:"name"`
	ProductType   string     `json:"product_type" yaml:"product_type"`
	Provider      string     `json:"provider,omitempty" yaml:"provider,omitempty"`
	TierID        string     `json:"tier_id,omitempty" yaml:"tier_id,omitempty"`
	AgentType     string     `json:"agent_type,omitempty" yaml:"agent_type,omitempty"`
	EffectiveFrom string     `json:"effective_from,omitempty" yaml:"effective_from,omitempty"`
	EffectiveTo   string     `json:"effective_to,omitempty" yaml:"effective_to,omitempty"`
	Rows          []GridJSON `json:"rows" yaml:"rows"`
}

// =============================================================================
// GRID CONVERSION
// =============================================================================

// Grid converts one row. Missing reward and bonus rates become zero; a
// missing base rate or product type is rejected.
func (f *Factory) Grid(gj GridJSON) (commission.Grid, error) {
	rec := "grid " + gj.ID
	if gj.ID == "" {
		return commission.Grid{}, invalid("grid", "id", "required")
	}

	tenant, err := f.tenant(rec, gj.TenantID)
	if err != nil {
		return commission.Grid{}, err
	}

	g := commission.Grid{
		ID:          commission.GridID(gj.ID),
		Table:       gj.Table,
		TenantID:    tenant,
		ProductType: gj.ProductType,
		Provider:    gj.Provider,
		TierID:      commission.TierID(gj.TierID),
		AgentType:   gj.AgentType,
	}

	if g.BaseRate, err = required(rec, "base_rate", gj.BaseRate); err != nil {
		return commission.Grid{}, err
	}
	if g.RewardRate, err = optional(rec, "reward_rate", gj.RewardRate); err != nil {
		return commission.Grid{}, err
	}
	if g.BonusRate, err = optional(rec, "bonus_rate", gj.BonusRate); err != nil {
		return commission.Grid{}, err
	}
	if g.EffectiveFrom, err = parseDate(rec, "effective_from", gj.EffectiveFrom); err != nil {
		return commission.Grid{}, err
	}
	if gj.EffectiveTo != "" {
		to, err := parseDate(rec, "effective_to", gj.EffectiveTo)
		if err != nil {
			return commission.Grid{}, err
		}
		g.EffectiveTo = &to
	}

	if err := g.Validate(); err != nil {
		return commission.Grid{}, err
	}
	return g, nil
}

// GridTable flattens a table into rows. Row errors are returned alongside
// the rows that did parse.
func (f *Factory) GridTable(tj GridTableJSON) ([]commission.Grid, []error) {
	var (
		grids []commission.Grid
		errs  []error
	)
	for i, row := range tj.Rows {
		if row.ID == "" {
			row.ID = fmt.Sprintf("%s-%d", tj.Name, i+1)
		}
		row.Table = firstNonEmpty(row.Table, tj.Name)
		row.ProductType = firstNonEmpty(row.ProductType, tj.ProductType)
		row.Provider = firstNonEmpty(row.Provider, tj.Provider)
		row.TierID = firstNonEmpty(row.TierID, tj.TierID)
		row.AgentType = firstNonEmpty(row.AgentType, tj.AgentType)
		row.EffectiveFrom = firstNonEmpty(row.EffectiveFrom, tj.EffectiveFrom)
		row.EffectiveTo = firstNonEmpty(row.EffectiveTo, tj.EffectiveTo)

		g, err := f.Grid(row)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		grids = append(grids, g)
	}
	return grids, errs
}

// GridToJSON is the inverse of Grid.
func GridToJSON(g commission.Grid) GridJSON {
	gj := GridJSON{
		ID:            string(g.ID),
		Table:         g.Table,
		TenantID:      string(g.TenantID),
		ProductType:   g.ProductType,
		Provider:      g.Provider,
		TierID:        string(g.TierID),
		AgentType:     g.AgentType,
		BaseRate:      NumberOf(g.BaseRate),
		RewardRate:    NumberOf(g.RewardRate),
		BonusRate:     NumberOf(g.BonusRate),
		EffectiveFrom: formatDate(g.EffectiveFrom),
	}
	if g.EffectiveTo != nil {
		gj.EffectiveTo = formatDate(*g.EffectiveTo)
	}
	return gj
}
