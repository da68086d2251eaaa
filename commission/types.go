/*
Package commission provides the commission calculation and distribution engine.

PURPOSE:
  Given sold insurance policies, the engine resolves which commission grid
  applies, computes what the insurer pays the brokerage, and splits that
  amount across the parties who sourced the sale (agent, MISP, employee,
  reporting employee) with the broker keeping the remainder.

KEY CONCEPTS IN THIS FILE (types.go):
  - Policy: A sold contract, read-only input to the engine
  - Grid: One selectable rate row of a commission grid table
  - Tier / SourceEntity: Who sold the policy and what share they earn
  - Result: The engine's output for one policy

DESIGN PRINCIPLES:
  1. Precision: Money and rates are decimal.Decimal, never float64
  2. Denormalized inputs: Loaders build these structs once, so the engine
     never chases optional joins
  3. Derived output: Results are recomputed on every run, never edited

SEE ALSO:
  - resolver.go: Grid selection
  - calculator.go: Insurer commission
  - splitter.go: Party allocation
  - engine.go: Batch orchestration
*/
package commission

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type PolicyID string
type GridID string
type SourceID string
type TierID string

// =============================================================================
// SOURCE TYPE - Who sold the policy
// =============================================================================

type SourceType string

const (
	SourceEmployee SourceType = "employee"
	SourceAgent    SourceType = "agent"
	SourceMISP     SourceType = "misp"
	SourceDirect   SourceType = "direct"
)

// ParseSourceType normalizes a raw source type value.
func ParseSourceType(s string) (SourceType, error) {
	switch st := SourceType(strings.ToLower(strings.TrimSpace(s))); st {
	case SourceEmployee, SourceAgent, SourceMISP, SourceDirect:
		return st, nil
	}
	return "", fmt.Errorf("unknown source type %q", s)
}

func (s SourceType) Valid() bool {
	_, err := ParseSourceType(string(s))
	return err == nil
}

// =============================================================================
// POLICY - One sold insurance contract
// =============================================================================

type Policy struct {
	ID           PolicyID
	TenantID     TenantID
	PolicyNumber string
	ProductType  string
	Provider     string
	Premium      decimal.Decimal
	SourceType   SourceType
	SourceID     SourceID
	CustomerRef  string
	CustomerName string
	StartDate    time.Time
	EndDate      time.Time
}

// Validate checks the fields the engine depends on.
func (p Policy) Validate() error {
	switch {
	case p.ID == "":
		return &InvalidInputError{Record: "policy", Field: "id", Reason: "required"}
	case strings.TrimSpace(p.ProductType) == "":
		return &InvalidInputError{Record: "policy " + string(p.ID), Field: "product_type", Reason: "required"}
	case strings.TrimSpace(p.Provider) == "":
		return &InvalidInputError{Record: "policy " + string(p.ID), Field: "provider", Reason: "required"}
	case p.Premium.IsNegative():
		return &InvalidInputError{Record: "policy " + string(p.ID), Field: "premium_amount", Reason: "must not be negative"}
	case !p.SourceType.Valid():
		return &InvalidInputError{Record: "policy " + string(p.ID), Field: "source_type", Reason: fmt.Sprintf("unknown value %q", p.SourceType)}
	case p.SourceType != SourceDirect && p.SourceID == "":
		return &InvalidInputError{Record: "policy " + string(p.ID), Field: "source_id", Reason: "required for non-direct sources"}
	case !p.EndDate.IsZero() && !p.StartDate.IsZero() && p.EndDate.Before(p.StartDate):
		return &InvalidInputError{Record: "policy " + string(p.ID), Field: "end_date", Reason: "before start_date"}
	}
	return nil
}

// =============================================================================
// GRID - A selectable commission rate row
// =============================================================================

// Grid is one rate row of a commission grid table, carrying its own scope.
// Empty Provider, TierID or AgentType means the row is not scoped by it.
// A nil EffectiveTo means open-ended.
type Grid struct {
	ID            GridID
	Table         string
	TenantID      TenantID
	ProductType   string
	Provider      string
	TierID        TierID
	AgentType     string
	BaseRate      decimal.Decimal
	RewardRate    decimal.Decimal
	BonusRate     decimal.Decimal
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
}

// TotalRate is base + reward + bonus. The three are independently additive.
func (g Grid) TotalRate() decimal.Decimal {
	return g.BaseRate.Add(g.RewardRate).Add(g.BonusRate)
}

// Validate reports whether the row can be selected at all.
func (g Grid) Validate() error {
	rec := "grid " + string(g.ID)
	switch {
	case g.ID == "":
		return &InvalidInputError{Record: "grid", Field: "grid_id", Reason: "required"}
	case strings.TrimSpace(g.ProductType) == "":
		return &InvalidInputError{Record: rec, Field: "product_type", Reason: "required"}
	case g.BaseRate.IsNegative():
		return &InvalidInputError{Record: rec, Field: "base_rate", Reason: "must not be negative"}
	case g.RewardRate.IsNegative():
		return &InvalidInputError{Record: rec, Field: "reward_rate", Reason: "must not be negative"}
	case g.BonusRate.IsNegative():
		return &InvalidInputError{Record: rec, Field: "bonus_rate", Reason: "must not be negative"}
	case g.EffectiveTo != nil && g.EffectiveTo.Before(g.EffectiveFrom):
		return &InvalidInputError{Record: rec, Field: "effective_to", Reason: "before effective_from"}
	}
	return nil
}

// ActiveAt reports whether at lies inside [EffectiveFrom, EffectiveTo]. A
// date-only EffectiveTo (midnight) covers its whole day.
func (g Grid) ActiveAt(at time.Time) bool {
	if !g.EffectiveFrom.IsZero() && at.Before(g.EffectiveFrom) {
		return false
	}
	if g.EffectiveTo == nil {
		return true
	}
	end := *g.EffectiveTo
	if isMidnight(end) {
		return at.Before(end.AddDate(0, 0, 1))
	}
	return !at.After(end)
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

// =============================================================================
// SOURCE ENTITY - Agent, MISP or employee that sold the policy
// =============================================================================

// Tier is a ranked classification whose SharePercent is the portion of the
// insurer commission paid to a source in that tier.
type Tier struct {
	ID           TierID
	TenantID     TenantID
	Name         string
	SharePercent decimal.Decimal
}

type SourceEntity struct {
	ID                  SourceID
	TenantID            TenantID
	Type                SourceType
	Name                string
	AgentType           string // e.g. "posp"; grids may scope by it
	Tier                *Tier
	OverridePercent     *decimal.Decimal
	ReportingEmployeeID SourceID
}

func (s SourceEntity) TierID() TierID {
	if s.Tier == nil {
		return ""
	}
	return s.Tier.ID
}

// Validate rejects negative override or tier percentages.
func (s SourceEntity) Validate() error {
	rec := "source " + string(s.ID)
	if s.OverridePercent != nil && s.OverridePercent.IsNegative() {
		return &InvalidInputError{Record: rec, Field: "override_percentage", Reason: "must not be negative"}
	}
	if s.Tier != nil && s.Tier.SharePercent.IsNegative() {
		return &InvalidInputError{Record: rec, Field: "tier.share_percent", Reason: "must not be negative"}
	}
	return nil
}

// EffectiveAgentType is the AgentType, or the source type when unset.
func (s SourceEntity) EffectiveAgentType() string {
	if s.AgentType != "" {
		return s.AgentType
	}
	return string(s.Type)
}

// =============================================================================
// RESULT - Engine output for one policy
// =============================================================================

type Status string

const (
	StatusCalculated  Status = "calculated"
	StatusNoGridMatch Status = "no_grid_match"
	StatusError       Status = "error"
)

type Result struct {
	PolicyID     PolicyID
	TenantID     TenantID
	PolicyNumber string
	CustomerName string
	ProductType  string
	Provider     string
	Premium      decimal.Decimal
	SourceType   SourceType
	SourceID     SourceID
	SourceName   string

	BaseRate   decimal.Decimal
	RewardRate decimal.Decimal
	BonusRate  decimal.Decimal
	TotalRate  decimal.Decimal

	InsurerCommission           decimal.Decimal
	AgentCommission             decimal.Decimal
	MISPCommission              decimal.Decimal
	EmployeeCommission          decimal.Decimal
	ReportingEmployeeCommission decimal.Decimal
	ReportingEmployeeID         SourceID
	BrokerShare                 decimal.Decimal

	GridID       GridID
	GridTable    string
	TierID       TierID
	OverrideUsed bool
	Status       Status
	Error        string
	CalcDate     time.Time
}

// PartyTotal is the sum of every party allocation including the broker.
func (r Result) PartyTotal() decimal.Decimal {
	return r.AgentCommission.
		Add(r.MISPCommission).
		Add(r.EmployeeCommission).
		Add(r.ReportingEmployeeCommission).
		Add(r.BrokerShare)
}

// SourceCommission is what the selling party earns before any reporting deduction.
func (r Result) SourceCommission() decimal.Decimal {
	return r.AgentCommission.Add(r.MISPCommission).Add(r.EmployeeCommission).Add(r.ReportingEmployeeCommission)
}

// Record is a persisted copy of a Result, upserted by (TenantID, PolicyID).
type Record struct {
	ID       string
	Result   Result
	SyncedAt time.Time
}
