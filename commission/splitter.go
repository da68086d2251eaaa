/*
splitter.go - Distribution of the insurer commission across parties

RULES (in order):
  1. Override on the source entity: premium * override% capped at the
     insurer commission.
  2. Otherwise: insurer commission * tier share% (DefaultSharePercent when
     the source has no tier). A source with no tier, no override and a zero
     default is invalid input.
  3. Employee with a reporting employee: a slice of the employee's share is
     moved to the reporting employee. It is deducted, not added.
  4. Broker takes the remainder.

The broker share is always derived as a remainder, so
agent + misp + employee + reporting + broker == insurer holds by
construction and never drifts with rounding.
*/
package commission

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Allocation is the split of one insurer commission.
type Allocation struct {
	Agent               decimal.Decimal
	MISP                decimal.Decimal
	Employee            decimal.Decimal
	ReportingEmployee   decimal.Decimal
	ReportingEmployeeID SourceID
	Broker              decimal.Decimal
	OverrideUsed        bool
	TierID              TierID
}

// SplitOptions carries the configured percentages the splitter needs.
type SplitOptions struct {
	// ReportingSharePercent is the slice of an employee's commission
	// attributed to their reporting employee.
	ReportingSharePercent decimal.Decimal

	// DefaultSharePercent applies to sources without a tier or override.
	DefaultSharePercent decimal.Decimal
}

// Split allocates insurer across the parties of policy p. source must be
// non-nil unless p is direct-sourced.
func Split(p Policy, source *SourceEntity, insurer decimal.Decimal, opts SplitOptions) (Allocation, error) {
	alloc := Allocation{
		Agent:             decimal.Zero,
		MISP:              decimal.Zero,
		Employee:          decimal.Zero,
		ReportingEmployee: decimal.Zero,
		Broker:            decimal.Zero,
	}

	if insurer.IsNegative() {
		return alloc, &InvalidInputError{Record: "policy " + string(p.ID), Field: "insurer_commission", Reason: "must not be negative"}
	}

	if p.SourceType == SourceDirect {
		alloc.Broker = insurer
		return alloc, nil
	}
	if source == nil {
		return alloc, fmt.Errorf("%w: %s %s", ErrSourceNotFound, p.SourceType, p.SourceID)
	}
	if err := source.Validate(); err != nil {
		return alloc, err
	}

	share, overrideUsed, err := sourceShare(p, source, insurer, opts)
	if err != nil {
		return alloc, err
	}
	alloc.OverrideUsed = overrideUsed
	alloc.TierID = source.TierID()

	switch p.SourceType {
	case SourceAgent:
		alloc.Agent = share
	case SourceMISP:
		alloc.MISP = share
	case SourceEmployee:
		alloc.Employee = share
		if source.ReportingEmployeeID != "" && opts.ReportingSharePercent.IsPositive() {
			reporting := PercentOf(share, opts.ReportingSharePercent)
			alloc.ReportingEmployee = reporting
			alloc.ReportingEmployeeID = source.ReportingEmployeeID
			alloc.Employee = share.Sub(reporting)
		}
	default:
		return alloc, &InvalidInputError{Record: "policy " + string(p.ID), Field: "source_type", Reason: fmt.Sprintf("unknown value %q", p.SourceType)}
	}

	alloc.Broker = insurer.Sub(share)
	return alloc, nil
}

// sourceShare is the selling party's commission before any reporting slice.
func sourceShare(p Policy, source *SourceEntity, insurer decimal.Decimal, opts SplitOptions) (decimal.Decimal, bool, error) {
	if source.OverridePercent != nil {
		share := PercentOf(p.Premium, *source.OverridePercent)
		if share.GreaterThan(insurer) {
			share = insurer
		}
		return share, true, nil
	}

	pct := opts.DefaultSharePercent
	if source.Tier != nil {
		pct = source.Tier.SharePercent
	} else if !pct.IsPositive() {
		return decimal.Zero, false, &InvalidInputError{
			Record: "source " + string(source.ID),
			Field:  "tier_id",
			Reason: "no tier or override and no default share configured",
		}
	}
	share := PercentOf(insurer, pct)
	if share.GreaterThan(insurer) {
		share = insurer
	}
	return share, false, nil
}
