package commission

import (
	"time"

	"github.com/shopspring/decimal"
)

// newResult copies the policy's display fields and zeroes every amount.
func newResult(p Policy, calcDate time.Time) Result {
	return Result{
		PolicyID:                    p.ID,
		TenantID:                    p.TenantID,
		PolicyNumber:                p.PolicyNumber,
		CustomerName:                p.CustomerName,
		ProductType:                 p.ProductType,
		Provider:                    p.Provider,
		Premium:                     p.Premium,
		SourceType:                  p.SourceType,
		SourceID:                    p.SourceID,
		BaseRate:                    decimal.Zero,
		RewardRate:                  decimal.Zero,
		BonusRate:                   decimal.Zero,
		TotalRate:                   decimal.Zero,
		InsurerCommission:           decimal.Zero,
		AgentCommission:             decimal.Zero,
		MISPCommission:              decimal.Zero,
		EmployeeCommission:          decimal.Zero,
		ReportingEmployeeCommission: decimal.Zero,
		BrokerShare:                 decimal.Zero,
		CalcDate:                    calcDate,
	}
}

// Label stamps the status and the grid used. Status is calculated when a
// grid matched, no_grid_match otherwise.
func Label(r *Result, g Grid, matched bool, calcDate time.Time) {
	r.CalcDate = calcDate
	if !matched {
		r.Status = StatusNoGridMatch
		r.GridID = ""
		r.GridTable = ""
		return
	}
	r.Status = StatusCalculated
	r.GridID = g.ID
	r.GridTable = g.Table
}

// MarkError turns r into an error result. Amounts are zeroed so a failed
// policy never contributes to report totals.
func MarkError(r *Result, err error) {
	zeroed := newResult(Policy{
		ID:           r.PolicyID,
		TenantID:     r.TenantID,
		PolicyNumber: r.PolicyNumber,
		CustomerName: r.CustomerName,
		ProductType:  r.ProductType,
		Provider:     r.Provider,
		Premium:      r.Premium,
		SourceType:   r.SourceType,
		SourceID:     r.SourceID,
	}, r.CalcDate)
	zeroed.SourceName = r.SourceName
	zeroed.Status = StatusError
	if err != nil {
		zeroed.Error = err.Error()
	}
	*r = zeroed
}

// applyRates copies calculator output onto the result.
func applyRates(r *Result, rates Rates) {
	r.BaseRate = rates.Base
	r.RewardRate = rates.Reward
	r.BonusRate = rates.Bonus
	r.TotalRate = rates.Total
	r.InsurerCommission = rates.InsurerCommission
}

// applyAllocation copies splitter output onto the result.
func applyAllocation(r *Result, a Allocation) {
	r.AgentCommission = a.Agent
	r.MISPCommission = a.MISP
	r.EmployeeCommission = a.Employee
	r.ReportingEmployeeCommission = a.ReportingEmployee
	r.ReportingEmployeeID = a.ReportingEmployeeID
	r.BrokerShare = a.Broker
	r.OverrideUsed = a.OverrideUsed
	r.TierID = a.TierID
}

// CheckResult verifies a calculated result: parties sum to the insurer
// commission within one minor unit, only the party matching the source type
// is paid, and that party is paid whenever the insurer commission is positive.
func CheckResult(r Result) error {
	if r.Status != StatusCalculated {
		return nil
	}
	if r.PartyTotal().Sub(r.InsurerCommission).Abs().GreaterThan(Tolerance()) {
		return &invariantError{policy: r.PolicyID, detail: "parties " + r.PartyTotal().String() + " != insurer " + r.InsurerCommission.String()}
	}

	paid := map[SourceType]bool{
		SourceAgent:    !r.AgentCommission.IsZero(),
		SourceMISP:     !r.MISPCommission.IsZero(),
		SourceEmployee: !r.EmployeeCommission.IsZero() || !r.ReportingEmployeeCommission.IsZero(),
	}
	for st, nonZero := range paid {
		if nonZero && st != r.SourceType {
			return &invariantError{policy: r.PolicyID, detail: string(st) + " paid on a " + string(r.SourceType) + " policy"}
		}
	}
	if r.SourceType != SourceDirect && r.InsurerCommission.IsPositive() && !paid[r.SourceType] {
		return &invariantError{policy: r.PolicyID, detail: string(r.SourceType) + " unpaid on a commission of " + r.InsurerCommission.String()}
	}
	return nil
}

type invariantError struct {
	policy PolicyID
	detail string
}

func (e *invariantError) Error() string {
	return "policy " + string(e.policy) + ": " + ErrInvariantViolated.Error() + ": " + e.detail
}

func (e *invariantError) Unwrap() error { return ErrInvariantViolated }
