package commission_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/brokerdesk/commission-engine/commission"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const tenant commission.TenantID = "acme-brokers"

var (
	jan1    = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	mar15   = time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	runTime = time.Date(2025, time.June, 30, 12, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(commission.MinorUnits), msgAndArgs...)
}

func motorPolicy(id string, premium string, st commission.SourceType, source string) commission.Policy {
	return commission.Policy{
		ID:           commission.PolicyID(id),
		TenantID:     tenant,
		PolicyNumber: "POL-" + id,
		ProductType:  "motor",
		Provider:     "ICICI Lombard",
		Premium:      dec(premium),
		SourceType:   st,
		SourceID:     commission.SourceID(source),
		CustomerRef:  "cust-" + id,
		CustomerName: "Customer " + id,
		StartDate:    mar15,
		EndDate:      mar15.AddDate(1, 0, -1),
	}
}

func grid(id, product, provider, base, reward, bonus string) commission.Grid {
	return commission.Grid{
		ID:            commission.GridID(id),
		Table:         "motor_grid",
		TenantID:      tenant,
		ProductType:   product,
		Provider:      provider,
		BaseRate:      dec(base),
		RewardRate:    dec(reward),
		BonusRate:     dec(bonus),
		EffectiveFrom: jan1,
	}
}

func goldTier() *commission.Tier {
	return &commission.Tier{ID: "gold", TenantID: tenant, Name: "Gold", SharePercent: dec("70")}
}

func agent(id string, tier *commission.Tier) commission.SourceEntity {
	return commission.SourceEntity{
		ID:        commission.SourceID(id),
		TenantID:  tenant,
		Type:      commission.SourceAgent,
		Name:      "Agent " + id,
		AgentType: "posp",
		Tier:      tier,
	}
}

func fixedClock() func() time.Time {
	return func() time.Time { return runTime }
}
