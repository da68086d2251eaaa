package commission_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerdesk/commission-engine/commission"
)

// =============================================================================
// RESOLUTION PRECEDENCE
// =============================================================================

func TestResolve_ProviderScopedGridWins(t *testing.T) {
	// GIVEN: A product-only grid and a product+provider grid
	// WHEN: Resolving a policy matching both
	// THEN: The provider-scoped grid wins, regardless of ID order

	p := motorPolicy("p-1", "10000", commission.SourceDirect, "")
	grids := []commission.Grid{
		grid("a-product-only", "motor", "", "10", "0", "0"),
		grid("z-provider", "motor", "ICICI Lombard", "12", "0", "0"),
	}

	g, ok := commission.Resolve(p, nil, grids, p.StartDate)

	require.True(t, ok)
	assert.Equal(t, commission.GridID("z-provider"), g.ID)
}

func TestResolve_TierAndAgentTypeBreakProviderTies(t *testing.T) {
	// GIVEN: Two provider-scoped grids, one also scoped to the agent's tier
	// THEN: The tier-scoped grid wins

	src := agent("ag-1", goldTier())
	p := motorPolicy("p-1", "10000", commission.SourceAgent, "ag-1")

	tiered := grid("b-tier", "motor", "ICICI Lombard", "14", "0", "0")
	tiered.TierID = "gold"
	grids := []commission.Grid{
		grid("a-plain", "motor", "ICICI Lombard", "12", "0", "0"),
		tiered,
	}

	g, ok := commission.Resolve(p, &src, grids, p.StartDate)

	require.True(t, ok)
	assert.Equal(t, commission.GridID("b-tier"), g.ID)
}

func TestResolve_ProviderOutranksTierOnly(t *testing.T) {
	src := agent("ag-1", goldTier())
	p := motorPolicy("p-1", "10000", commission.SourceAgent, "ag-1")

	tierOnly := grid("a-tier", "motor", "", "14", "0", "0")
	tierOnly.TierID = "gold"
	tierOnly.AgentType = "posp"

	grids := []commission.Grid{tierOnly, grid("b-provider", "motor", "ICICI Lombard", "12", "0", "0")}

	g, ok := commission.Resolve(p, &src, grids, p.StartDate)

	require.True(t, ok)
	assert.Equal(t, commission.GridID("b-provider"), g.ID)
}

func TestResolve_ScopedToOtherProviderOrTierIsExcluded(t *testing.T) {
	src := agent("ag-1", goldTier())
	p := motorPolicy("p-1", "10000", commission.SourceAgent, "ag-1")

	otherTier := grid("g-2", "motor", "", "9", "0", "0")
	otherTier.TierID = "silver"
	otherAgentType := grid("g-3", "motor", "", "9", "0", "0")
	otherAgentType.AgentType = "misp_dealer"

	grids := []commission.Grid{
		grid("g-1", "motor", "HDFC Ergo", "15", "0", "0"),
		otherTier,
		otherAgentType,
	}

	_, ok := commission.Resolve(p, &src, grids, p.StartDate)
	assert.False(t, ok)
}

func TestResolve_EffectiveWindow(t *testing.T) {
	p := motorPolicy("p-1", "10000", commission.SourceDirect, "")

	expired := grid("g-old", "motor", "ICICI Lombard", "20", "0", "0")
	end := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	expired.EffectiveFrom = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	expired.EffectiveTo = &end

	future := grid("g-future", "motor", "ICICI Lombard", "25", "0", "0")
	future.EffectiveFrom = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	current := grid("g-current", "motor", "", "10", "0", "0")

	g, ok := commission.Resolve(p, nil, []commission.Grid{expired, future, current}, p.StartDate)

	require.True(t, ok)
	assert.Equal(t, commission.GridID("g-current"), g.ID, "grids outside their window must not match even when more specific")
}

func TestResolve_LastEffectiveDayIsInclusive(t *testing.T) {
	// GIVEN: A grid ending on 2025-06-30 (date only) and a policy without a start date
	// WHEN: Resolving at noon on that last day
	// THEN: The grid still applies; the next day it does not

	p := motorPolicy("p-1", "10000", commission.SourceDirect, "")
	p.StartDate = time.Time{}

	g := grid("g-h1", "motor", "", "10", "0", "0")
	end := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
	g.EffectiveTo = &end

	got, ok := commission.Resolve(p, nil, []commission.Grid{g}, runTime)
	require.True(t, ok)
	assert.Equal(t, commission.GridID("g-h1"), got.ID)

	_, ok = commission.Resolve(p, nil, []commission.Grid{g}, end.AddDate(0, 0, 1))
	assert.False(t, ok)

	// An explicit end time is exact.
	precise := time.Date(2025, time.June, 30, 9, 30, 0, 0, time.UTC)
	g.EffectiveTo = &precise
	_, ok = commission.Resolve(p, nil, []commission.Grid{g}, runTime)
	assert.False(t, ok)
}

func TestRun_GridEndingTodayMatchesOnRunClock(t *testing.T) {
	p := motorPolicy("p-1", "10000", commission.SourceDirect, "")
	p.StartDate = time.Time{}
	p.EndDate = time.Time{}

	g := grid("g-h1", "motor", "", "10", "0", "0")
	end := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
	g.EffectiveTo = &end

	run := newTestEngine().Run(context.Background(), commission.Input{
		Policies: []commission.Policy{p},
		Grids:    []commission.Grid{g},
	})

	require.Len(t, run.Results, 1)
	assert.Equal(t, commission.StatusCalculated, run.Results[0].Status)
	assertMoney(t, "1000.00", run.Results[0].BrokerShare)
}

func TestResolve_MalformedGridSkipped(t *testing.T) {
	// GIVEN: The most specific grid carries a negative rate
	// THEN: It is skipped and resolution falls back to the next best row

	p := motorPolicy("p-1", "10000", commission.SourceDirect, "")
	broken := grid("a-broken", "motor", "ICICI Lombard", "-1", "0", "0")

	m, ok := commission.ResolveMatch(p, nil, []commission.Grid{broken, grid("b-ok", "motor", "", "10", "0", "0")}, p.StartDate)

	require.True(t, ok)
	assert.Equal(t, commission.GridID("b-ok"), m.Grid.ID)
	assert.Equal(t, 1, m.Skipped)
}

func TestResolve_TiesAreDeterministic(t *testing.T) {
	p := motorPolicy("p-1", "10000", commission.SourceDirect, "")
	grids := []commission.Grid{
		grid("g-3", "motor", "ICICI Lombard", "11", "0", "0"),
		grid("g-1", "motor", "ICICI Lombard", "12", "0", "0"),
		grid("g-2", "motor", "ICICI Lombard", "13", "0", "0"),
	}

	for i := 0; i < 5; i++ {
		g, ok := commission.Resolve(p, nil, grids, p.StartDate)
		require.True(t, ok)
		assert.Equal(t, commission.GridID("g-1"), g.ID)
		grids[0], grids[2] = grids[2], grids[0]
	}
}

func TestResolve_NoGridForProduct(t *testing.T) {
	p := motorPolicy("p-1", "10000", commission.SourceDirect, "")
	p.ProductType = "health"

	_, ok := commission.Resolve(p, nil, []commission.Grid{grid("g-1", "motor", "", "10", "0", "0")}, p.StartDate)
	assert.False(t, ok)
}

func TestResolve_ProductMatchIgnoresCaseAndSpace(t *testing.T) {
	p := motorPolicy("p-1", "10000", commission.SourceDirect, "")
	p.ProductType = " Motor "

	_, ok := commission.Resolve(p, nil, []commission.Grid{grid("g-1", "motor", "icici lombard", "10", "0", "0")}, p.StartDate)
	assert.True(t, ok)
}

func TestResolve_OtherTenantGridIgnored(t *testing.T) {
	p := motorPolicy("p-1", "10000", commission.SourceDirect, "")
	g := grid("g-1", "motor", "", "10", "0", "0")
	g.TenantID = "someone-else"

	_, ok := commission.Resolve(p, nil, []commission.Grid{g}, p.StartDate)
	assert.False(t, ok)
}
