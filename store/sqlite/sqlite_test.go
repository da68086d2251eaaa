package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerdesk/commission-engine/commission"
	"github.com/brokerdesk/commission-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const tenant commission.TenantID = "acme"

var calcTime = time.Date(2025, time.June, 30, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seed(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.SaveTier(ctx, commission.Tier{ID: "gold", TenantID: tenant, Name: "Gold", SharePercent: dec("70")}))

	override := dec("5")
	require.NoError(t, store.SaveSource(ctx, commission.SourceEntity{
		ID: "ag-1", TenantID: tenant, Type: commission.SourceAgent, Name: "Ravi",
		AgentType: "posp", Tier: &commission.Tier{ID: "gold"},
	}))
	require.NoError(t, store.SaveSource(ctx, commission.SourceEntity{
		ID: "ag-2", TenantID: tenant, Type: commission.SourceAgent, Name: "Meera",
		OverridePercent: &override,
	}))

	end := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveGrid(ctx, commission.Grid{
		ID: "g-1", Table: "motor_grid", TenantID: tenant, ProductType: "motor", Provider: "ICICI Lombard",
		BaseRate: dec("12"), RewardRate: dec("2"), BonusRate: dec("1"),
		EffectiveFrom: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), EffectiveTo: &end,
	}))
	require.NoError(t, store.SaveGrid(ctx, commission.Grid{
		ID: "g-2", Table: "motor_grid", TenantID: tenant, ProductType: "motor",
		BaseRate: dec("10"), RewardRate: decimal.Zero, BonusRate: decimal.Zero,
	}))

	for i, src := range []commission.SourceID{"ag-1", "ag-2", ""} {
		st := commission.SourceAgent
		if src == "" {
			st = commission.SourceDirect
		}
		require.NoError(t, store.SavePolicy(ctx, commission.Policy{
			ID:           commission.PolicyID([]string{"p-1", "p-2", "p-3"}[i]),
			TenantID:     tenant,
			PolicyNumber: "POL-00" + string(rune('1'+i)),
			ProductType:  "motor",
			Provider:     "ICICI Lombard",
			Premium:      dec("100000"),
			SourceType:   st,
			SourceID:     src,
			CustomerName: "Customer",
			StartDate:    time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		}))
	}
}

// =============================================================================
// ENGINE INPUTS
// =============================================================================

func TestStore_LookupSourceJoinsTier(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	src, err := store.LookupSource(ctx, tenant, "ag-1")
	require.NoError(t, err)
	require.NotNil(t, src.Tier)
	assert.Equal(t, "Gold", src.Tier.Name)
	assert.True(t, src.Tier.SharePercent.Equal(dec("70")))
	assert.Nil(t, src.OverridePercent)
	assert.Equal(t, "posp", src.AgentType)

	src, err = store.LookupSource(ctx, tenant, "ag-2")
	require.NoError(t, err)
	assert.Nil(t, src.Tier)
	require.NotNil(t, src.OverridePercent)
	assert.True(t, src.OverridePercent.Equal(dec("5")))

	_, err = store.LookupSource(ctx, tenant, "ag-404")
	assert.ErrorIs(t, err, commission.ErrSourceNotFound)

	_, err = store.LookupSource(ctx, "other", "ag-1")
	assert.ErrorIs(t, err, commission.ErrSourceNotFound, "sources are tenant scoped")
}

func TestStore_GridsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	grids, err := store.ListGrids(context.Background(), tenant)
	require.NoError(t, err)
	require.Len(t, grids, 2)

	g := grids[0]
	assert.Equal(t, commission.GridID("g-1"), g.ID)
	assert.Equal(t, "motor_grid", g.Table)
	assert.Equal(t, "ICICI Lombard", g.Provider)
	assert.True(t, g.TotalRate().Equal(dec("15")))
	require.NotNil(t, g.EffectiveTo)
	assert.Equal(t, 2025, g.EffectiveTo.Year())

	assert.Empty(t, grids[1].Provider)
	assert.Nil(t, grids[1].EffectiveTo)
	assert.True(t, grids[1].EffectiveFrom.IsZero())
}

func TestStore_ListPoliciesFilter(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	all, err := store.ListPolicies(ctx, tenant, commission.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.True(t, all[0].Premium.Equal(dec("100000")))

	agents, err := store.ListPolicies(ctx, tenant, commission.Filter{SourceType: commission.SourceAgent})
	require.NoError(t, err)
	assert.Len(t, agents, 2)

	none, err := store.ListPolicies(ctx, "other", commission.Filter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =============================================================================
// COMMISSION RECORDS
// =============================================================================

func TestStore_SyncAllIsIdempotent(t *testing.T) {
	// GIVEN: A seeded tenant
	// WHEN: Syncing twice, with a grid change in between
	// THEN: One row per policy, holding the latest calculation

	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()
	engine := commission.NewEngine(commission.WithClock(func() time.Time { return calcTime }))

	_, report, err := engine.SyncAll(ctx, store, tenant, commission.Filter{})
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 3, report.Persisted)

	require.NoError(t, store.SaveGrid(ctx, commission.Grid{
		ID: "g-1", Table: "motor_grid_v2", TenantID: tenant, ProductType: "motor", Provider: "ICICI Lombard",
		BaseRate: dec("20"), RewardRate: decimal.Zero, BonusRate: decimal.Zero,
	}))
	_, report, err = engine.SyncAll(ctx, store, tenant, commission.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Persisted)

	records, err := store.ListRecords(ctx, tenant, commission.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 3)

	r := records[0].Result
	assert.Equal(t, commission.RecordID(tenant, "p-1"), records[0].ID)
	assert.Equal(t, "motor_grid_v2", r.GridTable)
	assert.Equal(t, "20000.00", r.InsurerCommission.StringFixed(2))
	assert.Equal(t, "14000.00", r.AgentCommission.StringFixed(2))
	assert.Equal(t, "6000.00", r.BrokerShare.StringFixed(2))
	assert.Equal(t, commission.TierID("gold"), r.TierID)
	assert.Equal(t, calcTime, r.CalcDate)
	assert.Equal(t, "Ravi", r.SourceName)

	override := records[1].Result
	assert.True(t, override.OverrideUsed)
	assert.Equal(t, "5000.00", override.AgentCommission.StringFixed(2))

	direct := records[2].Result
	assert.Equal(t, commission.SourceDirect, direct.SourceType)
	assert.Equal(t, "20000.00", direct.BrokerShare.StringFixed(2))
	assert.NoError(t, commission.CheckResult(direct))
}

func TestStore_ListRecordsFilters(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	require.NoError(t, store.SavePolicy(ctx, commission.Policy{
		ID: "p-4", TenantID: tenant, PolicyNumber: "POL-004", ProductType: "health",
		Provider: "Star", Premium: dec("5000"), SourceType: commission.SourceDirect,
	}))
	_, _, err := commission.NewEngine().SyncAll(ctx, store, tenant, commission.Filter{})
	require.NoError(t, err)

	unmatched, err := store.ListRecords(ctx, tenant, commission.RecordFilter{Status: commission.StatusNoGridMatch})
	require.NoError(t, err)
	require.Len(t, unmatched, 1)
	assert.Equal(t, commission.PolicyID("p-4"), unmatched[0].Result.PolicyID)
	assert.Empty(t, unmatched[0].Result.GridID)
	assert.True(t, unmatched[0].Result.InsurerCommission.IsZero())

	limited, err := store.ListRecords(ctx, tenant, commission.RecordFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_DeleteRecordAndReset(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	_, _, err := commission.NewEngine().SyncAll(ctx, store, tenant, commission.Filter{})
	require.NoError(t, err)

	require.NoError(t, store.DeleteRecord(ctx, tenant, "p-1"))
	err = store.DeleteRecord(ctx, tenant, "p-1")
	assert.True(t, commission.IsNotFound(err))

	require.NoError(t, store.Reset(ctx))
	records, err := store.ListRecords(ctx, tenant, commission.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
	tiers, err := store.ListTiers(ctx, tenant)
	require.NoError(t, err)
	assert.Empty(t, tiers)
}
