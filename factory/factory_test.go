package factory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerdesk/commission-engine/commission"
	"github.com/brokerdesk/commission-engine/commission/store"
	"github.com/brokerdesk/commission-engine/factory"
)

// =============================================================================
// GRID PARSING
// =============================================================================

func TestGrid_RewardAndBonusDefaultToZero(t *testing.T) {
	// GIVEN: A grid row with only a base rate
	// WHEN: Converting it
	// THEN: Reward and bonus are typed zeros, not missing values

	f := factory.New("acme")
	g, err := f.Grid(factory.GridJSON{ID: "g-1", ProductType: "motor", BaseRate: "12.5"})

	require.NoError(t, err)
	assert.Equal(t, "12.5", g.BaseRate.String())
	assert.True(t, g.RewardRate.IsZero())
	assert.True(t, g.BonusRate.IsZero())
	assert.Equal(t, "12.5", g.TotalRate().String())
	assert.Equal(t, commission.TenantID("acme"), g.TenantID)
	assert.Nil(t, g.EffectiveTo)
}

func TestGrid_RejectsMalformedRows(t *testing.T) {
	f := factory.New("acme")

	cases := map[string]factory.GridJSON{
		"base_rate":      {ID: "g-1", ProductType: "motor"},
		"product_type":   {ID: "g-1", BaseRate: "10"},
		"reward_rate":    {ID: "g-1", ProductType: "motor", BaseRate: "10", RewardRate: "ten"},
		"bonus_rate":     {ID: "g-1", ProductType: "motor", BaseRate: "10", BonusRate: "-1"},
		"effective_from": {ID: "g-1", ProductType: "motor", BaseRate: "10", EffectiveFrom: "01/02/2025"},
		"effective_to":   {ID: "g-1", ProductType: "motor", BaseRate: "10", EffectiveFrom: "2025-06-01", EffectiveTo: "2025-01-01"},
		"tenant_id":      {ID: "g-1", ProductType: "motor", BaseRate: "10", TenantID: "other"},
	}

	for field, gj := range cases {
		_, err := f.Grid(gj)
		var inv *commission.InvalidInputError
		require.ErrorAs(t, err, &inv, field)
		assert.Equal(t, field, inv.Field)
	}
}

func TestGridTable_RowsInheritScope(t *testing.T) {
	f := factory.New("acme")
	grids, errs := f.GridTable(factory.GridTableJSON{
		Name:          "motor_icici_2025",
		ProductType:   "motor",
		Provider:      "ICICI Lombard",
		EffectiveFrom: "2025-01-01",
		EffectiveTo:   "2025-12-31",
		Rows: []factory.GridJSON{
			{TierID: "gold", BaseRate: "14"},
			{TierID: "silver", BaseRate: "12", RewardRate: "1"},
			{ID: "custom", Provider: "HDFC Ergo", BaseRate: "9"},
			{TierID: "broken"},
		},
	})

	require.Len(t, grids, 3)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], commission.ErrInvalidInput)

	assert.Equal(t, commission.GridID("motor_icici_2025-1"), grids[0].ID)
	assert.Equal(t, "motor_icici_2025", grids[0].Table)
	assert.Equal(t, "ICICI Lombard", grids[0].Provider)
	assert.Equal(t, commission.TierID("gold"), grids[0].TierID)
	require.NotNil(t, grids[0].EffectiveTo)
	assert.Equal(t, time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC), *grids[0].EffectiveTo)

	assert.Equal(t, commission.GridID("custom"), grids[2].ID)
	assert.Equal(t, "HDFC Ergo", grids[2].Provider)
}

func TestGrid_NumbersAcceptJSONNumbersAndStrings(t *testing.T) {
	var gj factory.GridJSON
	err := json.Unmarshal([]byte(`{"id":"g-1","product_type":"motor","base_rate":12.5,"reward_rate":"1.25","bonus_rate":null}`), &gj)
	require.NoError(t, err)

	g, err := factory.New("acme").Grid(gj)
	require.NoError(t, err)
	assert.Equal(t, "12.5", g.BaseRate.String())
	assert.Equal(t, "1.25", g.RewardRate.String())
	assert.True(t, g.BonusRate.IsZero())
}

func TestGridToJSON_RoundTrip(t *testing.T) {
	f := factory.New("acme")
	in := factory.GridJSON{
		ID: "g-1", Table: "motor_grid", TenantID: "acme", ProductType: "motor",
		Provider: "ICICI Lombard", TierID: "gold", BaseRate: "10", RewardRate: "1.5", BonusRate: "0",
		EffectiveFrom: "2025-01-01", EffectiveTo: "2025-12-31",
	}
	g, err := f.Grid(in)
	require.NoError(t, err)

	again, err := f.Grid(factory.GridToJSON(g))
	require.NoError(t, err)
	assert.Equal(t, g, again)
}

// =============================================================================
// POLICY AND SOURCE PARSING
// =============================================================================

func TestPolicy_DefaultsAndValidation(t *testing.T) {
	f := factory.New("acme")

	p, err := f.Policy(factory.PolicyJSON{
		ID: "p-1", ProductType: " motor ", Provider: "ICICI Lombard", Premium: "10000.50",
		StartDate: "2025-03-15",
	})
	require.NoError(t, err)
	assert.Equal(t, commission.SourceDirect, p.SourceType, "missing source type is a direct sale")
	assert.Equal(t, "p-1", p.PolicyNumber)
	assert.Equal(t, "motor", p.ProductType)
	assert.Equal(t, "10000.5", p.Premium.String())

	_, err = f.Policy(factory.PolicyJSON{ID: "p-2", ProductType: "motor", Provider: "X", Premium: "100", SourceType: "broker"})
	assert.True(t, commission.IsInvalidInput(err))

	_, err = f.Policy(factory.PolicyJSON{ID: "p-3", ProductType: "motor", Provider: "X"})
	assert.True(t, commission.IsInvalidInput(err), "premium is required")

	_, err = f.Policy(factory.PolicyJSON{ID: "p-4", ProductType: "motor", Provider: "X", Premium: "100", SourceType: "agent"})
	assert.True(t, commission.IsInvalidInput(err), "agent policies need a source id")
}

func TestSource_JoinsTier(t *testing.T) {
	f := factory.New("acme")
	gold, err := f.Tier(factory.TierJSON{ID: "gold", SharePercent: "70"})
	require.NoError(t, err)
	tiers := map[commission.TierID]commission.Tier{gold.ID: gold}

	s, err := f.Source(factory.SourceJSON{ID: "ag-1", Type: "Agent", TierID: "gold", OverridePercent: "5"}, tiers)
	require.NoError(t, err)
	require.NotNil(t, s.Tier)
	assert.Equal(t, "70", s.Tier.SharePercent.String())
	require.NotNil(t, s.OverridePercent)
	assert.Equal(t, "5", s.OverridePercent.String())
	assert.Equal(t, "ag-1", s.Name)

	_, err = f.Source(factory.SourceJSON{ID: "ag-2", Type: "agent", TierID: "platinum"}, tiers)
	assert.True(t, commission.IsInvalidInput(err))

	_, err = f.Source(factory.SourceJSON{ID: "d-1", Type: "direct"}, tiers)
	assert.True(t, commission.IsInvalidInput(err))

	back := factory.SourceToJSON(s)
	assert.Equal(t, "gold", back.TierID)
	assert.Equal(t, factory.Number("5"), back.OverridePercent)
}

// =============================================================================
// DATASETS
// =============================================================================

const acmeYAML = `
tenant: acme
name: Acme Brokers
tiers:
  - {id: gold, name: Gold, share_percent: 70}
sources:
  - {id: ag-1, type: agent, name: Ravi, tier_id: gold}
  - {id: emp-1, type: employee, name: Priya, reporting_employee_id: mgr-1, override_percentage: 2}
grid_tables:
  - name: motor_grid
    product_type: motor
    effective_from: "2025-01-01"
    rows:
      - {id: motor-base, base_rate: 10}
      - {id: motor-icici, provider: ICICI Lombard, base_rate: 12, reward_rate: 2}
grids:
  - {id: health-base, table: health_grid, product_type: health, base_rate: 15, bonus_rate: 0.5}
  - {id: bad-grid, product_type: health}
policies:
  - {id: p-1, policy_number: POL-1, product_type: motor, provider: ICICI Lombard, premium_amount: 10000, source_type: agent, source_id: ag-1, start_date: "2025-03-15"}
  - {id: p-2, product_type: health, provider: Star, premium_amount: "25000", source_type: employee, source_id: emp-1}
  - {id: p-3, product_type: motor, provider: HDFC, premium_amount: -1}
`

func TestParseDataset_YAML(t *testing.T) {
	ds, err := factory.New("").ParseDataset([]byte(acmeYAML), factory.FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, commission.TenantID("acme"), ds.Tenant)
	assert.Len(t, ds.Tiers, 1)
	assert.Len(t, ds.Sources, 2)
	assert.Len(t, ds.Grids, 3)
	assert.Len(t, ds.Policies, 2)
	require.Len(t, ds.Rejected, 2, "bad grid and negative premium are rejected, the rest loads")
	for _, err := range ds.Rejected {
		assert.True(t, commission.IsInvalidInput(err))
	}
}

func TestParseDataset_RejectsUnknownFieldsAndMissingTenant(t *testing.T) {
	_, err := factory.New("").ParseDataset([]byte(`{"tenant":"acme","gridz":[]}`), factory.FormatJSON)
	assert.Error(t, err)

	_, err = factory.New("").ParseDataset([]byte(`{"policies":[]}`), factory.FormatJSON)
	assert.True(t, commission.IsInvalidInput(err))
}

func TestParseDataset_Duplicates(t *testing.T) {
	data := `{"tenant":"acme","grids":[
		{"id":"g-1","product_type":"motor","base_rate":10},
		{"id":"g-1","product_type":"motor","base_rate":11}
	]}`
	ds, err := factory.New("").ParseDataset([]byte(data), factory.FormatJSON)
	require.NoError(t, err)
	assert.Len(t, ds.Grids, 1)
	assert.Len(t, ds.Rejected, 1)
}

func TestLoadDataset_SeedAndRun(t *testing.T) {
	// GIVEN: A YAML dataset on disk
	// WHEN: Loading it, seeding a store, and running the tenant
	// THEN: The engine sees exactly the parsed records

	path := filepath.Join(t.TempDir(), "acme.yaml")
	require.NoError(t, os.WriteFile(path, []byte(acmeYAML), 0o600))

	ds, err := factory.LoadDataset(path)
	require.NoError(t, err)

	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, ds.Seed(ctx, mem))

	run, err := commission.NewEngine().CalculateAll(ctx, mem, "acme", commission.Filter{})
	require.NoError(t, err)
	require.Len(t, run.Results, 2)
	assert.Equal(t, 2, run.Summary.Calculated)

	// p-1: ICICI row, 14% of 10,000 = 1,400; gold tier takes 70%
	p1 := run.Results[0]
	assert.Equal(t, commission.GridID("motor-icici"), p1.GridID)
	assert.Equal(t, "1400.00", p1.InsurerCommission.StringFixed(2))
	assert.Equal(t, "980.00", p1.AgentCommission.StringFixed(2))

	// p-2: employee override 2% of premium, 10% of that to the manager
	p2 := run.Results[1]
	assert.Equal(t, "3875.00", p2.InsurerCommission.StringFixed(2))
	assert.Equal(t, "450.00", p2.EmployeeCommission.StringFixed(2))
	assert.Equal(t, "50.00", p2.ReportingEmployeeCommission.StringFixed(2))
	assert.True(t, p2.OverrideUsed)

	direct := commission.NewEngine().Run(ctx, ds.Input())
	assert.Equal(t, run.Summary.InsurerCommission.String(), direct.Summary.InsurerCommission.String())
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, factory.FormatYAML, factory.FormatFromPath("seed.YML"))
	assert.Equal(t, factory.FormatYAML, factory.FormatFromPath("seed.yaml"))
	assert.Equal(t, factory.FormatJSON, factory.FormatFromPath("seed.json"))
	assert.Equal(t, factory.FormatJSON, factory.FormatFromPath("seed"))
}
