/*
engine_test.go - Batch orchestration and sync behavior

Covers:
- Every input policy yields exactly one result, in order
- Batch isolation: malformed records and lookup failures stay local
- Idempotence of Run and Sync
- Per-record sync failures and retry subsets
*/
package commission_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerdesk/commission-engine/commission"
	"github.com/brokerdesk/commission-engine/commission/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine() *commission.Engine {
	return commission.NewEngine(
		commission.WithClock(fixedClock()),
		commission.WithWorkers(4),
		commission.WithReportingSharePercent(dec("10")),
	)
}

// brokerBook is a small but complete tenant: one of every source type.
func brokerBook() commission.Input {
	gold := goldTier()
	staff := &commission.Tier{ID: "staff", TenantID: tenant, SharePercent: dec("60")}

	override := agent("ag-override", nil)
	override.OverridePercent = decPtr("5")

	sources := commission.NewStaticSources(
		agent("ag-1", gold),
		override,
		commission.SourceEntity{ID: "misp-1", TenantID: tenant, Type: commission.SourceMISP, Name: "City Motors", Tier: gold},
		commission.SourceEntity{ID: "emp-1", TenantID: tenant, Type: commission.SourceEmployee, Name: "Priya", Tier: staff, ReportingEmployeeID: "mgr-1"},
	)

	health := motorPolicy("p-health", "20000", commission.SourceDirect, "")
	health.ProductType = "health"

	return commission.Input{
		Policies: []commission.Policy{
			motorPolicy("p-agent", "10000", commission.SourceAgent, "ag-1"),
			motorPolicy("p-override", "100000", commission.SourceAgent, "ag-override"),
			motorPolicy("p-misp", "10000", commission.SourceMISP, "misp-1"),
			motorPolicy("p-emp", "10000", commission.SourceEmployee, "emp-1"),
			motorPolicy("p-direct", "50000", commission.SourceDirect, ""),
			health,
		},
		Grids: []commission.Grid{
			grid("g-motor", "motor", "", "8", "1", "1"),
			grid("g-icici", "motor", "ICICI Lombard", "12", "2", "1"),
		},
		Sources: sources,
	}
}

func byPolicy(results []commission.Result) map[commission.PolicyID]commission.Result {
	m := make(map[commission.PolicyID]commission.Result, len(results))
	for _, r := range results {
		m[r.PolicyID] = r
	}
	return m
}

// =============================================================================
// RUN
// =============================================================================

func TestRun_FullBook(t *testing.T) {
	run := newTestEngine().Run(context.Background(), brokerBook())

	require.Len(t, run.Results, 6)
	assert.Equal(t, 5, run.Summary.Calculated)
	assert.Equal(t, 1, run.Summary.NoGridMatch)
	assert.Equal(t, 0, run.Summary.Errors)

	got := byPolicy(run.Results)

	// ICICI grid: 12 + 2 + 1 = 15%
	agentRes := got["p-agent"]
	assert.Equal(t, commission.StatusCalculated, agentRes.Status)
	assert.Equal(t, commission.GridID("g-icici"), agentRes.GridID)
	assert.Equal(t, "motor_grid", agentRes.GridTable)
	assertMoney(t, "1500.00", agentRes.InsurerCommission)
	assertMoney(t, "1050.00", agentRes.AgentCommission)
	assertMoney(t, "450.00", agentRes.BrokerShare)
	assert.Equal(t, "Agent ag-1", agentRes.SourceName)
	assert.Equal(t, runTime, agentRes.CalcDate)

	over := got["p-override"]
	assertMoney(t, "15000.00", over.InsurerCommission)
	assertMoney(t, "5000.00", over.AgentCommission)
	assertMoney(t, "10000.00", over.BrokerShare)
	assert.True(t, over.OverrideUsed)

	misp := got["p-misp"]
	assertMoney(t, "1050.00", misp.MISPCommission)
	assert.True(t, misp.AgentCommission.IsZero())

	emp := got["p-emp"]
	assertMoney(t, "810.00", emp.EmployeeCommission) // 60% of 1500 = 900, minus 10%
	assertMoney(t, "90.00", emp.ReportingEmployeeCommission)
	assertMoney(t, "600.00", emp.BrokerShare)

	direct := got["p-direct"]
	assertMoney(t, "7500.00", direct.InsurerCommission)
	assertMoney(t, "7500.00", direct.BrokerShare)

	health := got["p-health"]
	assert.Equal(t, commission.StatusNoGridMatch, health.Status)
	assert.True(t, health.TotalRate.IsZero())
	assert.True(t, health.InsurerCommission.IsZero())
	assert.True(t, health.BrokerShare.IsZero())
	assert.Empty(t, health.GridID)

	for _, r := range run.Results {
		assert.NoError(t, commission.CheckResult(r), "policy %s", r.PolicyID)
	}
}

func TestRun_PreservesInputOrder(t *testing.T) {
	in := brokerBook()
	run := newTestEngine().Run(context.Background(), in)

	for i, p := range in.Policies {
		assert.Equal(t, p.ID, run.Results[i].PolicyID)
	}
}

func TestRun_DirectSourceExample(t *testing.T) {
	// GIVEN: Direct policy, premium 50,000, resolved total rate 10%
	in := commission.Input{
		Policies: []commission.Policy{motorPolicy("p-1", "50000", commission.SourceDirect, "")},
		Grids:    []commission.Grid{grid("g-1", "motor", "", "10", "0", "0")},
	}

	run := newTestEngine().Run(context.Background(), in)

	r := run.Results[0]
	assertMoney(t, "5000.00", r.InsurerCommission)
	assertMoney(t, "5000.00", r.BrokerShare)
	assert.True(t, r.AgentCommission.IsZero())
	assert.True(t, r.MISPCommission.IsZero())
	assert.True(t, r.EmployeeCommission.IsZero())
	assert.True(t, r.ReportingEmployeeCommission.IsZero())
}

func TestRun_BatchIsolation(t *testing.T) {
	// GIVEN: Nine valid policies and one with no product type
	// WHEN: Running the batch
	// THEN: Nine calculated results plus one error result; nothing escapes

	in := commission.Input{
		Grids:   []commission.Grid{grid("g-1", "motor", "", "10", "0", "0")},
		Sources: commission.NewStaticSources(agent("ag-1", goldTier())),
	}
	for i := 0; i < 9; i++ {
		in.Policies = append(in.Policies, motorPolicy(fmt.Sprintf("p-%d", i), "1000", commission.SourceAgent, "ag-1"))
	}
	broken := motorPolicy("p-broken", "1000", commission.SourceAgent, "ag-1")
	broken.ProductType = ""
	in.Policies = append(in.Policies[:4], append([]commission.Policy{broken}, in.Policies[4:]...)...)

	var run commission.RunResult
	require.NotPanics(t, func() {
		run = newTestEngine().Run(context.Background(), in)
	})

	require.Len(t, run.Results, 10)
	assert.Equal(t, 9, run.Summary.Calculated)
	assert.Equal(t, 1, run.Summary.Errors)

	r := run.Results[4]
	assert.Equal(t, commission.PolicyID("p-broken"), r.PolicyID)
	assert.Equal(t, commission.StatusError, r.Status)
	assert.Contains(t, r.Error, "product_type")
	assert.True(t, r.InsurerCommission.IsZero())
}

func TestRun_UnknownSourceIsErrorResult(t *testing.T) {
	in := commission.Input{
		Policies: []commission.Policy{
			motorPolicy("p-1", "1000", commission.SourceAgent, "ag-missing"),
			motorPolicy("p-2", "1000", commission.SourceDirect, ""),
		},
		Grids:   []commission.Grid{grid("g-1", "motor", "", "10", "0", "0")},
		Sources: commission.NewStaticSources(),
	}

	run := newTestEngine().Run(context.Background(), in)

	assert.Equal(t, commission.StatusError, run.Results[0].Status)
	assert.Contains(t, run.Results[0].Error, "source entity not found")
	assert.Equal(t, commission.StatusCalculated, run.Results[1].Status)
}

func TestRun_SourceTypeMismatchIsErrorResult(t *testing.T) {
	in := commission.Input{
		Policies: []commission.Policy{motorPolicy("p-1", "1000", commission.SourceMISP, "ag-1")},
		Grids:    []commission.Grid{grid("g-1", "motor", "", "10", "0", "0")},
		Sources:  commission.NewStaticSources(agent("ag-1", nil)),
	}

	run := newTestEngine().Run(context.Background(), in)

	assert.Equal(t, commission.StatusError, run.Results[0].Status)
}

func TestRun_UntieredSourceWithoutDefaultIsErrorResult(t *testing.T) {
	// GIVEN: An agent with no tier or override on a 10% grid
	in := commission.Input{
		Policies: []commission.Policy{motorPolicy("p-1", "100000", commission.SourceAgent, "ag-1")},
		Grids:    []commission.Grid{grid("g-1", "motor", "", "10", "0", "0")},
		Sources:  commission.NewStaticSources(agent("ag-1", nil)),
	}

	// WHEN: No default share is configured
	run := newTestEngine().Run(context.Background(), in)

	// THEN: The policy errors with nothing allocated
	require.Len(t, run.Results, 1)
	assert.Equal(t, commission.StatusError, run.Results[0].Status)
	assert.Contains(t, run.Results[0].Error, "tier_id")
	assert.True(t, run.Results[0].BrokerShare.IsZero())

	// WHEN: A default share is configured
	withDefault := commission.NewEngine(
		commission.WithClock(fixedClock()),
		commission.WithDefaultSharePercent(dec("40")),
	)
	run = withDefault.Run(context.Background(), in)

	// THEN: The agent is paid the default share
	assert.Equal(t, commission.StatusCalculated, run.Results[0].Status)
	assertMoney(t, "4000.00", run.Results[0].AgentCommission)
	assertMoney(t, "6000.00", run.Results[0].BrokerShare)
}

type flakySources struct{}

func (flakySources) LookupSource(context.Context, commission.TenantID, commission.SourceID) (commission.SourceEntity, error) {
	return commission.SourceEntity{}, errors.New("connection reset")
}

func TestRun_LookupErrorDoesNotAbortBatch(t *testing.T) {
	in := commission.Input{
		Policies: []commission.Policy{
			motorPolicy("p-1", "1000", commission.SourceAgent, "ag-1"),
			motorPolicy("p-2", "1000", commission.SourceDirect, ""),
		},
		Grids:   []commission.Grid{grid("g-1", "motor", "", "10", "0", "0")},
		Sources: flakySources{},
	}

	run := newTestEngine().Run(context.Background(), in)

	assert.Equal(t, 1, run.Summary.Errors)
	assert.Equal(t, 1, run.Summary.Calculated)
}

func TestRun_Filter(t *testing.T) {
	in := brokerBook()
	in.Filter = commission.Filter{SourceType: commission.SourceAgent}

	run := newTestEngine().Run(context.Background(), in)

	require.Len(t, run.Results, 2)
	for _, r := range run.Results {
		assert.Equal(t, commission.SourceAgent, r.SourceType)
	}

	in.Filter = commission.Filter{PolicyIDs: []commission.PolicyID{"p-direct"}}
	run = newTestEngine().Run(context.Background(), in)
	require.Len(t, run.Results, 1)
}

func TestRun_IsIdempotent(t *testing.T) {
	engine := newTestEngine()
	in := brokerBook()

	first := engine.Run(context.Background(), in)
	second := engine.Run(context.Background(), in)

	assert.Equal(t, first, second)
}

func TestRun_Summary(t *testing.T) {
	run := newTestEngine().Run(context.Background(), brokerBook())

	// 10k + 100k + 10k + 10k + 50k + 20k
	assertMoney(t, "200000.00", run.Summary.PremiumTotal)
	// 1500 + 15000 + 1500 + 1500 + 7500
	assertMoney(t, "27000.00", run.Summary.InsurerCommission)
	assert.Equal(t, runTime, run.Summary.CalcDate)
}

// =============================================================================
// SYNC
// =============================================================================

func TestSync_UpsertsOneRecordPerPolicy(t *testing.T) {
	engine := newTestEngine()
	mem := store.NewMemory()
	ctx := context.Background()

	run := engine.Run(ctx, brokerBook())
	first := engine.Sync(ctx, mem, run.Results)
	second := engine.Sync(ctx, mem, run.Results)

	assert.True(t, first.OK())
	assert.Equal(t, 6, first.Persisted)
	assert.Equal(t, 6, second.Persisted)
	assert.Equal(t, 6, mem.RecordCount(), "re-sync must replace, not duplicate")

	records, err := mem.ListRecords(ctx, tenant, commission.RecordFilter{PolicyID: "p-agent"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, commission.RecordID(tenant, "p-agent"), records[0].ID)
	assertMoney(t, "1050.00", records[0].Result.AgentCommission)
}

func TestSync_ReplacesAfterGridChange(t *testing.T) {
	engine := newTestEngine()
	mem := store.NewMemory()
	ctx := context.Background()

	in := brokerBook()
	engine.Sync(ctx, mem, engine.Run(ctx, in).Results)

	in.Grids = []commission.Grid{grid("g-motor-v2", "motor", "", "20", "0", "0")}
	engine.Sync(ctx, mem, engine.Run(ctx, in).Results)

	records, err := mem.ListRecords(ctx, tenant, commission.RecordFilter{PolicyID: "p-direct"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, commission.GridID("g-motor-v2"), records[0].Result.GridID)
	assertMoney(t, "10000.00", records[0].Result.InsurerCommission)
}

func TestSync_ReportsFailuresPerRecord(t *testing.T) {
	engine := newTestEngine()
	mem := store.NewMemory()
	mem.FailUpsert = func(rec commission.Record) error {
		if rec.Result.PolicyID == "p-misp" {
			return errors.New("disk full")
		}
		return nil
	}
	ctx := context.Background()

	report := engine.Sync(ctx, mem, engine.Run(ctx, brokerBook()).Results)

	assert.False(t, report.OK())
	assert.Equal(t, 5, report.Persisted)
	assert.Equal(t, []commission.PolicyID{"p-misp"}, report.FailedIDs())
	assert.ErrorIs(t, report.Failures[0].Err, commission.ErrPersistence)
	assert.True(t, commission.IsRetryable(report.Failures[0].Err))
	assert.Contains(t, report.Failures[0].Message, "disk full")

	// Retry just the failed subset once the store recovers.
	mem.FailUpsert = nil
	run := engine.Run(ctx, commission.Input{
		Policies: brokerBook().Policies,
		Grids:    brokerBook().Grids,
		Sources:  brokerBook().Sources,
		Filter:   commission.Filter{PolicyIDs: report.FailedIDs()},
	})
	retry := engine.Sync(ctx, mem, run.Results)
	assert.True(t, retry.OK())
	assert.Equal(t, 6, mem.RecordCount())
}

func TestSync_SkipsErrorResults(t *testing.T) {
	engine := newTestEngine()
	mem := store.NewMemory()
	ctx := context.Background()

	in := commission.Input{
		Policies: []commission.Policy{motorPolicy("p-1", "1000", commission.SourceAgent, "ag-missing")},
		Grids:    []commission.Grid{grid("g-1", "motor", "", "10", "0", "0")},
		Sources:  commission.NewStaticSources(),
	}

	report := engine.Sync(ctx, mem, engine.Run(ctx, in).Results)

	assert.Equal(t, 0, report.Persisted)
	assert.Equal(t, []commission.PolicyID{"p-1"}, report.Skipped)
	assert.Equal(t, 0, mem.RecordCount())
}

func TestSync_CancelledContextStopsWrites(t *testing.T) {
	engine := newTestEngine()
	mem := store.NewMemory()

	results := engine.Run(context.Background(), brokerBook()).Results
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := engine.Sync(ctx, mem, results)

	assert.Equal(t, 0, report.Persisted)
	assert.Len(t, report.Skipped, 6)
	assert.Equal(t, 0, mem.RecordCount())
}

func TestSync_ConcurrentSameBatch(t *testing.T) {
	engine := newTestEngine()
	mem := store.NewMemory()
	ctx := context.Background()
	results := engine.Run(ctx, brokerBook()).Results

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.Sync(ctx, mem, results)
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, mem.RecordCount())
}

// =============================================================================
// TENANT OPERATIONS
// =============================================================================

func TestCalculateAllAndSyncAll(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	book := brokerBook()

	require.NoError(t, mem.SaveTier(ctx, *goldTier()))
	for _, s := range book.Sources.(commission.StaticSources) {
		require.NoError(t, mem.SaveSource(ctx, s))
	}
	for _, g := range book.Grids {
		require.NoError(t, mem.SaveGrid(ctx, g))
	}
	for _, p := range book.Policies {
		require.NoError(t, mem.SavePolicy(ctx, p))
	}

	engine := newTestEngine()

	run, err := engine.CalculateAll(ctx, mem, tenant, commission.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 5, run.Summary.Calculated)
	assert.Equal(t, 0, mem.RecordCount(), "calculate must not persist")

	_, report, err := engine.SyncAll(ctx, mem, tenant, commission.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 6, report.Persisted)

	other, err := engine.CalculateAll(ctx, mem, "other-tenant", commission.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 0, other.Summary.Total)
}
