/*
engine.go - Batch orchestration

PURPOSE:
  Runs Resolve -> Calculate -> Split -> Label over a batch of policies.
  Run is a pure map: results for different policies never depend on each
  other, so policies are processed in parallel and written back by index.

BATCH ISOLATION:
  A failure on one policy (malformed record, missing source entity, even a
  panic) becomes an error-status result for that policy. Every input
  policy yields exactly one result and nothing escapes Run.

CALCULATE vs SYNC:
  CalculateAll loads a tenant's data and returns results without writing.
  SyncAll does the same and then upserts the results (see sync.go).

USAGE:
  engine := commission.NewEngine(commission.WithWorkers(8))
  run := engine.Run(ctx, commission.Input{Policies: p, Grids: g, Sources: s})
  report := engine.Sync(ctx, store, run.Results)
*/
package commission

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// OPTIONS
// =============================================================================

type Options struct {
	Workers               int
	ReportingSharePercent decimal.Decimal
	DefaultSharePercent   decimal.Decimal
	Logger                *zap.Logger
	Clock                 func() time.Time
}

type Option func(*Options)

// DefaultReportingSharePercent is the slice of an employee's commission
// attributed to their reporting employee unless configured otherwise.
var DefaultReportingSharePercent = decimal.NewFromInt(10)

func DefaultOptions() Options {
	return Options{
		Workers:               runtime.GOMAXPROCS(0),
		ReportingSharePercent: DefaultReportingSharePercent,
		DefaultSharePercent:   decimal.Zero,
		Logger:                zap.NewNop(),
		Clock:                 time.Now,
	}
}

func WithWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Workers = n
		}
	}
}

func WithReportingSharePercent(pct decimal.Decimal) Option {
	return func(o *Options) { o.ReportingSharePercent = pct }
}

func WithDefaultSharePercent(pct decimal.Decimal) Option {
	return func(o *Options) { o.DefaultSharePercent = pct }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithClock fixes the calculation timestamp source. Tests use it to get
// bit-identical results across runs.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		if clock != nil {
			o.Clock = clock
		}
	}
}

// =============================================================================
// ENGINE
// =============================================================================

// recordLockStripes bounds the lock set shared by every (tenant, policy) key.
const recordLockStripes = 256

type Engine struct {
	opts Options

	// Serializes concurrent upserts of the same policy record. Keys hash onto
	// a fixed set of stripes, so unrelated policies may occasionally share one.
	recordLocks [recordLockStripes]sync.Mutex
}

func NewEngine(opts ...Option) *Engine {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Engine{opts: o}
}

func (e *Engine) Options() Options { return e.opts }

func (e *Engine) splitOptions() SplitOptions {
	return SplitOptions{
		ReportingSharePercent: e.opts.ReportingSharePercent,
		DefaultSharePercent:   e.opts.DefaultSharePercent,
	}
}

// Input is one batch. Grids should be the tenant's full active grid set.
type Input struct {
	Policies []Policy
	Grids    []Grid
	Sources  SourceLookup
	Filter   Filter
}

// RunResult holds the results in input order plus aggregate counts.
type RunResult struct {
	Results []Result
	Summary Summary
}

// StatusCounts tallies results by status. It is shared by Summary and the
// report package so both count the same way.
type StatusCounts struct {
	Calculated  int `json:"calculated"`
	NoGridMatch int `json:"no_grid_match"`
	Errors      int `json:"errors"`
}

// Tally counts r and reports whether r contributes to money totals. Error
// results, and anything with an unknown status, never do.
func (c *StatusCounts) Tally(r Result) bool {
	switch r.Status {
	case StatusCalculated:
		c.Calculated++
	case StatusNoGridMatch:
		c.NoGridMatch++
	default:
		c.Errors++
		return false
	}
	return true
}

// Summary is what the UI shows after a run: "N calculated, M no-grid-match".
type Summary struct {
	Total int `json:"total"`
	StatusCounts
	PremiumTotal      decimal.Decimal `json:"premium_total"`
	InsurerCommission decimal.Decimal `json:"insurer_commission"`
	BrokerShare       decimal.Decimal `json:"broker_share"`
	CalcDate          time.Time       `json:"calc_date"`
}

// Run computes one result per (filtered) policy.
func (e *Engine) Run(ctx context.Context, in Input) RunResult {
	now := e.opts.Clock()
	policies := in.Filter.Apply(in.Policies)
	results := make([]Result, len(policies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.opts.Workers, 1))
	for i := range policies {
		g.Go(func() error {
			results[i] = e.calculateOne(gctx, policies[i], in, now)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	summary := Summarize(results)
	summary.CalcDate = now

	e.opts.Logger.Info("commission run complete",
		zap.Int("total", summary.Total),
		zap.Int("calculated", summary.Calculated),
		zap.Int("no_grid_match", summary.NoGridMatch),
		zap.Int("errors", summary.Errors),
		zap.String("insurer_commission", summary.InsurerCommission.StringFixed(MinorUnits)),
	)

	return RunResult{Results: results, Summary: summary}
}

// calculateOne never panics and never returns without a result.
func (e *Engine) calculateOne(ctx context.Context, p Policy, in Input, now time.Time) (res Result) {
	res = newResult(p, now)

	defer func() {
		if rec := recover(); rec != nil {
			MarkError(&res, fmt.Errorf("panic calculating policy %s: %v", p.ID, rec))
			e.opts.Logger.Error("commission calculation panicked", zap.String("policy_id", string(p.ID)), zap.Any("panic", rec))
		}
	}()

	fail := func(err error) Result {
		MarkError(&res, err)
		e.opts.Logger.Warn("commission calculation failed",
			zap.String("policy_id", string(p.ID)),
			zap.Error(err),
		)
		return res
	}

	if err := p.Validate(); err != nil {
		return fail(err)
	}

	var source *SourceEntity
	if p.SourceType != SourceDirect {
		if in.Sources == nil {
			return fail(fmt.Errorf("%w: %s %s", ErrSourceNotFound, p.SourceType, p.SourceID))
		}
		s, err := in.Sources.LookupSource(ctx, p.TenantID, p.SourceID)
		if err != nil {
			return fail(fmt.Errorf("lookup %s %s: %w", p.SourceType, p.SourceID, err))
		}
		if s.Type != "" && s.Type != p.SourceType {
			return fail(&InvalidInputError{
				Record: "policy " + string(p.ID),
				Field:  "source_type",
				Reason: fmt.Sprintf("is %s but source %s is %s", p.SourceType, s.ID, s.Type),
			})
		}
		source = &s
		res.SourceName = s.Name
	}

	match, matched := ResolveMatch(p, source, in.Grids, resolutionDate(p, now))
	if match.Skipped > 0 {
		e.opts.Logger.Debug("malformed grids skipped",
			zap.String("policy_id", string(p.ID)),
			zap.Int("skipped", match.Skipped),
		)
	}

	rates, err := Calculate(p, match.Grid, matched)
	if err != nil {
		return fail(err)
	}
	if !matched {
		Label(&res, Grid{}, false, now)
		return res
	}
	applyRates(&res, rates)

	alloc, err := Split(p, source, rates.InsurerCommission, e.splitOptions())
	if err != nil {
		return fail(err)
	}
	applyAllocation(&res, alloc)
	Label(&res, match.Grid, true, now)

	if err := CheckResult(res); err != nil {
		return fail(err)
	}
	return res
}

// Summarize counts statuses and totals the non-error results.
func Summarize(results []Result) Summary {
	s := Summary{
		Total:             len(results),
		PremiumTotal:      decimal.Zero,
		InsurerCommission: decimal.Zero,
		BrokerShare:       decimal.Zero,
	}
	for _, r := range results {
		if !s.Tally(r) {
			continue
		}
		s.PremiumTotal = s.PremiumTotal.Add(r.Premium)
		s.InsurerCommission = s.InsurerCommission.Add(r.InsurerCommission)
		s.BrokerShare = s.BrokerShare.Add(r.BrokerShare)
	}
	return s
}

// =============================================================================
// TENANT OPERATIONS - Load from a DataSource, then run
// =============================================================================

// Load reads a tenant's batch from ds.
func Load(ctx context.Context, ds DataSource, tenant TenantID, filter Filter) (Input, error) {
	policies, err := ds.ListPolicies(ctx, tenant, filter)
	if err != nil {
		return Input{}, fmt.Errorf("load policies: %w", err)
	}
	grids, err := ds.ListGrids(ctx, tenant)
	if err != nil {
		return Input{}, fmt.Errorf("load grids: %w", err)
	}
	return Input{Policies: policies, Grids: grids, Sources: ds, Filter: filter}, nil
}

// CalculateAll runs the tenant's current policy set without persisting.
func (e *Engine) CalculateAll(ctx context.Context, ds DataSource, tenant TenantID, filter Filter) (RunResult, error) {
	in, err := Load(ctx, ds, tenant, filter)
	if err != nil {
		return RunResult{}, err
	}
	return e.Run(ctx, in), nil
}

// SyncAll runs the tenant's policy set and upserts the results.
func (e *Engine) SyncAll(ctx context.Context, repo Repository, tenant TenantID, filter Filter) (RunResult, SyncReport, error) {
	run, err := e.CalculateAll(ctx, repo, tenant, filter)
	if err != nil {
		return RunResult{}, SyncReport{}, err
	}
	return run, e.Sync(ctx, repo, run.Results), nil
}
