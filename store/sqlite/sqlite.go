/*
Package sqlite provides a SQLite-backed commission.Repository.

PURPOSE:
  Default relational store for a single broker deployment or local
  development. Holds the engine's inputs (tiers, source entities, grid rows,
  policies) and its one output table, commission_records.

KEY TABLES:
  tiers:              Tier share percentages
  source_entities:    Agents, MISPs and employees (tier by reference)
  grids:              Flattened grid rate rows with scope + effective window
  policies:           Sold policies, denormalized for the engine
  commission_records: One row per (tenant_id, policy_id)

UPSERT CONTRACT:
  commission_records carries UNIQUE(tenant_id, policy_id). UpsertRecord uses
  INSERT ... ON CONFLICT DO UPDATE, so re-syncing a policy replaces its row
  and never duplicates it.

DECIMALS:
  Money and rates are stored as TEXT via decimal.Decimal's driver.Valuer and
  read back through its sql.Scanner. Nothing passes through float64.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; SQLite allows one writer at a time.
  WAL mode keeps readers from blocking on that writer.

USAGE:
  store, err := sqlite.New("./data/commissions.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine.SyncAll(ctx, store, tenant, commission.Filter{})

SEE ALSO:
  - commission/store.go: Interface definitions
  - commission/store/memory.go: In-memory implementation for testing
  - store/postgres/postgres.go: Hosted Postgres implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/brokerdesk/commission-engine/commission"
)

// Store implements commission.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ commission.Repository = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tiers (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		share_percent TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE TABLE IF NOT EXISTS source_entities (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		agent_type TEXT,
		tier_id TEXT,
		override_percent TEXT,
		reporting_employee_id TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE TABLE IF NOT EXISTS grids (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		grid_table TEXT NOT NULL DEFAULT '',
		product_type TEXT NOT NULL,
		provider TEXT,
		tier_id TEXT,
		agent_type TEXT,
		base_rate TEXT NOT NULL,
		reward_rate TEXT NOT NULL DEFAULT '0',
		bonus_rate TEXT NOT NULL DEFAULT '0',
		effective_from TEXT,
		effective_to TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	-- Resolution filters on product type first
	CREATE INDEX IF NOT EXISTS idx_grids_tenant_product
		ON grids(tenant_id, product_type);

	CREATE TABLE IF NOT EXISTS policies (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		policy_number TEXT NOT NULL,
		product_type TEXT NOT NULL,
		provider TEXT NOT NULL,
		premium_amount TEXT NOT NULL,
		source_type TEXT NOT NULL,
		source_id TEXT,
		customer_ref TEXT,
		customer_name TEXT,
		start_date TEXT,
		end_date TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE TABLE IF NOT EXISTS commission_records (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		policy_id TEXT NOT NULL,
		policy_number TEXT NOT NULL,
		customer_name TEXT,
		product_type TEXT NOT NULL,
		provider TEXT NOT NULL,
		premium_amount TEXT NOT NULL,
		source_type TEXT NOT NULL,
		source_id TEXT,
		source_name TEXT,
		base_rate TEXT NOT NULL,
		reward_rate TEXT NOT NULL,
		bonus_rate TEXT NOT NULL,
		total_rate TEXT NOT NULL,
		insurer_commission TEXT NOT NULL,
		agent_commission TEXT NOT NULL,
		misp_commission TEXT NOT NULL,
		employee_commission TEXT NOT NULL,
		reporting_employee_commission TEXT NOT NULL,
		reporting_employee_id TEXT,
		broker_share TEXT NOT NULL,
		grid_id TEXT,
		grid_table TEXT,
		tier_id TEXT,
		override_used BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL,
		error TEXT,
		calc_date TEXT NOT NULL,
		synced_at TEXT NOT NULL,
		UNIQUE(tenant_id, policy_id)
	);

	CREATE INDEX IF NOT EXISTS idx_commission_records_status
		ON commission_records(tenant_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TIERS
// =============================================================================

// SaveTier inserts or replaces a tier.
func (s *Store) SaveTier(ctx context.Context, t commission.Tier) error {
	if t.ID == "" {
		return errors.New("tier id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tiers (tenant_id, id, name, share_percent, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name,
			share_percent = excluded.share_percent,
			updated_at = excluded.updated_at
	`, t.TenantID, t.ID, t.Name, t.SharePercent, now())
	if err != nil {
		return fmt.Errorf("failed to save tier: %w", err)
	}
	return nil
}

// ListTiers returns the tenant's tiers ordered by ID.
func (s *Store) ListTiers(ctx context.Context, tenant commission.TenantID) ([]commission.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT tenant_id, id, name, share_percent FROM tiers WHERE tenant_id = ? ORDER BY id",
		tenant,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []commission.Tier
	for rows.Next() {
		var t commission.Tier
		if err := rows.Scan(&t.TenantID, &t.ID, &t.Name, &t.SharePercent); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// =============================================================================
// SOURCE ENTITIES
// =============================================================================

// SaveSource inserts or replaces a source entity. Only the tier ID is
// stored; the tier is joined back in on read.
func (s *Store) SaveSource(ctx context.Context, src commission.SourceEntity) error {
	if src.ID == "" {
		return errors.New("source id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var override decimal.NullDecimal
	if src.OverridePercent != nil {
		override = decimal.NewNullDecimal(*src.OverridePercent)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO source_entities
		(tenant_id, id, type, name, agent_type, tier_id, override_percent, reporting_employee_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			type = excluded.type,
			name = excluded.name,
			agent_type = excluded.agent_type,
			tier_id = excluded.tier_id,
			override_percent = excluded.override_percent,
			reporting_employee_id = excluded.reporting_employee_id,
			updated_at = excluded.updated_at
	`,
		src.TenantID, src.ID, src.Type, src.Name,
		nullString(src.AgentType),
		nullString(string(src.TierID())),
		override,
		nullString(string(src.ReportingEmployeeID)),
		now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}
	return nil
}

const sourceSelect = `
	SELECT s.tenant_id, s.id, s.type, s.name, s.agent_type, s.tier_id,
	       s.override_percent, s.reporting_employee_id,
	       t.name, t.share_percent
	FROM source_entities s
	LEFT JOIN tiers t ON t.tenant_id = s.tenant_id AND t.id = s.tier_id
`

// LookupSource returns the source with its current tier joined in.
func (s *Store) LookupSource(ctx context.Context, tenant commission.TenantID, id commission.SourceID) (commission.SourceEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, sourceSelect+" WHERE s.tenant_id = ? AND s.id = ?", tenant, id)
	if err != nil {
		return commission.SourceEntity{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return commission.SourceEntity{}, err
		}
		return commission.SourceEntity{}, fmt.Errorf("%w: %s", commission.ErrSourceNotFound, id)
	}
	return scanSource(rows)
}

// ListSources returns the tenant's sources ordered by ID.
func (s *Store) ListSources(ctx context.Context, tenant commission.TenantID) ([]commission.SourceEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, sourceSelect+" WHERE s.tenant_id = ? ORDER BY s.id", tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []commission.SourceEntity
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func scanSource(rows *sql.Rows) (commission.SourceEntity, error) {
	var (
		src                            commission.SourceEntity
		agentType, tierID, reportingID sql.NullString
		tierName                       sql.NullString
		override, tierShare            decimal.NullDecimal
	)
	err := rows.Scan(
		&src.TenantID, &src.ID, &src.Type, &src.Name, &agentType, &tierID,
		&override, &reportingID, &tierName, &tierShare,
	)
	if err != nil {
		return commission.SourceEntity{}, err
	}

	src.AgentType = agentType.String
	src.ReportingEmployeeID = commission.SourceID(reportingID.String)
	if override.Valid {
		pct := override.Decimal
		src.OverridePercent = &pct
	}
	// A dangling tier reference reads as no tier.
	if tierID.Valid && tierShare.Valid {
		src.Tier = &commission.Tier{
			ID:           commission.TierID(tierID.String),
			TenantID:     src.TenantID,
			Name:         tierName.String,
			SharePercent: tierShare.Decimal,
		}
	}
	return src, nil
}

// =============================================================================
// GRIDS
// =============================================================================

// SaveGrid inserts or replaces a grid rate row.
func (s *Store) SaveGrid(ctx context.Context, g commission.Grid) error {
	if g.ID == "" {
		return errors.New("grid id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var to sql.NullString
	if g.EffectiveTo != nil {
		to = nullString(formatTime(*g.EffectiveTo))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grids
		(tenant_id, id, grid_table, product_type, provider, tier_id, agent_type,
		 base_rate, reward_rate, bonus_rate, effective_from, effective_to, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			grid_table = excluded.grid_table,
			product_type = excluded.product_type,
			provider = excluded.provider,
			tier_id = excluded.tier_id,
			agent_type = excluded.agent_type,
			base_rate = excluded.base_rate,
			reward_rate = excluded.reward_rate,
			bonus_rate = excluded.bonus_rate,
			effective_from = excluded.effective_from,
			effective_to = excluded.effective_to,
			updated_at = excluded.updated_at
	`,
		g.TenantID, g.ID, g.Table, g.ProductType,
		nullString(g.Provider), nullString(string(g.TierID)), nullString(g.AgentType),
		g.BaseRate, g.RewardRate, g.BonusRate,
		nullString(formatTime(g.EffectiveFrom)), to,
		now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save grid: %w", err)
	}
	return nil
}

// ListGrids returns every grid row of the tenant, including inactive ones;
// the resolver applies the effective window.
func (s *Store) ListGrids(ctx context.Context, tenant commission.TenantID) ([]commission.Grid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, id, grid_table, product_type, provider, tier_id, agent_type,
		       base_rate, reward_rate, bonus_rate, effective_from, effective_to
		FROM grids WHERE tenant_id = ? ORDER BY id
	`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grids []commission.Grid
	for rows.Next() {
		var (
			g                           commission.Grid
			provider, tierID, agentType sql.NullString
			from, to                    sql.NullString
		)
		if err := rows.Scan(
			&g.TenantID, &g.ID, &g.Table, &g.ProductType, &provider, &tierID, &agentType,
			&g.BaseRate, &g.RewardRate, &g.BonusRate, &from, &to,
		); err != nil {
			return nil, err
		}
		g.Provider = provider.String
		g.TierID = commission.TierID(tierID.String)
		g.AgentType = agentType.String
		g.EffectiveFrom = parseTime(from.String)
		if to.Valid {
			t := parseTime(to.String)
			g.EffectiveTo = &t
		}
		grids = append(grids, g)
	}
	return grids, rows.Err()
}

// =============================================================================
// POLICIES
// =============================================================================

// SavePolicy inserts or replaces a policy.
func (s *Store) SavePolicy(ctx context.Context, p commission.Policy) error {
	if p.ID == "" {
		return errors.New("policy id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policies
		(tenant_id, id, policy_number, product_type, provider, premium_amount, source_type,
		 source_id, customer_ref, customer_name, start_date, end_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			policy_number = excluded.policy_number,
			product_type = excluded.product_type,
			provider = excluded.provider,
			premium_amount = excluded.premium_amount,
			source_type = excluded.source_type,
			source_id = excluded.source_id,
			customer_ref = excluded.customer_ref,
			customer_name = excluded.customer_name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			updated_at = excluded.updated_at
	`,
		p.TenantID, p.ID, p.PolicyNumber, p.ProductType, p.Provider, p.Premium, p.SourceType,
		nullString(string(p.SourceID)), nullString(p.CustomerRef), nullString(p.CustomerName),
		nullString(formatTime(p.StartDate)), nullString(formatTime(p.EndDate)),
		now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

// ListPolicies returns the tenant's policies passing filter, ordered by ID.
func (s *Store) ListPolicies(ctx context.Context, tenant commission.TenantID, filter commission.Filter) ([]commission.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, id, policy_number, product_type, provider, premium_amount, source_type,
		       source_id, customer_ref, customer_name, start_date, end_date
		FROM policies WHERE tenant_id = ? ORDER BY id
	`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []commission.Policy
	for rows.Next() {
		var (
			p                                   commission.Policy
			sourceID, customerRef, customerName sql.NullString
			start, end                          sql.NullString
		)
		if err := rows.Scan(
			&p.TenantID, &p.ID, &p.PolicyNumber, &p.ProductType, &p.Provider, &p.Premium, &p.SourceType,
			&sourceID, &customerRef, &customerName, &start, &end,
		); err != nil {
			return nil, err
		}
		p.SourceID = commission.SourceID(sourceID.String)
		p.CustomerRef = customerRef.String
		p.CustomerName = customerName.String
		p.StartDate = parseTime(start.String)
		p.EndDate = parseTime(end.String)
		if filter.Match(p) {
			policies = append(policies, p)
		}
	}
	return policies, rows.Err()
}

// =============================================================================
// COMMISSION RECORDS
// =============================================================================

// UpsertRecord inserts or replaces the record for (tenant, policy).
func (s *Store) UpsertRecord(ctx context.Context, rec commission.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := rec.Result
	syncedAt := rec.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commission_records
		(id, tenant_id, policy_id, policy_number, customer_name, product_type, provider,
		 premium_amount, source_type, source_id, source_name,
		 base_rate, reward_rate, bonus_rate, total_rate,
		 insurer_commission, agent_commission, misp_commission, employee_commission,
		 reporting_employee_commission, reporting_employee_id, broker_share,
		 grid_id, grid_table, tier_id, override_used, status, error, calc_date, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, policy_id) DO UPDATE SET
			policy_number = excluded.policy_number,
			customer_name = excluded.customer_name,
			product_type = excluded.product_type,
			provider = excluded.provider,
			premium_amount = excluded.premium_amount,
			source_type = excluded.source_type,
			source_id = excluded.source_id,
			source_name = excluded.source_name,
			base_rate = excluded.base_rate,
			reward_rate = excluded.reward_rate,
			bonus_rate = excluded.bonus_rate,
			total_rate = excluded.total_rate,
			insurer_commission = excluded.insurer_commission,
			agent_commission = excluded.agent_commission,
			misp_commission = excluded.misp_commission,
			employee_commission = excluded.employee_commission,
			reporting_employee_commission = excluded.reporting_employee_commission,
			reporting_employee_id = excluded.reporting_employee_id,
			broker_share = excluded.broker_share,
			grid_id = excluded.grid_id,
			grid_table = excluded.grid_table,
			tier_id = excluded.tier_id,
			override_used = excluded.override_used,
			status = excluded.status,
			error = excluded.error,
			calc_date = excluded.calc_date,
			synced_at = excluded.synced_at
	`,
		rec.ID, r.TenantID, r.PolicyID, r.PolicyNumber, nullString(r.CustomerName), r.ProductType, r.Provider,
		r.Premium, r.SourceType, nullString(string(r.SourceID)), nullString(r.SourceName),
		r.BaseRate, r.RewardRate, r.BonusRate, r.TotalRate,
		r.InsurerCommission, r.AgentCommission, r.MISPCommission, r.EmployeeCommission,
		r.ReportingEmployeeCommission, nullString(string(r.ReportingEmployeeID)), r.BrokerShare,
		nullString(string(r.GridID)), nullString(r.GridTable), nullString(string(r.TierID)),
		r.OverrideUsed, r.Status, nullString(r.Error),
		formatTime(r.CalcDate), formatTime(syncedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert commission record: %w", err)
	}
	return nil
}

// ListRecords returns persisted records ordered by policy ID.
func (s *Store) ListRecords(ctx context.Context, tenant commission.TenantID, filter commission.RecordFilter) ([]commission.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, tenant_id, policy_id, policy_number, customer_name, product_type, provider,
		       premium_amount, source_type, source_id, source_name,
		       base_rate, reward_rate, bonus_rate, total_rate,
		       insurer_commission, agent_commission, misp_commission, employee_commission,
		       reporting_employee_commission, reporting_employee_id, broker_share,
		       grid_id, grid_table, tier_id, override_used, status, error, calc_date, synced_at
		FROM commission_records WHERE tenant_id = ?`
	args := []any{tenant}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.PolicyID != "" {
		query += " AND policy_id = ?"
		args = append(args, filter.PolicyID)
	}
	query += " ORDER BY policy_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []commission.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteRecord removes the record for (tenant, policy).
func (s *Store) DeleteRecord(ctx context.Context, tenant commission.TenantID, policy commission.PolicyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM commission_records WHERE tenant_id = ? AND policy_id = ?", tenant, policy,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("commission record %s: %w", policy, commission.ErrNotFound)
	}
	return nil
}

func scanRecord(rows *sql.Rows) (commission.Record, error) {
	var (
		rec                                         commission.Record
		customerName, sourceID, sourceName          sql.NullString
		reportingID, gridID, gridTable, tierID, msg sql.NullString
		calcDate, syncedAt                          string
	)
	r := &rec.Result
	err := rows.Scan(
		&rec.ID, &r.TenantID, &r.PolicyID, &r.PolicyNumber, &customerName, &r.ProductType, &r.Provider,
		&r.Premium, &r.SourceType, &sourceID, &sourceName,
		&r.BaseRate, &r.RewardRate, &r.BonusRate, &r.TotalRate,
		&r.InsurerCommission, &r.AgentCommission, &r.MISPCommission, &r.EmployeeCommission,
		&r.ReportingEmployeeCommission, &reportingID, &r.BrokerShare,
		&gridID, &gridTable, &tierID, &r.OverrideUsed, &r.Status, &msg, &calcDate, &syncedAt,
	)
	if err != nil {
		return commission.Record{}, err
	}
	r.CustomerName = customerName.String
	r.SourceID = commission.SourceID(sourceID.String)
	r.SourceName = sourceName.String
	r.ReportingEmployeeID = commission.SourceID(reportingID.String)
	r.GridID = commission.GridID(gridID.String)
	r.GridTable = gridTable.String
	r.TierID = commission.TierID(tierID.String)
	r.Error = msg.String
	r.CalcDate = parseTime(calcDate)
	rec.SyncedAt = parseTime(syncedAt)
	return rec, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"commission_records", "policies", "grids", "source_entities", "tiers"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func now() string {
	return formatTime(time.Now())
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if strings.TrimSpace(s) == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
