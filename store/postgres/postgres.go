/*
Package postgres provides a GORM-backed commission.Repository for the hosted
Postgres deployment.

PURPOSE:
  Same contract as store/sqlite, expressed through GORM models. Schema is
  created with AutoMigrate; commission records upsert through
  clause.OnConflict on (tenant_id, policy_id).

USAGE:
  dsn := postgres.DSN(cfg.Host, cfg.Port, cfg.Name, cfg.User, cfg.Password, cfg.SSLMode)
  store, err := postgres.Open(dsn)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/sqlite/sqlite.go: Default store, same semantics
  - store/postgres/models.go: Table models and mapping
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/brokerdesk/commission-engine/commission"
)

// Store implements commission.Repository on Postgres.
type Store struct {
	db *gorm.DB
}

var _ commission.Repository = (*Store)(nil)

// DSN assembles a libpq connection string. An empty sslMode leaves the
// driver default.
func DSN(host string, port int, name, user, password, sslMode string) string {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d", host, user, password, name, port)
	if sslMode != "" {
		dsn += " sslmode=" + sslMode
	}
	return dsn
}

// Open connects and migrates.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&tierModel{},
		&sourceModel{},
		&gridModel{},
		&policyModel{},
		&recordModel{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// upsertAll replaces every non-key column on primary key conflict.
func (s *Store) upsertAll(ctx context.Context, v any) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(v).Error
}

// =============================================================================
// WRITES
// =============================================================================

func (s *Store) SaveTier(ctx context.Context, t commission.Tier) error {
	if t.ID == "" {
		return errors.New("tier id required")
	}
	m := toTierModel(t)
	if err := s.upsertAll(ctx, &m); err != nil {
		return fmt.Errorf("failed to save tier: %w", err)
	}
	return nil
}

func (s *Store) SaveSource(ctx context.Context, src commission.SourceEntity) error {
	if src.ID == "" {
		return errors.New("source id required")
	}
	m := toSourceModel(src)
	if err := s.upsertAll(ctx, &m); err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}
	return nil
}

func (s *Store) SaveGrid(ctx context.Context, g commission.Grid) error {
	if g.ID == "" {
		return errors.New("grid id required")
	}
	m := toGridModel(g)
	if err := s.upsertAll(ctx, &m); err != nil {
		return fmt.Errorf("failed to save grid: %w", err)
	}
	return nil
}

func (s *Store) SavePolicy(ctx context.Context, p commission.Policy) error {
	if p.ID == "" {
		return errors.New("policy id required")
	}
	m := toPolicyModel(p)
	if err := s.upsertAll(ctx, &m); err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

// UpsertRecord inserts or replaces the record for (tenant, policy). The
// record's own ID is kept from the first insert.
func (s *Store) UpsertRecord(ctx context.Context, rec commission.Record) error {
	if rec.SyncedAt.IsZero() {
		rec.SyncedAt = time.Now()
	}
	m := toRecordModel(rec)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "policy_id"}},
		DoUpdates: clause.AssignmentColumns(recordUpdateColumns),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("failed to upsert commission record: %w", err)
	}
	return nil
}

var recordUpdateColumns = []string{
	"policy_number", "customer_name", "product_type", "provider", "premium_amount",
	"source_type", "source_id", "source_name",
	"base_rate", "reward_rate", "bonus_rate", "total_rate",
	"insurer_commission", "agent_commission", "misp_commission", "employee_commission",
	"reporting_employee_commission", "reporting_employee_id", "broker_share",
	"grid_id", "grid_table", "tier_id", "override_used", "status", "error",
	"calc_date", "synced_at",
}

// DeleteRecord removes the record for (tenant, policy).
func (s *Store) DeleteRecord(ctx context.Context, tenant commission.TenantID, policy commission.PolicyID) error {
	res := s.db.WithContext(ctx).
		Where("tenant_id = ? AND policy_id = ?", string(tenant), string(policy)).
		Delete(&recordModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("commission record %s: %w", policy, commission.ErrNotFound)
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	for _, m := range []any{&recordModel{}, &policyModel{}, &gridModel{}, &sourceModel{}, &tierModel{}} {
		if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) ListTiers(ctx context.Context, tenant commission.TenantID) ([]commission.Tier, error) {
	var rows []tierModel
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", string(tenant)).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	tiers := make([]commission.Tier, 0, len(rows))
	for _, m := range rows {
		tiers = append(tiers, m.toTier())
	}
	return tiers, nil
}

// LookupSource returns the source with its current tier joined in.
func (s *Store) LookupSource(ctx context.Context, tenant commission.TenantID, id commission.SourceID) (commission.SourceEntity, error) {
	var m sourceModel
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", string(tenant), string(id)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return commission.SourceEntity{}, fmt.Errorf("%w: %s", commission.ErrSourceNotFound, id)
	}
	if err != nil {
		return commission.SourceEntity{}, err
	}

	tiers, err := s.tierIndex(ctx, tenant)
	if err != nil {
		return commission.SourceEntity{}, err
	}
	return m.toSource(tiers[m.TierID]), nil
}

func (s *Store) ListSources(ctx context.Context, tenant commission.TenantID) ([]commission.SourceEntity, error) {
	var rows []sourceModel
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", string(tenant)).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	tiers, err := s.tierIndex(ctx, tenant)
	if err != nil {
		return nil, err
	}
	sources := make([]commission.SourceEntity, 0, len(rows))
	for _, m := range rows {
		sources = append(sources, m.toSource(tiers[m.TierID]))
	}
	return sources, nil
}

func (s *Store) tierIndex(ctx context.Context, tenant commission.TenantID) (map[string]*tierModel, error) {
	var rows []tierModel
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", string(tenant)).Find(&rows).Error; err != nil {
		return nil, err
	}
	idx := make(map[string]*tierModel, len(rows))
	for i := range rows {
		idx[rows[i].ID] = &rows[i]
	}
	return idx, nil
}

func (s *Store) ListGrids(ctx context.Context, tenant commission.TenantID) ([]commission.Grid, error) {
	var rows []gridModel
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", string(tenant)).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	grids := make([]commission.Grid, 0, len(rows))
	for _, m := range rows {
		grids = append(grids, m.toGrid())
	}
	return grids, nil
}

func (s *Store) ListPolicies(ctx context.Context, tenant commission.TenantID, filter commission.Filter) ([]commission.Policy, error) {
	q := s.db.WithContext(ctx).Where("tenant_id = ?", string(tenant))
	if len(filter.PolicyIDs) > 0 {
		ids := make([]string, len(filter.PolicyIDs))
		for i, id := range filter.PolicyIDs {
			ids[i] = string(id)
		}
		q = q.Where("id IN ?", ids)
	}

	var rows []policyModel
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	policies := make([]commission.Policy, 0, len(rows))
	for _, m := range rows {
		if p := m.toPolicy(); filter.Match(p) {
			policies = append(policies, p)
		}
	}
	return policies, nil
}

func (s *Store) ListRecords(ctx context.Context, tenant commission.TenantID, filter commission.RecordFilter) ([]commission.Record, error) {
	q := s.db.WithContext(ctx).Where("tenant_id = ?", string(tenant))
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.PolicyID != "" {
		q = q.Where("policy_id = ?", string(filter.PolicyID))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []recordModel
	if err := q.Order("policy_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]commission.Record, 0, len(rows))
	for _, m := range rows {
		records = append(records, m.toRecord())
	}
	return records, nil
}
