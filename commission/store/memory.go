// Package store provides in-memory Repository implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/brokerdesk/commission-engine/commission"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	policies map[key]commission.Policy
	grids    map[key]commission.Grid
	sources  map[key]commission.SourceEntity
	tiers    map[key]commission.Tier
	records  map[key]commission.Record

	// FailUpsert, when set, is consulted before every record write.
	FailUpsert func(commission.Record) error
}

type key struct {
	Tenant commission.TenantID
	ID     string
}

func NewMemory() *Memory {
	return &Memory{
		policies: make(map[key]commission.Policy),
		grids:    make(map[key]commission.Grid),
		sources:  make(map[key]commission.SourceEntity),
		tiers:    make(map[key]commission.Tier),
		records:  make(map[key]commission.Record),
	}
}

var _ commission.Repository = (*Memory)(nil)

// =============================================================================
// READS
// =============================================================================

func (m *Memory) ListPolicies(_ context.Context, tenant commission.TenantID, filter commission.Filter) ([]commission.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []commission.Policy
	for k, p := range m.policies {
		if k.Tenant == tenant && filter.Match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListGrids(_ context.Context, tenant commission.TenantID) ([]commission.Grid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []commission.Grid
	for k, g := range m.grids {
		if k.Tenant == tenant {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LookupSource returns the source with its current tier joined in.
func (m *Memory) LookupSource(_ context.Context, tenant commission.TenantID, id commission.SourceID) (commission.SourceEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sources[key{tenant, string(id)}]
	if !ok {
		return commission.SourceEntity{}, fmt.Errorf("%w: %s", commission.ErrSourceNotFound, id)
	}
	return m.joinTierLocked(s), nil
}

func (m *Memory) ListSources(_ context.Context, tenant commission.TenantID) ([]commission.SourceEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []commission.SourceEntity
	for k, s := range m.sources {
		if k.Tenant == tenant {
			out = append(out, m.joinTierLocked(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListTiers(_ context.Context, tenant commission.TenantID) ([]commission.Tier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []commission.Tier
	for k, t := range m.tiers {
		if k.Tenant == tenant {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListRecords(_ context.Context, tenant commission.TenantID, filter commission.RecordFilter) ([]commission.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []commission.Record
	for k, r := range m.records {
		if k.Tenant != tenant {
			continue
		}
		if filter.Status != "" && r.Result.Status != filter.Status {
			continue
		}
		if filter.PolicyID != "" && r.Result.PolicyID != filter.PolicyID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Result.PolicyID < out[j].Result.PolicyID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// RecordCount returns the number of stored records across tenants.
func (m *Memory) RecordCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) joinTierLocked(s commission.SourceEntity) commission.SourceEntity {
	if s.Tier == nil {
		return s
	}
	if t, ok := m.tiers[key{s.TenantID, string(s.Tier.ID)}]; ok {
		s.Tier = &t
	}
	return s
}

// =============================================================================
// WRITES
// =============================================================================

func (m *Memory) SavePolicy(_ context.Context, p commission.Policy) error {
	if p.ID == "" {
		return errors.New("policy id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[key{p.TenantID, string(p.ID)}] = p
	return nil
}

func (m *Memory) SaveGrid(_ context.Context, g commission.Grid) error {
	if g.ID == "" {
		return errors.New("grid id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grids[key{g.TenantID, string(g.ID)}] = g
	return nil
}

func (m *Memory) SaveSource(_ context.Context, s commission.SourceEntity) error {
	if s.ID == "" {
		return errors.New("source id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[key{s.TenantID, string(s.ID)}] = s
	return nil
}

func (m *Memory) SaveTier(_ context.Context, t commission.Tier) error {
	if t.ID == "" {
		return errors.New("tier id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers[key{t.TenantID, string(t.ID)}] = t
	return nil
}

// UpsertRecord replaces the record for (tenant, policy).
func (m *Memory) UpsertRecord(_ context.Context, rec commission.Record) error {
	if m.FailUpsert != nil {
		if err := m.FailUpsert(rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key{rec.Result.TenantID, string(rec.Result.PolicyID)}] = rec
	return nil
}
