/*
store.go - Persistence interfaces consumed by the engine

KEY INTERFACES:
  SourceLookup: Resolve a policy's selling entity (tier joined in)
  DataSource:   Read the tenant's policies, grids and sources
  RecordStore:  Upsert computed commission records
  Repository:   Everything above plus the thin data-entry writes

UPSERT CONTRACT:
  Commission records are keyed by (tenant, policy). UpsertRecord replaces
  any prior record for that key, so re-running and re-syncing never
  accumulates duplicates.

IMPLEMENTATIONS:
  - commission/store/memory.go: In-memory, for tests and demos
  - store/sqlite/sqlite.go: Default relational store
  - store/postgres/postgres.go: Hosted Postgres via GORM
*/
package commission

import (
	"context"
	"fmt"
)

// SourceLookup resolves source entities with their tier joined in.
type SourceLookup interface {
	LookupSource(ctx context.Context, tenant TenantID, id SourceID) (SourceEntity, error)
}

// DataSource is the read side the engine loads a batch from.
type DataSource interface {
	SourceLookup
	ListPolicies(ctx context.Context, tenant TenantID, filter Filter) ([]Policy, error)
	ListGrids(ctx context.Context, tenant TenantID) ([]Grid, error)
}

// RecordStore persists commission records.
type RecordStore interface {
	// UpsertRecord inserts or replaces the record for (tenant, policy).
	UpsertRecord(ctx context.Context, rec Record) error
}

// RecordFilter narrows ListRecords.
type RecordFilter struct {
	Status   Status
	PolicyID PolicyID
	Limit    int
}

// Repository is the full store surface used by the API and CLI.
type Repository interface {
	DataSource
	RecordStore

	ListRecords(ctx context.Context, tenant TenantID, filter RecordFilter) ([]Record, error)
	ListSources(ctx context.Context, tenant TenantID) ([]SourceEntity, error)
	ListTiers(ctx context.Context, tenant TenantID) ([]Tier, error)

	SavePolicy(ctx context.Context, p Policy) error
	SaveGrid(ctx context.Context, g Grid) error
	SaveSource(ctx context.Context, s SourceEntity) error
	SaveTier(ctx context.Context, t Tier) error
}

// =============================================================================
// STATIC SOURCES - Map-backed SourceLookup
// =============================================================================

// StaticSources is a SourceLookup over an in-memory map, keyed by source ID.
type StaticSources map[SourceID]SourceEntity

func NewStaticSources(sources ...SourceEntity) StaticSources {
	m := make(StaticSources, len(sources))
	for _, s := range sources {
		m[s.ID] = s
	}
	return m
}

func (m StaticSources) LookupSource(_ context.Context, tenant TenantID, id SourceID) (SourceEntity, error) {
	s, ok := m[id]
	if !ok || (tenant != "" && s.TenantID != "" && s.TenantID != tenant) {
		return SourceEntity{}, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	return s, nil
}
