package factory

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/brokerdesk/commission-engine/commission"
)

// =============================================================================
// DATASET SCHEMA - One tenant's seed file
// =============================================================================

// DatasetJSON is the file layout for a broker's seed data. Grids may be
// given as flat rows, as grid tables, or both.
type DatasetJSON struct {
	Tenant      string          `json:"tenant" yaml:"tenant"`
	Name        string          `json:"name,omitempty" yaml:"name,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Tiers       []TierJSON      `json:"tiers,omitempty" yaml:"tiers,omitempty"`
	Sources     []SourceJSON    `json:"sources,omitempty" yaml:"sources,omitempty"`
	GridTables  []GridTableJSON `json:"grid_tables,omitempty" yaml:"grid_tables,omitempty"`
	Grids       []GridJSON      `json:"grids,omitempty" yaml:"grids,omitempty"`
	Policies    []PolicyJSON    `json:"policies,omitempty" yaml:"policies,omitempty"`
}

// Dataset is a parsed seed file. Rejected holds one error per record that
// failed to parse; those records are absent from the typed slices.
type Dataset struct {
	Tenant      commission.TenantID
	Name        string
	Description string
	Tiers       []commission.Tier
	Sources     []commission.SourceEntity
	Grids       []commission.Grid
	Policies    []commission.Policy
	Rejected    []error
}

// Input returns the dataset as an engine batch.
func (d Dataset) Input() commission.Input {
	return commission.Input{
		Policies: d.Policies,
		Grids:    d.Grids,
		Sources:  commission.NewStaticSources(d.Sources...),
	}
}

// Seed writes every parsed record into repo, tiers first.
func (d Dataset) Seed(ctx context.Context, repo commission.Repository) error {
	for _, t := range d.Tiers {
		if err := repo.SaveTier(ctx, t); err != nil {
			return fmt.Errorf("seed tier %s: %w", t.ID, err)
		}
	}
	for _, s := range d.Sources {
		if err := repo.SaveSource(ctx, s); err != nil {
			return fmt.Errorf("seed source %s: %w", s.ID, err)
		}
	}
	for _, g := range d.Grids {
		if err := repo.SaveGrid(ctx, g); err != nil {
			return fmt.Errorf("seed grid %s: %w", g.ID, err)
		}
	}
	for _, p := range d.Policies {
		if err := repo.SavePolicy(ctx, p); err != nil {
			return fmt.Errorf("seed policy %s: %w", p.ID, err)
		}
	}
	return nil
}

// =============================================================================
// FORMATS
// =============================================================================

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode unmarshals data in the given format, rejecting unknown fields.
func Decode(data []byte, format Format, v any) error {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	}
	return nil
}

// =============================================================================
// LOADING
// =============================================================================

// LoadDataset reads a dataset file using the tenant named inside it.
func LoadDataset(path string) (Dataset, error) {
	return New("").LoadDataset(path)
}

// LoadDataset reads a dataset file. The factory's tenant, when set, takes
// precedence over the file's.
func (f *Factory) LoadDataset(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("read dataset: %w", err)
	}
	return f.ParseDataset(data, FormatFromPath(path))
}

func (f *Factory) ParseDataset(data []byte, format Format) (Dataset, error) {
	var dj DatasetJSON
	if err := Decode(data, format, &dj); err != nil {
		return Dataset{}, err
	}
	return f.Dataset(dj)
}

// Dataset converts every record, collecting per-record errors instead of
// stopping at the first. Only a missing tenant fails the whole file.
func (f *Factory) Dataset(dj DatasetJSON) (Dataset, error) {
	ff := &Factory{Tenant: f.Tenant}
	if ff.Tenant == "" {
		ff.Tenant = commission.TenantID(strings.TrimSpace(dj.Tenant))
	}
	if ff.Tenant == "" {
		return Dataset{}, invalid("dataset", "tenant", "required")
	}

	ds := Dataset{Tenant: ff.Tenant, Name: dj.Name, Description: dj.Description}
	reject := func(err error) { ds.Rejected = append(ds.Rejected, err) }

	tiers := make(map[commission.TierID]commission.Tier, len(dj.Tiers))
	for _, tj := range dj.Tiers {
		t, err := ff.Tier(tj)
		if err != nil {
			reject(err)
			continue
		}
		if _, dup := tiers[t.ID]; dup {
			reject(invalid("tier "+tj.ID, "id", "duplicate"))
			continue
		}
		tiers[t.ID] = t
		ds.Tiers = append(ds.Tiers, t)
	}

	seenSources := make(map[commission.SourceID]bool, len(dj.Sources))
	for _, sj := range dj.Sources {
		s, err := ff.Source(sj, tiers)
		if err != nil {
			reject(err)
			continue
		}
		if seenSources[s.ID] {
			reject(invalid("source "+sj.ID, "id", "duplicate"))
			continue
		}
		seenSources[s.ID] = true
		ds.Sources = append(ds.Sources, s)
	}

	seenGrids := make(map[commission.GridID]bool)
	addGrid := func(g commission.Grid) {
		if seenGrids[g.ID] {
			reject(invalid("grid "+string(g.ID), "id", "duplicate"))
			return
		}
		seenGrids[g.ID] = true
		ds.Grids = append(ds.Grids, g)
	}
	for _, tj := range dj.GridTables {
		grids, errs := ff.GridTable(tj)
		for _, err := range errs {
			reject(err)
		}
		for _, g := range grids {
			addGrid(g)
		}
	}
	for _, gj := range dj.Grids {
		g, err := ff.Grid(gj)
		if err != nil {
			reject(err)
			continue
		}
		addGrid(g)
	}

	seenPolicies := make(map[commission.PolicyID]bool, len(dj.Policies))
	for _, pj := range dj.Policies {
		p, err := ff.Policy(pj)
		if err != nil {
			reject(err)
			continue
		}
		if seenPolicies[p.ID] {
			reject(invalid("policy "+pj.ID, "id", "duplicate"))
			continue
		}
		seenPolicies[p.ID] = true
		ds.Policies = append(ds.Policies, p)
	}

	return ds, nil
}
