/*
Package factory converts raw grid, policy, source and tier definitions into
the typed commission structs.

PURPOSE:
  This is the loading boundary. Everything the engine reads is parsed and
  defaulted here exactly once, so resolver and calculator code never has to
  guard against missing fields or fall back to zero rates.

WHY A BOUNDARY?
  - Reward/bonus rates default to zero at parse time, not in the calculator
  - Sources are denormalized with their tier before the engine sees them
  - A malformed record is rejected on its own; the rest of the file loads

JSON SCHEMA (grid row):
  {
    "id": "motor-icici-gold",
    "table": "motor_grid",
    "product_type": "motor",
    "provider": "ICICI Lombard",
    "tier_id": "gold",
    "base_rate": "12.5",
    "reward_rate": 1,
    "effective_from": "2025-01-01"
  }

  Rates accept JSON numbers or strings. YAML uses the same field names.

USAGE:
  f := factory.New("acme-brokers")
  grid, err := f.Grid(gj)

  ds, err := factory.LoadDataset("testdata/acme.yaml")
  for _, rej := range ds.Rejected {
      log.Println(rej)
  }

SEE ALSO:
  - commission/types.go: Target types
  - factory/dataset.go: Whole-file loading
*/
package factory

import (
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/brokerdesk/commission-engine/commission"
)

// DateLayout is the canonical date format for definitions.
const DateLayout = "2006-01-02"

// =============================================================================
// NUMBER - Decimal literal accepted as JSON number or string
// =============================================================================

// Number holds a decimal literal exactly as written. The empty Number means
// the field was absent.
type Number string

// NumberOf formats d for output.
func NumberOf(d decimal.Decimal) Number {
	return Number(d.String())
}

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*n = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*n = Number(strings.TrimSpace(str))
	default:
		*n = Number(s)
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(n))
}

func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	if node.Tag == "!!null" {
		*n = ""
		return nil
	}
	*n = Number(strings.TrimSpace(node.Value))
	return nil
}

func (n Number) IsZero() bool { return n == "" }

// =============================================================================
// FACTORY
// =============================================================================

// Factory builds commission types for one tenant. Records that carry their
// own tenant_id must match it.
type Factory struct {
	Tenant commission.TenantID
}

func New(tenant commission.TenantID) *Factory {
	return &Factory{Tenant: tenant}
}

func (f *Factory) tenant(rec, raw string) (commission.TenantID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return f.Tenant, nil
	}
	if f.Tenant != "" && commission.TenantID(raw) != f.Tenant {
		return "", invalid(rec, "tenant_id", fmt.Sprintf("%q does not match %q", raw, f.Tenant))
	}
	return commission.TenantID(raw), nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func invalid(rec, field, reason string) error {
	return &commission.InvalidInputError{Record: rec, Field: field, Reason: reason}
}

// required parses a mandatory decimal.
func required(rec, field string, n Number) (decimal.Decimal, error) {
	if n.IsZero() {
		return decimal.Zero, invalid(rec, field, "required")
	}
	return optional(rec, field, n)
}

// optional parses a decimal that defaults to zero when absent.
func optional(rec, field string, n Number) (decimal.Decimal, error) {
	if n.IsZero() {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero, invalid(rec, field, fmt.Sprintf("not a number: %q", string(n)))
	}
	return d, nil
}

func optionalPtr(rec, field string, n Number) (*decimal.Decimal, error) {
	if n.IsZero() {
		return nil, nil
	}
	d, err := optional(rec, field, n)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Empty yields the zero time.
func parseDate(rec, field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, invalid(rec, field, fmt.Sprintf("not a date: %q", s))
	}
	return t, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
