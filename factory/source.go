package factory

import (
	"github.com/brokerdesk/commission-engine/commission"
)

// TierJSON is a tier with its share of insurer commission in percent.
type TierJSON struct {
	ID           string `json:"id" yaml:"id"`
	TenantID     string `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	Name         string `json:"name" yaml:"name"`
	SharePercent Number `json:"share_percent" yaml:"share_percent"`
}

// SourceJSON is an agent, MISP or employee. The tier is referenced by ID
// and joined in by Source.
type SourceJSON struct {
	ID                  string `json:"id" yaml:"id"`
	TenantID            string `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	Type                string `json:"type" yaml:"type"`
	Name                string `json:"name" yaml:"name"`
	AgentType           string `json:"agent_type,omitempty" yaml:"agent_type,omitempty"`
	TierID              string `json:"tier_id,omitempty" yaml:"tier_id,omitempty"`
	OverridePercent     Number `json:"override_percentage,omitempty" yaml:"override_percentage,omitempty"`
	ReportingEmployeeID string `json:"reporting_employee_id,omitempty" yaml:"reporting_employee_id,omitempty"`
}

func (f *Factory) Tier(tj TierJSON) (commission.Tier, error) {
	rec := "tier " + tj.ID
	if tj.ID == "" {
		return commission.Tier{}, invalid("tier", "id", "required")
	}
	tenant, err := f.tenant(rec, tj.TenantID)
	if err != nil {
		return commission.Tier{}, err
	}
	share, err := required(rec, "share_percent", tj.SharePercent)
	if err != nil {
		return commission.Tier{}, err
	}
	if share.IsNegative() {
		return commission.Tier{}, invalid(rec, "share_percent", "must not be negative")
	}
	return commission.Tier{
		ID:           commission.TierID(tj.ID),
		TenantID:     tenant,
		Name:         firstNonEmpty(tj.Name, tj.ID),
		SharePercent: share,
	}, nil
}

// Source converts one source entity, joining its tier from tiers. An
// unknown tier reference is rejected rather than silently dropped.
func (f *Factory) Source(sj SourceJSON, tiers map[commission.TierID]commission.Tier) (commission.SourceEntity, error) {
	rec := "source " + sj.ID
	if sj.ID == "" {
		return commission.SourceEntity{}, invalid("source", "id", "required")
	}
	tenant, err := f.tenant(rec, sj.TenantID)
	if err != nil {
		return commission.SourceEntity{}, err
	}
	st, err := commission.ParseSourceType(sj.Type)
	if err != nil || st == commission.SourceDirect {
		return commission.SourceEntity{}, invalid(rec, "type", "must be agent, misp or employee")
	}

	s := commission.SourceEntity{
		ID:                  commission.SourceID(sj.ID),
		TenantID:            tenant,
		Type:                st,
		Name:                firstNonEmpty(sj.Name, sj.ID),
		AgentType:           sj.AgentType,
		ReportingEmployeeID: commission.SourceID(sj.ReportingEmployeeID),
	}
	if sj.TierID != "" {
		t, ok := tiers[commission.TierID(sj.TierID)]
		if !ok {
			return commission.SourceEntity{}, invalid(rec, "tier_id", "unknown tier "+sj.TierID)
		}
		s.Tier = &t
	}
	if s.OverridePercent, err = optionalPtr(rec, "override_percentage", sj.OverridePercent); err != nil {
		return commission.SourceEntity{}, err
	}
	if err := s.Validate(); err != nil {
		return commission.SourceEntity{}, err
	}
	return s, nil
}

func TierToJSON(t commission.Tier) TierJSON {
	return TierJSON{
		ID:           string(t.ID),
		TenantID:     string(t.TenantID),
		Name:         t.Name,
		SharePercent: NumberOf(t.SharePercent),
	}
}

func SourceToJSON(s commission.SourceEntity) SourceJSON {
	sj := SourceJSON{
		ID:                  string(s.ID),
		TenantID:            string(s.TenantID),
		Type:                string(s.Type),
		Name:                s.Name,
		AgentType:           s.AgentType,
		TierID:              string(s.TierID()),
		ReportingEmployeeID: string(s.ReportingEmployeeID),
	}
	if s.OverridePercent != nil {
		sj.OverridePercent = NumberOf(*s.OverridePercent)
	}
	return sj
}
