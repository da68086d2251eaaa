package factory

import (
	"strings"

	"github.com/brokerdesk/commission-engine/commission"
)

// =============================================================================
// POLICY SCHEMA
// =============================================================================

// PolicyJSON is a sold policy as it arrives from intake. Customer name is
// flattened here; the engine never walks customer joins.
type PolicyJSON struct {
	ID           string `json:"id" yaml:"id"`
	TenantID     string `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	PolicyNumber string `json:"policy_number" yaml:"policy_number"`
	ProductType  string `json:"product_type" yaml:"product_type"`
	Provider     string `json:"provider" yaml:"provider"`
	Premium      Number `json:"premium_amount" yaml:"premium_amount"`
	SourceType   string `json:"source_type" yaml:"source_type"`
	SourceID     string `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	CustomerRef  string `json:"customer_ref,omitempty" yaml:"customer_ref,omitempty"`
	CustomerName string `json:"customer_name,omitempty" yaml:"customer_name,omitempty"`
	StartDate    string `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty" yaml:"end_date,omitempty"`
}

// =============================================================================
// POLICY CONVERSION
// =============================================================================

// Policy converts and validates one policy. A missing source type means a
// direct sale.
func (f *Factory) Policy(pj PolicyJSON) (commission.Policy, error) {
	rec := "policy " + pj.ID
	if pj.ID == "" {
		return commission.Policy{}, invalid("policy", "id", "required")
	}

	tenant, err := f.tenant(rec, pj.TenantID)
	if err != nil {
		return commission.Policy{}, err
	}

	st := commission.SourceDirect
	if strings.TrimSpace(pj.SourceType) != "" {
		if st, err = commission.ParseSourceType(pj.SourceType); err != nil {
			return commission.Policy{}, invalid(rec, "source_type", err.Error())
		}
	}

	p := commission.Policy{
		ID:           commission.PolicyID(pj.ID),
		TenantID:     tenant,
		PolicyNumber: firstNonEmpty(pj.PolicyNumber, pj.ID),
		ProductType:  strings.TrimSpace(pj.ProductType),
		Provider:     strings.TrimSpace(pj.Provider),
		SourceType:   st,
		SourceID:     commission.SourceID(pj.SourceID),
		CustomerRef:  pj.CustomerRef,
		CustomerName: pj.CustomerName,
	}

	if p.Premium, err = required(rec, "premium_amount", pj.Premium); err != nil {
		return commission.Policy{}, err
	}
	if p.StartDate, err = parseDate(rec, "start_date", pj.StartDate); err != nil {
		return commission.Policy{}, err
	}
	if p.EndDate, err = parseDate(rec, "end_date", pj.EndDate); err != nil {
		return commission.Policy{}, err
	}

	if err := p.Validate(); err != nil {
		return commission.Policy{}, err
	}
	return p, nil
}

// PolicyToJSON is the inverse of Policy.
func PolicyToJSON(p commission.Policy) PolicyJSON {
	return PolicyJSON{
		ID:           string(p.ID),
		TenantID:     string(p.TenantID),
		PolicyNumber: p.PolicyNumber,
		ProductType:  p.ProductType,
		Provider:     p.Provider,
		Premium:      NumberOf(p.Premium),
		SourceType:   string(p.SourceType),
		SourceID:     string(p.SourceID),
		CustomerRef:  p.CustomerRef,
		CustomerName: p.CustomerName,
		StartDate:    formatDate(p.StartDate),
		EndDate:      formatDate(p.EndDate),
	}
}
