package commission

import "slices"

// Filter selects a subset of policies for a run. The zero Filter selects all.
type Filter struct {
	PolicyIDs   []PolicyID `json:"policy_ids,omitempty"`
	ProductType string     `json:"product_type,omitempty"`
	Provider    string     `json:"provider,omitempty"`
	SourceType  SourceType `json:"source_type,omitempty"`
}

func (f Filter) IsZero() bool {
	return len(f.PolicyIDs) == 0 && f.ProductType == "" && f.Provider == "" && f.SourceType == ""
}

// Match reports whether p passes every set criterion.
func (f Filter) Match(p Policy) bool {
	if len(f.PolicyIDs) > 0 && !slices.Contains(f.PolicyIDs, p.ID) {
		return false
	}
	if f.ProductType != "" && !sameKey(f.ProductType, p.ProductType) {
		return false
	}
	if f.Provider != "" && !sameKey(f.Provider, p.Provider) {
		return false
	}
	if f.SourceType != "" && f.SourceType != p.SourceType {
		return false
	}
	return true
}

// Apply returns the matching policies in their original order.
func (f Filter) Apply(policies []Policy) []Policy {
	if f.IsZero() {
		return policies
	}
	out := make([]Policy, 0, len(policies))
	for _, p := range policies {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}
