/*
Package report projects commission results for people: grouped totals for
the back office and the CSV export.

PURPOSE:
  Reports consume engine output; they never recompute it. Status counting
  goes through commission.StatusCounts, the same tally commission.Summarize
  uses, so error results are counted but contribute nothing to money totals.

USAGE:
  rep := report.Summarize(run.Results, report.ByProvider)
  for _, g := range rep.Groups {
      fmt.Println(g.Key, g.Totals.InsurerCommission)
  }

  report.WriteCSV(w, run.Results)

SEE ALSO:
  - commission/engine.go: Summary used in API responses
  - report/csv.go: Export columns
*/
package report

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/brokerdesk/commission-engine/commission"
)

// GroupBy selects the grouping key.
type GroupBy string

const (
	NoGrouping    GroupBy = ""
	ByProductType GroupBy = "product_type"
	ByProvider    GroupBy = "provider"
	BySourceType  GroupBy = "source_type"
	ByStatus      GroupBy = "status"
)

// ParseGroupBy validates a grouping name from a query string or flag.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(s); g {
	case NoGrouping, ByProductType, ByProvider, BySourceType, ByStatus:
		return g, nil
	}
	return "", fmt.Errorf("unknown grouping %q", s)
}

// Totals aggregates money per party plus status counts.
type Totals struct {
	Count int `json:"count"`
	commission.StatusCounts
	Premium           decimal.Decimal `json:"premium"`
	InsurerCommission decimal.Decimal `json:"insurer_commission"`
	Agent             decimal.Decimal `json:"agent_commission"`
	MISP              decimal.Decimal `json:"misp_commission"`
	Employee          decimal.Decimal `json:"employee_commission"`
	ReportingEmployee decimal.Decimal `json:"reporting_employee_commission"`
	Broker            decimal.Decimal `json:"broker_share"`
}

func newTotals() Totals {
	return Totals{
		Premium:           decimal.Zero,
		InsurerCommission: decimal.Zero,
		Agent:             decimal.Zero,
		MISP:              decimal.Zero,
		Employee:          decimal.Zero,
		ReportingEmployee: decimal.Zero,
		Broker:            decimal.Zero,
	}
}

func (t *Totals) add(r commission.Result) {
	t.Count++
	if !t.Tally(r) {
		return
	}
	t.Premium = t.Premium.Add(r.Premium)
	t.InsurerCommission = t.InsurerCommission.Add(r.InsurerCommission)
	t.Agent = t.Agent.Add(r.AgentCommission)
	t.MISP = t.MISP.Add(r.MISPCommission)
	t.Employee = t.Employee.Add(r.EmployeeCommission)
	t.ReportingEmployee = t.ReportingEmployee.Add(r.ReportingEmployeeCommission)
	t.Broker = t.Broker.Add(r.BrokerShare)
}

type Group struct {
	Key    string `json:"key"`
	Totals Totals `json:"totals"`
}

// Report is the overall totals plus per-group totals sorted by key.
type Report struct {
	GroupBy GroupBy `json:"group_by,omitempty"`
	Totals  Totals  `json:"totals"`
	Groups  []Group `json:"groups,omitempty"`
}

// Summarize aggregates results. With NoGrouping, Groups is empty.
func Summarize(results []commission.Result, by GroupBy) Report {
	rep := Report{GroupBy: by, Totals: newTotals()}
	groups := make(map[string]*Totals)

	for _, r := range results {
		rep.Totals.add(r)
		if by == NoGrouping {
			continue
		}
		k := key(r, by)
		g, ok := groups[k]
		if !ok {
			t := newTotals()
			g = &t
			groups[k] = g
		}
		g.add(r)
	}

	for k, t := range groups {
		rep.Groups = append(rep.Groups, Group{Key: k, Totals: *t})
	}
	sort.Slice(rep.Groups, func(i, j int) bool { return rep.Groups[i].Key < rep.Groups[j].Key })
	return rep
}

func key(r commission.Result, by GroupBy) string {
	switch by {
	case ByProductType:
		return r.ProductType
	case ByProvider:
		return r.Provider
	case BySourceType:
		return string(r.SourceType)
	case ByStatus:
		return string(r.Status)
	}
	return ""
}

// Records unwraps persisted records for reporting.
func Records(records []commission.Record) []commission.Result {
	out := make([]commission.Result, len(records))
	for i, rec := range records {
		out[i] = rec.Result
	}
	return out
}
