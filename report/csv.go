package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/brokerdesk/commission-engine/commission"
)

// Columns is the export header, in order.
var Columns = []string{
	"Policy Number",
	"Customer",
	"Product Type",
	"Provider",
	"Premium",
	"Source Type",
	"Source Name",
	"Commission Rate %",
	"Insurer Commission",
	"Agent Commission",
	"MISP Commission",
	"Employee Commission",
	"Broker Share",
	"Status",
	"Grid Table",
}

// WriteCSV writes one row per result in input order. The employee column
// includes the reporting employee's slice so the row still adds up to the
// insurer commission.
func WriteCSV(w io.Writer, results []commission.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range results {
		if err := cw.Write(Row(r)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.PolicyID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Row is the export projection of one result.
func Row(r commission.Result) []string {
	return []string{
		r.PolicyNumber,
		r.CustomerName,
		r.ProductType,
		r.Provider,
		money(r.Premium),
		string(r.SourceType),
		r.SourceName,
		r.TotalRate.String(),
		money(r.InsurerCommission),
		money(r.AgentCommission),
		money(r.MISPCommission),
		money(r.EmployeeCommission.Add(r.ReportingEmployeeCommission)),
		money(r.BrokerShare),
		string(r.Status),
		r.GridTable,
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(commission.MinorUnits)
}
