// Package cmd - calculate command
package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/brokerdesk/commission-engine/commission"
	"github.com/brokerdesk/commission-engine/report"
)

// runFlags select the batch for calculate, sync and export.
type runFlags struct {
	dataset     string
	productType string
	provider    string
	sourceType  string
	policyIDs   []string
}

func (f *runFlags) bind(cmd *cobra.Command, withDataset bool) {
	if withDataset {
		cmd.Flags().StringVarP(&f.dataset, "dataset", "d", "", "run against a dataset file instead of the store")
	}
	cmd.Flags().StringVar(&f.productType, "product-type", "", "only policies of this product type")
	cmd.Flags().StringVar(&f.provider, "provider", "", "only policies from this provider")
	cmd.Flags().StringVar(&f.sourceType, "source-type", "", "only policies of this source type (agent, misp, employee, direct)")
	cmd.Flags().StringSliceVar(&f.policyIDs, "policy", nil, "only these policy IDs")
}

func (f *runFlags) filter() (commission.Filter, error) {
	filter := commission.Filter{ProductType: f.productType, Provider: f.provider}
	for _, id := range f.policyIDs {
		filter.PolicyIDs = append(filter.PolicyIDs, commission.PolicyID(id))
	}
	if f.sourceType != "" {
		st, err := commission.ParseSourceType(f.sourceType)
		if err != nil {
			return commission.Filter{}, err
		}
		filter.SourceType = st
	}
	return filter, nil
}

// calculate runs either the dataset file or the tenant's stored data.
func (g *globals) calculate(ctx context.Context, f *runFlags) (commission.RunResult, error) {
	filter, err := f.filter()
	if err != nil {
		return commission.RunResult{}, err
	}
	engine, err := g.engine()
	if err != nil {
		return commission.RunResult{}, err
	}

	if f.dataset != "" {
		ds, err := g.loadDataset(f.dataset)
		if err != nil {
			return commission.RunResult{}, err
		}
		in := ds.Input()
		in.Filter = filter
		return engine.Run(ctx, in), nil
	}

	tenant, err := g.requireTenant()
	if err != nil {
		return commission.RunResult{}, err
	}
	repo, err := g.openStore()
	if err != nil {
		return commission.RunResult{}, err
	}
	defer repo.Close()
	return engine.CalculateAll(ctx, repo, tenant, filter)
}

func newCalculateCmd(g *globals) *cobra.Command {
	var (
		rf      runFlags
		format  string
		groupBy string
	)

	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Calculate commissions without persisting them",
		Long: `Resolve, calculate and split commissions for a tenant's policies.
Nothing is written; use sync to persist records.

Examples:
  commissionctl calculate --tenant acme
  commissionctl calculate --dataset acme.yaml --group-by provider
  commissionctl calculate --tenant acme --source-type agent --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			by, err := report.ParseGroupBy(groupBy)
			if err != nil {
				return err
			}
			run, err := g.calculate(cmd.Context(), &rf)
			if err != nil {
				return err
			}
			rep := report.Summarize(run.Results, by)

			switch format {
			case "json":
				return writeJSONRun(cmd.OutOrStdout(), run, rep)
			case "table":
				return writeTable(cmd.OutOrStdout(), run, rep)
			}
			return fmt.Errorf("unknown format %q", format)
		},
	}
	rf.bind(cmd, true)
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json)")
	cmd.Flags().StringVar(&groupBy, "group-by", "", "group totals by product_type, provider, source_type or status")
	return cmd
}

// =============================================================================
// OUTPUT
// =============================================================================

func writeJSONRun(w io.Writer, run commission.RunResult, rep report.Report) error {
	rows := make([]map[string]string, len(run.Results))
	for i, r := range run.Results {
		row := report.Row(r)
		m := make(map[string]string, len(row)+1)
		for j, col := range report.Columns {
			m[col] = row[j]
		}
		if r.Error != "" {
			m["Error"] = r.Error
		}
		rows[i] = m
	}
	data, err := json.MarshalIndent(map[string]any{
		"summary": run.Summary,
		"report":  rep,
		"results": rows,
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeTable(w io.Writer, run commission.RunResult, rep report.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(tw, "Policy\tSource\tRate %\tInsurer\tAgent\tMISP\tEmployee\tReporting\tBroker\tStatus\t")
	for _, r := range run.Results {
		status := string(r.Status)
		if r.Error != "" {
			status += ": " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.PolicyNumber, r.SourceType, r.TotalRate,
			money(r.InsurerCommission), money(r.AgentCommission), money(r.MISPCommission),
			money(r.EmployeeCommission), money(r.ReportingEmployeeCommission), money(r.BrokerShare),
			status,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	t := rep.Totals
	fmt.Fprintf(w, "\n%d calculated, %d no grid match, %d errors\n", t.Calculated, t.NoGridMatch, t.Errors)
	fmt.Fprintf(w, "Premium %s  Insurer %s  Broker %s\n", money(t.Premium), money(t.InsurerCommission), money(t.Broker))
	for _, grp := range rep.Groups {
		fmt.Fprintf(w, "  %-20s %3d policies  insurer %s  broker %s\n",
			grp.Key, grp.Totals.Count, money(grp.Totals.InsurerCommission), money(grp.Totals.Broker))
	}
	return nil
}
