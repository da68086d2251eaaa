// Package cmd - sync, export and seed commands
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/brokerdesk/commission-engine/commission"
	"github.com/brokerdesk/commission-engine/report"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(commission.MinorUnits)
}

func newSyncCmd(g *globals) *cobra.Command {
	var (
		rf      runFlags
		retries int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Calculate commissions and upsert the records",
		Long: `Calculate the tenant's commissions and upsert one record per policy.
Records that fail to write are retried on their own up to --retries times.

Examples:
  commissionctl sync --tenant acme
  commissionctl sync --tenant acme --policy pol-1001 --policy pol-1002`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, err := g.requireTenant()
			if err != nil {
				return err
			}
			filter, err := rf.filter()
			if err != nil {
				return err
			}
			engine, err := g.engine()
			if err != nil {
				return err
			}
			repo, err := g.openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			run, res, err := syncWithRetries(cmd.Context(), engine, repo, tenant, filter, retries)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			s := run.Summary
			fmt.Fprintf(out, "%d calculated, %d no grid match, %d errors\n", s.Calculated, s.NoGridMatch, s.Errors)
			fmt.Fprintf(out, "%d records persisted, %d skipped\n", res.persisted, len(res.skipped))
			if !res.last.OK() {
				for _, f := range res.last.Failures {
					fmt.Fprintf(out, "  failed %s: %s\n", f.PolicyID, f.Message)
				}
				return fmt.Errorf("%d records failed to sync", len(res.last.Failures))
			}
			return nil
		},
	}
	rf.bind(cmd, false)
	cmd.Flags().IntVar(&retries, "retries", 2, "retry attempts for records that failed to write")
	return cmd
}

// syncOutcome totals every attempt of a retried sync. last is the final
// attempt's report; its Failures are what remains unwritten.
type syncOutcome struct {
	persisted int
	skipped   []commission.PolicyID
	last      commission.SyncReport
}

// syncWithRetries syncs the batch, then re-runs only the failed policies up
// to retries more times.
func syncWithRetries(ctx context.Context, engine *commission.Engine, repo commission.Repository, tenant commission.TenantID, filter commission.Filter, retries int) (commission.RunResult, syncOutcome, error) {
	run, rep, err := engine.SyncAll(ctx, repo, tenant, filter)
	if err != nil {
		return commission.RunResult{}, syncOutcome{}, err
	}
	res := syncOutcome{persisted: rep.Persisted, skipped: rep.Skipped, last: rep}

	for attempt := 0; attempt < retries && !res.last.OK(); attempt++ {
		retry := filter
		retry.PolicyIDs = res.last.FailedIDs()
		_, rep, err = engine.SyncAll(ctx, repo, tenant, retry)
		if err != nil {
			return commission.RunResult{}, syncOutcome{}, err
		}
		res.persisted += rep.Persisted
		res.skipped = append(res.skipped, rep.Skipped...)
		res.last = rep
	}
	return run, res, nil
}

func newExportCmd(g *globals) *cobra.Command {
	var (
		rf      runFlags
		outPath string
		stored  bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export commissions as CSV",
		Long: `Write the CSV projection of a fresh calculation, or of the persisted
records with --stored.

Examples:
  commissionctl export --tenant acme --out commissions.csv
  commissionctl export --dataset acme.yaml
  commissionctl export --tenant acme --stored`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []commission.Result
			if stored {
				tenant, err := g.requireTenant()
				if err != nil {
					return err
				}
				repo, err := g.openStore()
				if err != nil {
					return err
				}
				defer repo.Close()
				records, err := repo.ListRecords(cmd.Context(), tenant, commission.RecordFilter{})
				if err != nil {
					return err
				}
				results = report.Records(records)
			} else {
				run, err := g.calculate(cmd.Context(), &rf)
				if err != nil {
					return err
				}
				results = run.Results
			}

			if outPath == "" || outPath == "-" {
				return report.WriteCSV(cmd.OutOrStdout(), results)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := report.WriteCSV(f, results); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	rf.bind(cmd, true)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&stored, "stored", false, "export persisted records instead of recalculating")
	return cmd
}

func newSeedCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <dataset>",
		Short: "Load a dataset file into the store",
		Long: `Upsert the tiers, sources, grids and policies of a JSON or YAML dataset
file. Records that fail validation are reported and skipped.

Examples:
  commissionctl seed acme.yaml
  commissionctl seed --tenant acme --db commissions.db policies.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := g.loadDataset(args[0])
			if err != nil {
				return err
			}
			repo, err := g.openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := ds.Seed(cmd.Context(), repo); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seeded tenant %s: %d tiers, %d sources, %d grids, %d policies\n",
				ds.Tenant, len(ds.Tiers), len(ds.Sources), len(ds.Grids), len(ds.Policies))
			if len(ds.Rejected) > 0 {
				msgs := make([]string, len(ds.Rejected))
				for i, e := range ds.Rejected {
					msgs[i] = e.Error()
				}
				fmt.Fprintf(out, "%d rejected:\n  %s\n", len(ds.Rejected), strings.Join(msgs, "\n  "))
			}
			return nil
		},
	}
}
