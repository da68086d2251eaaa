// Package cmd provides the CLI commands for commissionctl.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brokerdesk/commission-engine/commission"
	"github.com/brokerdesk/commission-engine/config"
	"github.com/brokerdesk/commission-engine/factory"
	"github.com/brokerdesk/commission-engine/logging"
	"github.com/brokerdesk/commission-engine/store"
)

// globals holds the persistent flags and the configuration built from them.
type globals struct {
	cfgFile string
	envFile string
	driver  string
	dbPath  string
	tenant  string
	workers int
	verbose bool

	cfg *config.Config
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd(os.Stdout).Execute()
}

// NewRootCmd builds the command tree writing results to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "commissionctl",
		Short: "Calculate and distribute insurance broker commissions",
		Long: `commissionctl runs the commission engine against the configured store
or directly against a dataset file.

Examples:
  commissionctl seed --tenant acme testdata/acme.yaml
  commissionctl calculate --tenant acme
  commissionctl calculate --dataset testdata/acme.yaml --format json
  commissionctl sync --tenant acme
  commissionctl export --tenant acme --out commissions.csv`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.init()
		},
	}
	rootCmd.SetOut(out)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.cfgFile, "config", "", "JSON config file")
	pf.StringVar(&g.envFile, "env", ".env", "dotenv file (ignored when missing)")
	pf.StringVar(&g.driver, "driver", "", "database driver (sqlite, postgres)")
	pf.StringVar(&g.dbPath, "db", "", "SQLite database path")
	pf.StringVarP(&g.tenant, "tenant", "t", "", "tenant ID")
	pf.IntVarP(&g.workers, "workers", "w", 0, "parallel calculations (default GOMAXPROCS)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(
		newCalculateCmd(g),
		newSyncCmd(g),
		newExportCmd(g),
		newSeedCmd(g),
	)
	return rootCmd
}

func (g *globals) init() error {
	cfg, err := config.Load(g.cfgFile, g.envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if g.driver != "" {
		cfg.Database.Driver = g.driver
	}
	if g.dbPath != "" {
		cfg.Database.Path = g.dbPath
	}
	if g.workers > 0 {
		cfg.Engine.Workers = g.workers
	}
	if g.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	g.cfg = cfg
	return nil
}

func (g *globals) engine() (*commission.Engine, error) {
	opts, err := g.cfg.EngineOptions()
	if err != nil {
		return nil, err
	}
	return commission.NewEngine(opts...), nil
}

func (g *globals) openStore() (store.Store, error) {
	return store.Open(g.cfg.Database)
}

func (g *globals) requireTenant() (commission.TenantID, error) {
	if g.tenant == "" {
		return "", fmt.Errorf("--tenant is required")
	}
	return commission.TenantID(g.tenant), nil
}

// loadDataset parses a dataset file, scoped to --tenant when given.
func (g *globals) loadDataset(path string) (factory.Dataset, error) {
	ds, err := factory.New(commission.TenantID(g.tenant)).LoadDataset(path)
	if err != nil {
		return factory.Dataset{}, err
	}
	for _, rej := range ds.Rejected {
		logging.Logger.Warn("dataset record rejected", zap.Error(rej))
	}
	return ds, nil
}
