/*
scenarios.go - Demo broker datasets for testing and demonstrations

PURPOSE:
  Provides pre-built datasets that populate the caller's tenant with
  realistic broker data: tiers, selling entities, grid tables and sold
  policies. Each scenario demonstrates specific engine behaviour.

AVAILABLE SCENARIOS:
  motor-agents:      Tiered agents on motor grids, one with an override
  employee-network:  Employees with reporting managers, a MISP dealer
  mixed-book:        Every source type, a direct sale and a no-match policy

HOW SCENARIOS WORK:
  1. Build the scenario's factory.DatasetJSON
  2. Convert it for the caller's tenant (factory.Dataset)
  3. Upsert tiers, sources, grids, policies (Dataset.Seed)

  Seeding is an upsert, so loading a scenario twice is harmless. Records
  already synced are untouched until the next sync.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "mixed-book"}

ADDING NEW SCENARIOS:
  Add an entry to 'scenarios' with its dataset builder.

SEE ALSO:
  - factory/dataset.go: Dataset schema and Seed
  - handlers.go: Other endpoints
*/
package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/brokerdesk/commission-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	dataset func() factory.DatasetJSON
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "motor-agents",
			Name:        "Motor Agents",
			Description: "Gold and silver agents selling motor policies; one agent on a fixed override",
		},
		dataset: motorAgentsDataset,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "employee-network",
			Name:        "Employee Network",
			Description: "In-house employees with reporting managers plus a MISP dealer",
		},
		dataset: employeeNetworkDataset,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "mixed-book",
			Name:        "Mixed Book",
			Description: "Agent, MISP, employee and direct sales with a product that has no grid",
		},
		dataset: mixedBookDataset,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario seeds a scenario into the caller's tenant.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	sc, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	ds, err := factory.New(TenantFrom(ctx)).Dataset(sc.dataset())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build scenario", err)
		return
	}
	if len(ds.Rejected) > 0 {
		writeError(w, http.StatusInternalServerError, "Scenario has invalid records", errorMessages(ds.Rejected))
		return
	}
	if err := ds.Seed(ctx, h.Repo); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.log(ctx).Info("scenario loaded", zap.String("scenario", sc.ID))
	writeJSON(w, http.StatusOK, LoadScenarioResponse{
		Scenario: sc.ScenarioDTO,
		Tiers:    len(ds.Tiers),
		Sources:  len(ds.Sources),
		Grids:    len(ds.Grids),
		Policies: len(ds.Policies),
	})
}

// =============================================================================
// DATASETS
// =============================================================================

func standardTiers() []factory.TierJSON {
	return []factory.TierJSON{
		{ID: "gold", Name: "Gold", SharePercent: "70"},
		{ID: "silver", Name: "Silver", SharePercent: "60"},
		{ID: "staff", Name: "Staff", SharePercent: "50"},
	}
}

func motorGridTables() []factory.GridTableJSON {
	return []factory.GridTableJSON{
		{
			Name:          "motor_standard",
			ProductType:   "motor",
			EffectiveFrom: "2024-01-01",
			Rows: []factory.GridJSON{
				{BaseRate: "10", RewardRate: "1.5", BonusRate: "0.5"},
			},
		},
		{
			Name:          "motor_icici",
			ProductType:   "motor",
			Provider:      "ICICI Lombard",
			EffectiveFrom: "2024-01-01",
			Rows: []factory.GridJSON{
				{BaseRate: "12", RewardRate: "2", BonusRate: "1"},
				{TierID: "gold", BaseRate: "13", RewardRate: "2", BonusRate: "1"},
			},
		},
	}
}

func motorAgentsDataset() factory.DatasetJSON {
	return factory.DatasetJSON{
		Name:        "Motor Agents",
		Description: "Tiered agents selling motor policies",
		Tiers:       standardTiers(),
		Sources: []factory.SourceJSON{
			{ID: "agt-ravi", Type: "agent", Name: "Ravi Kumar", TierID: "gold"},
			{ID: "agt-meena", Type: "agent", Name: "Meena Shah", TierID: "silver", AgentType: "posp"},
			{ID: "agt-arjun", Type: "agent", Name: "Arjun Rao", TierID: "silver", OverridePercent: "8"},
		},
		GridTables: motorGridTables(),
		Policies: []factory.PolicyJSON{
			{ID: "pol-1001", PolicyNumber: "MOT-1001", ProductType: "motor", Provider: "ICICI Lombard", Premium: "25000", SourceType: "agent", SourceID: "agt-ravi", CustomerName: "Anita Desai", StartDate: "2025-04-01"},
			{ID: "pol-1002", PolicyNumber: "MOT-1002", ProductType: "motor", Provider: "HDFC Ergo", Premium: "18000", SourceType: "agent", SourceID: "agt-meena", CustomerName: "Vikram Singh", StartDate: "2025-04-03"},
			{ID: "pol-1003", PolicyNumber: "MOT-1003", ProductType: "motor", Provider: "ICICI Lombard", Premium: "40000", SourceType: "agent", SourceID: "agt-arjun", CustomerName: "Kavya Nair", StartDate: "2025-04-05"},
		},
	}
}

func employeeNetworkDataset() factory.DatasetJSON {
	return factory.DatasetJSON{
		Name:        "Employee Network",
		Description: "Employees with reporting managers plus a MISP dealer",
		Tiers:       standardTiers(),
		Sources: []factory.SourceJSON{
			{ID: "emp-head", Type: "employee", Name: "Sunita Iyer", TierID: "staff"},
			{ID: "emp-priya", Type: "employee", Name: "Priya Menon", TierID: "staff", ReportingEmployeeID: "emp-head"},
			{ID: "emp-karan", Type: "employee", Name: "Karan Patel", ReportingEmployeeID: "emp-head"},
			{ID: "misp-autohub", Type: "misp", Name: "AutoHub Motors", TierID: "silver"},
		},
		GridTables: motorGridTables(),
		Grids: []factory.GridJSON{
			{ID: "health-star", Table: "health_standard", ProductType: "health", Provider: "Star Health", BaseRate: "15", EffectiveFrom: "2024-01-01"},
		},
		Policies: []factory.PolicyJSON{
			{ID: "pol-2001", PolicyNumber: "HLT-2001", ProductType: "health", Provider: "Star Health", Premium: "30000", SourceType: "employee", SourceID: "emp-priya", CustomerName: "Rahul Gupta", StartDate: "2025-05-10"},
			{ID: "pol-2002", PolicyNumber: "MOT-2002", ProductType: "motor", Provider: "HDFC Ergo", Premium: "12000", SourceType: "employee", SourceID: "emp-karan", CustomerName: "Neha Joshi", StartDate: "2025-05-12"},
			{ID: "pol-2003", PolicyNumber: "MOT-2003", ProductType: "motor", Provider: "ICICI Lombard", Premium: "22000", SourceType: "misp", SourceID: "misp-autohub", CustomerName: "Farhan Ali", StartDate: "2025-05-15"},
		},
	}
}

func mixedBookDataset() factory.DatasetJSON {
	ds := motorAgentsDataset()
	emp := employeeNetworkDataset()

	ds.Name = "Mixed Book"
	ds.Description = "Every source type, a direct sale and a product with no grid"
	ds.Sources = append(ds.Sources, emp.Sources...)
	ds.Grids = emp.Grids
	ds.Policies = append(ds.Policies, emp.Policies...)
	ds.Policies = append(ds.Policies,
		factory.PolicyJSON{ID: "pol-3001", PolicyNumber: "MOT-3001", ProductType: "motor", Provider: "Bajaj Allianz", Premium: "15000", SourceType: "direct", CustomerName: "Walk-in Customer", StartDate: "2025-06-01"},
		factory.PolicyJSON{ID: "pol-3002", PolicyNumber: "TRV-3002", ProductType: "travel", Provider: "Tata AIG", Premium: "4000", SourceType: "agent", SourceID: "agt-ravi", CustomerName: "Ishaan Bose", StartDate: "2025-06-02"},
	)
	return ds
}
