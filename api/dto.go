/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Money and rates are
  decimal strings so nothing is lost to float conversion on the way out.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Runs:
    CalculateRequest, CalculateResponse, SyncResponse, ResultDTO

  Records:
    RecordDTO

  Data entry:
    factory.GridJSON, factory.PolicyJSON, factory.SourceJSON, factory.TierJSON
    are used directly as request and response bodies.

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - factory/: Data-entry JSON schemas
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/brokerdesk/commission-engine/commission"
	"github.com/brokerdesk/commission-engine/report"
)

// =============================================================================
// RUNS
// =============================================================================

// CalculateRequest narrows a run. An empty body runs every policy.
type CalculateRequest struct {
	Filter commission.Filter `json:"filter"`
}

// ResultDTO is one policy's commission outcome.
type ResultDTO struct {
	PolicyID     string `json:"policy_id"`
	PolicyNumber string `json:"policy_number"`
	CustomerName string `json:"customer_name,omitempty"`
	ProductType  string `json:"product_type"`
	Provider     string `json:"provider"`
	Premium      string `json:"premium_amount"`
	SourceType   string `json:"source_type"`
	SourceID     string `json:"source_id,omitempty"`
	SourceName   string `json:"source_name,omitempty"`

	BaseRate   string `json:"base_rate"`
	RewardRate string `json:"reward_rate"`
	BonusRate  string `json:"bonus_rate"`
	TotalRate  string `json:"total_rate"`

	InsurerCommission           string `json:"insurer_commission"`
	AgentCommission             string `json:"agent_commission"`
	MISPCommission              string `json:"misp_commission"`
	EmployeeCommission          string `json:"employee_commission"`
	ReportingEmployeeCommission string `json:"reporting_employee_commission"`
	ReportingEmployeeID         string `json:"reporting_employee_id,omitempty"`
	BrokerShare                 string `json:"broker_share"`

	GridID       string `json:"grid_id,omitempty"`
	GridTable    string `json:"grid_table,omitempty"`
	TierID       string `json:"tier_id,omitempty"`
	OverrideUsed bool   `json:"override_used"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	CalcDate     string `json:"calc_date"`
}

// CalculateResponse is a run without persistence.
type CalculateResponse struct {
	RunID   string             `json:"run_id"`
	Summary commission.Summary `json:"summary"`
	Results []ResultDTO        `json:"results"`
}

// SyncResponse is a run followed by record upserts.
type SyncResponse struct {
	RunID   string                `json:"run_id"`
	Summary commission.Summary    `json:"summary"`
	Sync    commission.SyncReport `json:"sync"`
}

// =============================================================================
// RECORDS
// =============================================================================

type RecordDTO struct {
	ID       string    `json:"id"`
	SyncedAt string    `json:"synced_at"`
	Result   ResultDTO `json:"result"`
}

// RecordsResponse lists persisted records with their aggregate.
type RecordsResponse struct {
	Records []RecordDTO   `json:"records"`
	Report  report.Report `json:"report"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioResponse reports what a scenario seeded.
type LoadScenarioResponse struct {
	Scenario ScenarioDTO `json:"scenario"`
	Tiers    int         `json:"tiers"`
	Sources  int         `json:"sources"`
	Grids    int         `json:"grids"`
	Policies int         `json:"policies"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string {
	return d.StringFixed(commission.MinorUnits)
}

func toResultDTO(r commission.Result) ResultDTO {
	dto := ResultDTO{
		PolicyID:                    string(r.PolicyID),
		PolicyNumber:                r.PolicyNumber,
		CustomerName:                r.CustomerName,
		ProductType:                 r.ProductType,
		Provider:                    r.Provider,
		Premium:                     money(r.Premium),
		SourceType:                  string(r.SourceType),
		SourceID:                    string(r.SourceID),
		SourceName:                  r.SourceName,
		BaseRate:                    r.BaseRate.String(),
		RewardRate:                  r.RewardRate.String(),
		BonusRate:                   r.BonusRate.String(),
		TotalRate:                   r.TotalRate.String(),
		InsurerCommission:           money(r.InsurerCommission),
		AgentCommission:             money(r.AgentCommission),
		MISPCommission:              money(r.MISPCommission),
		EmployeeCommission:          money(r.EmployeeCommission),
		ReportingEmployeeCommission: money(r.ReportingEmployeeCommission),
		ReportingEmployeeID:         string(r.ReportingEmployeeID),
		BrokerShare:                 money(r.BrokerShare),
		GridID:                      string(r.GridID),
		GridTable:                   r.GridTable,
		TierID:                      string(r.TierID),
		OverrideUsed:                r.OverrideUsed,
		Status:                      string(r.Status),
		Error:                       r.Error,
	}
	if !r.CalcDate.IsZero() {
		dto.CalcDate = r.CalcDate.UTC().Format(time.RFC3339)
	}
	return dto
}

func toResultDTOs(results []commission.Result) []ResultDTO {
	dtos := make([]ResultDTO, len(results))
	for i, r := range results {
		dtos[i] = toResultDTO(r)
	}
	return dtos
}

func toRecordDTO(rec commission.Record) RecordDTO {
	return RecordDTO{
		ID:       rec.ID,
		SyncedAt: rec.SyncedAt.UTC().Format(time.RFC3339),
		Result:   toResultDTO(rec.Result),
	}
}
