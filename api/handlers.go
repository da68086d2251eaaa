/*
handlers.go - HTTP API handlers for the commission engine

PURPOSE:
  Exposes commission runs, persisted records and the thin data-entry
  surface that feeds the engine. Handlers parse the request, call the
  engine or repository, and serialize the response. No commission math
  happens here.

ENDPOINTS:
  Commissions:
    POST   /api/commissions/calculate   Run without persisting
    POST   /api/commissions/sync        Run, then upsert records
    GET    /api/commissions/records     Persisted records (+ report)
    GET    /api/commissions/export.csv  CSV projection of a fresh run

  Data entry:
    GET|POST /api/grids                 Grid rows
    POST     /api/grids/tables          A grid table (rows inherit scope)
    GET|POST /api/policies
    GET|POST /api/sources               Agents, MISPs, employees
    GET|POST /api/tiers

  Scenarios:
    GET    /api/scenarios               List demo datasets
    POST   /api/scenarios/load          Seed one for the caller's tenant

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or invalid tenant credentials
  - 404: Resource not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Tenant middleware
  - scenarios.go: Demo datasets
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brokerdesk/commission-engine/commission"
	"github.com/brokerdesk/commission-engine/factory"
	"github.com/brokerdesk/commission-engine/logging"
	"github.com/brokerdesk/commission-engine/report"
)

// maxBodyBytes bounds request bodies; grid tables are the largest.
const maxBodyBytes = 4 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Repo   commission.Repository
	Engine *commission.Engine
	Logger *zap.Logger
}

// NewHandler creates a handler over repo. A nil engine gets defaults.
func NewHandler(repo commission.Repository, engine *commission.Engine, logger *zap.Logger) *Handler {
	if engine == nil {
		engine = commission.NewEngine()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Repo: repo, Engine: engine, Logger: logger}
}

func (h *Handler) log(ctx context.Context) *zap.Logger {
	return logging.Tenant(h.Logger, string(TenantFrom(ctx)))
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Repo.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// COMMISSION RUNS
// =============================================================================

// Calculate runs the tenant's policies without persisting anything.
// POST /api/commissions/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	run, err := h.Engine.CalculateAll(ctx, h.Repo, TenantFrom(ctx), req.Filter)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to calculate commissions", err)
		return
	}

	writeJSON(w, http.StatusOK, CalculateResponse{
		RunID:   uuid.NewString(),
		Summary: run.Summary,
		Results: toResultDTOs(run.Results),
	})
}

// Sync runs the tenant's policies and upserts one record per result.
// Per-record failures are reported in the body, not as an error status.
// POST /api/commissions/sync
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	runID := uuid.NewString()
	run, rep, err := h.Engine.SyncAll(ctx, h.Repo, TenantFrom(ctx), req.Filter)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to sync commissions", err)
		return
	}

	h.log(ctx).Info("commission sync requested",
		zap.String("run_id", runID),
		zap.Int("persisted", rep.Persisted),
		zap.Int("failed", len(rep.Failures)),
	)
	writeJSON(w, http.StatusOK, SyncResponse{RunID: runID, Summary: run.Summary, Sync: rep})
}

// ListRecords returns persisted records and their aggregate.
// GET /api/commissions/records?status=&policy_id=&limit=&group_by=
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := commission.RecordFilter{
		Status:   commission.Status(q.Get("status")),
		PolicyID: commission.PolicyID(q.Get("policy_id")),
	}
	switch filter.Status {
	case "", commission.StatusCalculated, commission.StatusNoGridMatch, commission.StatusError:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status", fmt.Errorf("unknown status %q", filter.Status))
		return
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}
	groupBy, err := report.ParseGroupBy(q.Get("group_by"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group_by", err)
		return
	}

	ctx := r.Context()
	records, err := h.Repo.ListRecords(ctx, TenantFrom(ctx), filter)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to list records", err)
		return
	}

	dtos := make([]RecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, RecordsResponse{
		Records: dtos,
		Report:  report.Summarize(report.Records(records), groupBy),
	})
}

// ExportCSV streams a fresh calculation as CSV.
// GET /api/commissions/export.csv?product_type=&provider=&source_type=&policy_id=
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := queryFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	ctx := r.Context()
	run, err := h.Engine.CalculateAll(ctx, h.Repo, TenantFrom(ctx), filter)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to calculate commissions", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="commissions.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := report.WriteCSV(w, run.Results); err != nil {
		h.log(ctx).Error("csv export failed", zap.Error(err))
	}
}

func queryFilter(r *http.Request) (commission.Filter, error) {
	q := r.URL.Query()
	f := commission.Filter{
		ProductType: q.Get("product_type"),
		Provider:    q.Get("provider"),
	}
	for _, id := range q["policy_id"] {
		f.PolicyIDs = append(f.PolicyIDs, commission.PolicyID(id))
	}
	if s := q.Get("source_type"); s != "" {
		st, err := commission.ParseSourceType(s)
		if err != nil {
			return commission.Filter{}, err
		}
		f.SourceType = st
	}
	return f, nil
}

// =============================================================================
// GRIDS
// =============================================================================

// ListGrids returns the tenant's grid rows.
func (h *Handler) ListGrids(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	grids, err := h.Repo.ListGrids(ctx, TenantFrom(ctx))
	if err != nil {
		writeError(w, errorStatus(err), "Failed to list grids", err)
		return
	}
	dtos := make([]factory.GridJSON, len(grids))
	for i, g := range grids {
		dtos[i] = factory.GridToJSON(g)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateGrid upserts one grid row.
func (h *Handler) CreateGrid(w http.ResponseWriter, r *http.Request) {
	var req factory.GridJSON
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	g, err := factory.New(TenantFrom(ctx)).Grid(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid grid", err)
		return
	}
	if err := h.Repo.SaveGrid(ctx, g); err != nil {
		writeError(w, errorStatus(err), "Failed to save grid", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.GridToJSON(g))
}

// CreateGridTable upserts every valid row of a grid table. Rejected rows
// are listed and the valid ones are still saved.
func (h *Handler) CreateGridTable(w http.ResponseWriter, r *http.Request) {
	var req factory.GridTableJSON
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	grids, errs := factory.New(TenantFrom(ctx)).GridTable(req)
	if len(grids) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid grid table", errorMessages(errs))
		return
	}
	saved := make([]factory.GridJSON, 0, len(grids))
	for _, g := range grids {
		if err := h.Repo.SaveGrid(ctx, g); err != nil {
			writeError(w, errorStatus(err), "Failed to save grid "+string(g.ID), err)
			return
		}
		saved = append(saved, factory.GridToJSON(g))
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"grids":    saved,
		"rejected": errorMessages(errs),
	})
}

// =============================================================================
// POLICIES
// =============================================================================

// ListPolicies returns the tenant's policies, filtered by query parameters.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	filter, err := queryFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	ctx := r.Context()
	policies, err := h.Repo.ListPolicies(ctx, TenantFrom(ctx), filter)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to list policies", err)
		return
	}
	dtos := make([]factory.PolicyJSON, len(policies))
	for i, p := range policies {
		dtos[i] = factory.PolicyToJSON(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePolicy upserts one policy.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req factory.PolicyJSON
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	p, err := factory.New(TenantFrom(ctx)).Policy(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy", err)
		return
	}
	if err := h.Repo.SavePolicy(ctx, p); err != nil {
		writeError(w, errorStatus(err), "Failed to save policy", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.PolicyToJSON(p))
}

// =============================================================================
// SOURCES & TIERS
// =============================================================================

func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sources, err := h.Repo.ListSources(ctx, TenantFrom(ctx))
	if err != nil {
		writeError(w, errorStatus(err), "Failed to list sources", err)
		return
	}
	dtos := make([]factory.SourceJSON, len(sources))
	for i, s := range sources {
		dtos[i] = factory.SourceToJSON(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSource upserts an agent, MISP or employee. A referenced tier must
// already exist.
func (h *Handler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req factory.SourceJSON
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	tenant := TenantFrom(ctx)
	tiers, err := h.Repo.ListTiers(ctx, tenant)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to load tiers", err)
		return
	}
	byID := make(map[commission.TierID]commission.Tier, len(tiers))
	for _, t := range tiers {
		byID[t.ID] = t
	}

	s, err := factory.New(tenant).Source(req, byID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid source", err)
		return
	}
	if err := h.Repo.SaveSource(ctx, s); err != nil {
		writeError(w, errorStatus(err), "Failed to save source", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.SourceToJSON(s))
}

func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tiers, err := h.Repo.ListTiers(ctx, TenantFrom(ctx))
	if err != nil {
		writeError(w, errorStatus(err), "Failed to list tiers", err)
		return
	}
	dtos := make([]factory.TierJSON, len(tiers))
	for i, t := range tiers {
		dtos[i] = factory.TierToJSON(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateTier(w http.ResponseWriter, r *http.Request) {
	var req factory.TierJSON
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	t, err := factory.New(TenantFrom(ctx)).Tier(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tier", err)
		return
	}
	if err := h.Repo.SaveTier(ctx, t); err != nil {
		writeError(w, errorStatus(err), "Failed to save tier", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.TierToJSON(t))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err any) {
	resp := ErrorResponse{Error: message}
	switch e := err.(type) {
	case nil:
	case error:
		resp.Details = e.Error()
	default:
		resp.Details = e
	}
	writeJSON(w, status, resp)
}

func errorStatus(err error) int {
	switch {
	case commission.IsInvalidInput(err):
		return http.StatusBadRequest
	case commission.IsNotFound(err):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func errorMessages(errs []error) []string {
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

// decode reads a JSON body, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return errors.New("empty body")
	}
	return factory.Decode(data, factory.FormatJSON, v)
}

// decodeOptional is decode that accepts an empty body.
func decodeOptional(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return factory.Decode(data, factory.FormatJSON, v)
}
