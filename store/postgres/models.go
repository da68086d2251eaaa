package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/brokerdesk/commission-engine/commission"
)

// =============================================================================
// TABLE MODELS
// =============================================================================

// Rates and premiums use unconstrained numeric so they round-trip exactly as
// entered. Commission amounts are already rounded to minor units.

type tierModel struct {
	TenantID     string          `gorm:"primaryKey;size:64"`
	ID           string          `gorm:"primaryKey;size:128"`
	Name         string          `gorm:"size:255;not null"`
	SharePercent decimal.Decimal `gorm:"type:numeric;not null"`
	UpdatedAt    time.Time
}

func (tierModel) TableName() string { return "tiers" }

type sourceModel struct {
	TenantID            string              `gorm:"primaryKey;size:64"`
	ID                  string              `gorm:"primaryKey;size:128"`
	Type                string              `gorm:"size:16;not null"`
	Name                string              `gorm:"size:255;not null"`
	AgentType           string              `gorm:"size:64"`
	TierID              string              `gorm:"size:128"`
	OverridePercent     decimal.NullDecimal `gorm:"type:numeric"`
	ReportingEmployeeID string              `gorm:"size:128"`
	UpdatedAt           time.Time
}

func (sourceModel) TableName() string { return "source_entities" }

type gridModel struct {
	TenantID      string          `gorm:"primaryKey;size:64"`
	ID            string          `gorm:"primaryKey;size:128"`
	GridTable     string          `gorm:"size:128"`
	ProductType   string          `gorm:"size:64;not null;index:idx_grids_tenant_product"`
	Provider      string          `gorm:"size:255"`
	TierID        string          `gorm:"size:128"`
	AgentType     string          `gorm:"size:64"`
	BaseRate      decimal.Decimal `gorm:"type:numeric;not null"`
	RewardRate    decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	BonusRate     decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
	UpdatedAt     time.Time
}

func (gridModel) TableName() string { return "grids" }

type policyModel struct {
	TenantID      string          `gorm:"primaryKey;size:64"`
	ID            string          `gorm:"primaryKey;size:128"`
	PolicyNumber  string          `gorm:"size:128;not null"`
	ProductType   string          `gorm:"size:64;not null"`
	Provider      string          `gorm:"size:255;not null"`
	PremiumAmount decimal.Decimal `gorm:"type:numeric;not null"`
	SourceType    string          `gorm:"size:16;not null"`
	SourceID      string          `gorm:"size:128"`
	CustomerRef   string          `gorm:"size:128"`
	CustomerName  string          `gorm:"size:255"`
	StartDate     *time.Time
	EndDate       *time.Time
	UpdatedAt     time.Time
}

func (policyModel) TableName() string { return "policies" }

type recordModel struct {
	ID                          string          `gorm:"primaryKey;size:36"`
	TenantID                    string          `gorm:"size:64;not null;uniqueIndex:idx_commission_records_policy,priority:1;index:idx_commission_records_status,priority:1"`
	PolicyID                    string          `gorm:"size:128;not null;uniqueIndex:idx_commission_records_policy,priority:2"`
	PolicyNumber                string          `gorm:"size:128;not null"`
	CustomerName                string          `gorm:"size:255"`
	ProductType                 string          `gorm:"size:64;not null"`
	Provider                    string          `gorm:"size:255;not null"`
	PremiumAmount               decimal.Decimal `gorm:"type:numeric;not null"`
	SourceType                  string          `gorm:"size:16;not null"`
	SourceID                    string          `gorm:"size:128"`
	SourceName                  string          `gorm:"size:255"`
	BaseRate                    decimal.Decimal `gorm:"type:numeric;not null"`
	RewardRate                  decimal.Decimal `gorm:"type:numeric;not null"`
	BonusRate                   decimal.Decimal `gorm:"type:numeric;not null"`
	TotalRate                   decimal.Decimal `gorm:"type:numeric;not null"`
	InsurerCommission           decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	AgentCommission             decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	MISPCommission              decimal.Decimal `gorm:"column:misp_commission;type:numeric(18,2);not null"`
	EmployeeCommission          decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	ReportingEmployeeCommission decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	ReportingEmployeeID         string          `gorm:"size:128"`
	BrokerShare                 decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	GridID                      string          `gorm:"size:128"`
	GridTable                   string          `gorm:"size:128"`
	TierID                      string          `gorm:"size:128"`
	OverrideUsed                bool            `gorm:"not null;default:false"`
	Status                      string          `gorm:"size:32;not null;index:idx_commission_records_status,priority:2"`
	Error                       string          `gorm:"type:text"`
	CalcDate                    time.Time       `gorm:"not null"`
	SyncedAt                    time.Time       `gorm:"not null"`
}

func (recordModel) TableName() string { return "commission_records" }

// =============================================================================
// MAPPING
// =============================================================================

func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func toTierModel(t commission.Tier) tierModel {
	return tierModel{
		TenantID:     string(t.TenantID),
		ID:           string(t.ID),
		Name:         t.Name,
		SharePercent: t.SharePercent,
	}
}

func (m tierModel) toTier() commission.Tier {
	return commission.Tier{
		ID:           commission.TierID(m.ID),
		TenantID:     commission.TenantID(m.TenantID),
		Name:         m.Name,
		SharePercent: m.SharePercent,
	}
}

func toSourceModel(s commission.SourceEntity) sourceModel {
	m := sourceModel{
		TenantID:            string(s.TenantID),
		ID:                  string(s.ID),
		Type:                string(s.Type),
		Name:                s.Name,
		AgentType:           s.AgentType,
		TierID:              string(s.TierID()),
		ReportingEmployeeID: string(s.ReportingEmployeeID),
	}
	if s.OverridePercent != nil {
		m.OverridePercent = decimal.NewNullDecimal(*s.OverridePercent)
	}
	return m
}

// toSource maps a row, joining tier when the reference resolved.
func (m sourceModel) toSource(tier *tierModel) commission.SourceEntity {
	s := commission.SourceEntity{
		ID:                  commission.SourceID(m.ID),
		TenantID:            commission.TenantID(m.TenantID),
		Type:                commission.SourceType(m.Type),
		Name:                m.Name,
		AgentType:           m.AgentType,
		ReportingEmployeeID: commission.SourceID(m.ReportingEmployeeID),
	}
	if m.OverridePercent.Valid {
		pct := m.OverridePercent.Decimal
		s.OverridePercent = &pct
	}
	if tier != nil {
		t := tier.toTier()
		s.Tier = &t
	}
	return s
}

func toGridModel(g commission.Grid) gridModel {
	m := gridModel{
		TenantID:      string(g.TenantID),
		ID:            string(g.ID),
		GridTable:     g.Table,
		ProductType:   g.ProductType,
		Provider:      g.Provider,
		TierID:        string(g.TierID),
		AgentType:     g.AgentType,
		BaseRate:      g.BaseRate,
		RewardRate:    g.RewardRate,
		BonusRate:     g.BonusRate,
		EffectiveFrom: optTime(g.EffectiveFrom),
	}
	if g.EffectiveTo != nil {
		m.EffectiveTo = optTime(*g.EffectiveTo)
	}
	return m
}

func (m gridModel) toGrid() commission.Grid {
	g := commission.Grid{
		ID:            commission.GridID(m.ID),
		Table:         m.GridTable,
		TenantID:      commission.TenantID(m.TenantID),
		ProductType:   m.ProductType,
		Provider:      m.Provider,
		TierID:        commission.TierID(m.TierID),
		AgentType:     m.AgentType,
		BaseRate:      m.BaseRate,
		RewardRate:    m.RewardRate,
		BonusRate:     m.BonusRate,
		EffectiveFrom: derefTime(m.EffectiveFrom),
	}
	if m.EffectiveTo != nil {
		to := m.EffectiveTo.UTC()
		g.EffectiveTo = &to
	}
	return g
}

func toPolicyModel(p commission.Policy) policyModel {
	return policyModel{
		TenantID:      string(p.TenantID),
		ID:            string(p.ID),
		PolicyNumber:  p.PolicyNumber,
		ProductType:   p.ProductType,
		Provider:      p.Provider,
		PremiumAmount: p.Premium,
		SourceType:    string(p.SourceType),
		SourceID:      string(p.SourceID),
		CustomerRef:   p.CustomerRef,
		CustomerName:  p.CustomerName,
		StartDate:     optTime(p.StartDate),
		EndDate:       optTime(p.EndDate),
	}
}

func (m policyModel) toPolicy() commission.Policy {
	return commission.Policy{
		ID:           commission.PolicyID(m.ID),
		TenantID:     commission.TenantID(m.TenantID),
		PolicyNumber: m.PolicyNumber,
		ProductType:  m.ProductType,
		Provider:     m.Provider,
		Premium:      m.PremiumAmount,
		SourceType:   commission.SourceType(m.SourceType),
		SourceID:     commission.SourceID(m.SourceID),
		CustomerRef:  m.CustomerRef,
		CustomerName: m.CustomerName,
		StartDate:    derefTime(m.StartDate),
		EndDate:      derefTime(m.EndDate),
	}
}

func toRecordModel(rec commission.Record) recordModel {
	r := rec.Result
	return recordModel{
		ID:                          rec.ID,
		TenantID:                    string(r.TenantID),
		PolicyID:                    string(r.PolicyID),
		PolicyNumber:                r.PolicyNumber,
		CustomerName:                r.CustomerName,
		ProductType:                 r.ProductType,
		Provider:                    r.Provider,
		PremiumAmount:               r.Premium,
		SourceType:                  string(r.SourceType),
		SourceID:                    string(r.SourceID),
		SourceName:                  r.SourceName,
		BaseRate:                    r.BaseRate,
		RewardRate:                  r.RewardRate,
		BonusRate:                   r.BonusRate,
		TotalRate:                   r.TotalRate,
		InsurerCommission:           r.InsurerCommission,
		AgentCommission:             r.AgentCommission,
		MISPCommission:              r.MISPCommission,
		EmployeeCommission:          r.EmployeeCommission,
		ReportingEmployeeCommission: r.ReportingEmployeeCommission,
		ReportingEmployeeID:         string(r.ReportingEmployeeID),
		BrokerShare:                 r.BrokerShare,
		GridID:                      string(r.GridID),
		GridTable:                   r.GridTable,
		TierID:                      string(r.TierID),
		OverrideUsed:                r.OverrideUsed,
		Status:                      string(r.Status),
		Error:                       r.Error,
		CalcDate:                    r.CalcDate.UTC(),
		SyncedAt:                    rec.SyncedAt.UTC(),
	}
}

func (m recordModel) toRecord() commission.Record {
	return commission.Record{
		ID: m.ID,
		Result: commission.Result{
			PolicyID:                    commission.PolicyID(m.PolicyID),
			TenantID:                    commission.TenantID(m.TenantID),
			PolicyNumber:                m.PolicyNumber,
			CustomerName:                m.CustomerName,
			ProductType:                 m.ProductType,
			Provider:                    m.Provider,
			Premium:                     m.PremiumAmount,
			SourceType:                  commission.SourceType(m.SourceType),
			SourceID:                    commission.SourceID(m.SourceID),
			SourceName:                  m.SourceName,
			BaseRate:                    m.BaseRate,
			RewardRate:                  m.RewardRate,
			BonusRate:                   m.BonusRate,
			TotalRate:                   m.TotalRate,
			InsurerCommission:           m.InsurerCommission,
			AgentCommission:             m.AgentCommission,
			MISPCommission:              m.MISPCommission,
			EmployeeCommission:          m.EmployeeCommission,
			ReportingEmployeeCommission: m.ReportingEmployeeCommission,
			ReportingEmployeeID:         commission.SourceID(m.ReportingEmployeeID),
			BrokerShare:                 m.BrokerShare,
			GridID:                      commission.GridID(m.GridID),
			GridTable:                   m.GridTable,
			TierID:                      commission.TierID(m.TierID),
			OverrideUsed:                m.OverrideUsed,
			Status:                      commission.Status(m.Status),
			Error:                       m.Error,
			CalcDate:                    m.CalcDate.UTC(),
		},
		SyncedAt: m.SyncedAt.UTC(),
	}
}
