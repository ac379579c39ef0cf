// Package store persists audit runs and their result rows. Two drivers:
// SQLite for local single-user work, Postgres for shared deployments.
package store

import (
	"context"

	"github.com/meridianlabs/visibility-cli/internal/model"
)

// AuditFilter specifies criteria for listing audits.
type AuditFilter struct {
	Status    model.AuditStatus `json:"status,omitempty"`
	CompanyID string            `json:"company_id,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	Offset    int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for audit runs.
type Store interface {
	// Audits
	CreateAudit(ctx context.Context, company model.Company) (*model.Audit, error)
	CompleteAudit(ctx context.Context, auditID string, summary model.AuditSummary) error
	FailAudit(ctx context.Context, auditID string, reason string) error
	GetAudit(ctx context.Context, auditID string) (*model.Audit, error)
	ListAudits(ctx context.Context, filter AuditFilter) ([]model.Audit, error)

	// Result rows
	InsertRows(ctx context.Context, auditID string, rows []model.ResultRow) error
	ListRows(ctx context.Context, auditID string) ([]model.ResultRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
