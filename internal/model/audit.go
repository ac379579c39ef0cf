package model

import "time"

// AuditStatus is the lifecycle state of one audit run.
type AuditStatus string

const (
	AuditStatusRunning  AuditStatus = "running"
	AuditStatusComplete AuditStatus = "complete"
	AuditStatusFailed   AuditStatus = "failed"
)

// AuditSummary is the aggregate outcome of a completed audit.
type AuditSummary struct {
	Visibility VisibilitySummary `json:"visibility"`
	Sentiment  SentimentSummary  `json:"sentiment"`
}

// Audit is one recorded audit run of a company. Summary is nil until the run
// completes.
type Audit struct {
	ID        string        `json:"id"`
	Company   Company       `json:"company"`
	Status    AuditStatus   `json:"status"`
	Summary   *AuditSummary `json:"summary,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
