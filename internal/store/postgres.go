package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/meridianlabs/visibility-cli/internal/db"
	"github.com/meridianlabs/visibility-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_audit":   `INSERT INTO audits (id, company_id, company, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"complete_audit": `UPDATE audits SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"fail_audit":     `UPDATE audits SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
	"get_audit":      `SELECT id, company, status, summary, error, created_at, updated_at FROM audits WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests pass a pgxmock pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS audits (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id TEXT NOT NULL,
	company    JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS result_rows (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	audit_id   TEXT NOT NULL REFERENCES audits(id),
	company_id TEXT NOT NULL,
	category   TEXT NOT NULL,
	provider   TEXT NOT NULL,
	model      TEXT NOT NULL,
	prompt     TEXT NOT NULL,
	run_index  INTEGER NOT NULL,
	mentioned  BOOLEAN NOT NULL DEFAULT false,
	mentions   JSONB,
	sentiment  TEXT,
	answer     TEXT NOT NULL,
	sources    TEXT NOT NULL DEFAULT '',
	error      TEXT,
	error_kind TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audits_status ON audits(status);
CREATE INDEX IF NOT EXISTS idx_audits_company_id ON audits(company_id);
CREATE INDEX IF NOT EXISTS idx_result_rows_audit_id ON result_rows(audit_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateAudit(ctx context.Context, company model.Company) (*model.Audit, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	companyJSON, err := json.Marshal(company)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal company")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audits (id, company_id, company, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, company.ID, companyJSON, string(model.AuditStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert audit")
	}

	return &model.Audit{
		ID:        id,
		Company:   company,
		Status:    model.AuditStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteAudit(ctx context.Context, auditID string, summary model.AuditSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE audits SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
		summaryJSON, string(model.AuditStatusComplete), time.Now().UTC(), auditID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete audit %s", auditID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("audit not found: %s", auditID)
	}
	return nil
}

func (s *PostgresStore) FailAudit(ctx context.Context, auditID string, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE audits SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.AuditStatusFailed), reason, time.Now().UTC(), auditID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail audit %s", auditID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("audit not found: %s", auditID)
	}
	return nil
}

func (s *PostgresStore) GetAudit(ctx context.Context, auditID string) (*model.Audit, error) {
	var a model.Audit
	var companyJSON []byte
	var summaryJSON []byte
	var errText *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, company, status, summary, error, created_at, updated_at FROM audits WHERE id = $1`,
		auditID,
	).Scan(&a.ID, &companyJSON, &a.Status, &summaryJSON, &errText, &a.CreatedAt, &a.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.New("audit not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get audit")
	}

	if err := json.Unmarshal(companyJSON, &a.Company); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal company")
	}
	if len(summaryJSON) > 0 {
		a.Summary = &model.AuditSummary{}
		if err := json.Unmarshal(summaryJSON, a.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	if errText != nil {
		a.Error = *errText
	}
	return &a, nil
}

func (s *PostgresStore) ListAudits(ctx context.Context, filter AuditFilter) ([]model.Audit, error) {
	query := `SELECT id, company, status, summary, error, created_at, updated_at FROM audits WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.CompanyID != "" {
		query += ` AND company_id = ` + arg(filter.CompanyID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audits")
	}
	defer rows.Close()

	var audits []model.Audit
	for rows.Next() {
		var a model.Audit
		var companyJSON, summaryJSON []byte
		var errText *string
		if err := rows.Scan(&a.ID, &companyJSON, &a.Status, &summaryJSON, &errText, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit")
		}
		if err := json.Unmarshal(companyJSON, &a.Company); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal company")
		}
		if len(summaryJSON) > 0 {
			a.Summary = &model.AuditSummary{}
			if err := json.Unmarshal(summaryJSON, a.Summary); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal summary")
			}
		}
		if errText != nil {
			a.Error = *errText
		}
		audits = append(audits, a)
	}
	return audits, eris.Wrap(rows.Err(), "postgres: list audits iterate")
}

var resultRowColumns = []string{
	"id", "audit_id", "company_id", "category", "provider", "model", "prompt",
	"run_index", "mentioned", "mentions", "sentiment", "answer", "sources",
	"error", "error_kind", "created_at",
}

func (s *PostgresStore) InsertRows(ctx context.Context, auditID string, resultRows []model.ResultRow) error {
	if len(resultRows) == 0 {
		return nil
	}

	now := time.Now().UTC()
	copyRows := make([][]any, 0, len(resultRows))
	for _, r := range resultRows {
		var mentionsJSON []byte
		if len(r.Mentions) > 0 {
			b, err := json.Marshal(r.Mentions)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal mentions")
			}
			mentionsJSON = b
		}
		copyRows = append(copyRows, []any{
			uuid.New().String(), auditID, r.CompanyID, string(r.Category), r.Provider, r.Model,
			r.Prompt, r.RunIndex, r.Mentioned, mentionsJSON, string(r.Sentiment), r.Answer,
			r.Sources, r.Error, r.ErrorKind, now,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "result_rows", resultRowColumns, copyRows)
	return err
}

func (s *PostgresStore) ListRows(ctx context.Context, auditID string) ([]model.ResultRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT company_id, category, provider, model, prompt, run_index, mentioned, mentions, sentiment, answer, sources, error, error_kind
		 FROM result_rows WHERE audit_id = $1 ORDER BY category, provider, prompt, run_index`,
		auditID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rows")
	}
	defer rows.Close()

	var out []model.ResultRow
	for rows.Next() {
		var r model.ResultRow
		var mentionsJSON []byte
		var sentiment, errText, errKind *string
		err := rows.Scan(&r.CompanyID, &r.Category, &r.Provider, &r.Model, &r.Prompt, &r.RunIndex,
			&r.Mentioned, &mentionsJSON, &sentiment, &r.Answer, &r.Sources, &errText, &errKind)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan result row")
		}
		if len(mentionsJSON) > 0 {
			if err := json.Unmarshal(mentionsJSON, &r.Mentions); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal mentions")
			}
		}
		if sentiment != nil {
			r.Sentiment = model.Sentiment(*sentiment)
		}
		if errText != nil {
			r.Error = *errText
		}
		if errKind != nil {
			r.ErrorKind = *errKind
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list rows iterate")
}
