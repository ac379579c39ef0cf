package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/meridianlabs/visibility-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS audits (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	company    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS result_rows (
	id         TEXT PRIMARY KEY,
	audit_id   TEXT NOT NULL REFERENCES audits(id),
	company_id TEXT NOT NULL,
	category   TEXT NOT NULL,
	provider   TEXT NOT NULL,
	model      TEXT NOT NULL,
	prompt     TEXT NOT NULL,
	run_index  INTEGER NOT NULL,
	mentioned  INTEGER NOT NULL DEFAULT 0,
	mentions   TEXT,
	sentiment  TEXT,
	answer     TEXT NOT NULL,
	sources    TEXT NOT NULL DEFAULT '',
	error      TEXT,
	error_kind TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_audits_status ON audits(status);
CREATE INDEX IF NOT EXISTS idx_audits_company_id ON audits(company_id);
CREATE INDEX IF NOT EXISTS idx_result_rows_audit_id ON result_rows(audit_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateAudit(ctx context.Context, company model.Company) (*model.Audit, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	companyJSON, err := json.Marshal(company)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal company")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audits (id, company_id, company, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, company.ID, string(companyJSON), string(model.AuditStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert audit")
	}

	return &model.Audit{
		ID:        id,
		Company:   company,
		Status:    model.AuditStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteAudit(ctx context.Context, auditID string, summary model.AuditSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE audits SET summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(summaryJSON), string(model.AuditStatusComplete), time.Now().UTC(), auditID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete audit %s", auditID)
	}
	return checkRowsAffected(res, "audit", auditID)
}

func (s *SQLiteStore) FailAudit(ctx context.Context, auditID string, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE audits SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.AuditStatusFailed), reason, time.Now().UTC(), auditID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail audit %s", auditID)
	}
	return checkRowsAffected(res, "audit", auditID)
}

func (s *SQLiteStore) GetAudit(ctx context.Context, auditID string) (*model.Audit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company, status, summary, error, created_at, updated_at FROM audits WHERE id = ?`,
		auditID,
	)
	return scanAudit(row)
}

func (s *SQLiteStore) ListAudits(ctx context.Context, filter AuditFilter) ([]model.Audit, error) {
	query := `SELECT id, company, status, summary, error, created_at, updated_at FROM audits WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.CompanyID != "" {
		query += ` AND company_id = ?`
		args = append(args, filter.CompanyID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audits")
	}
	defer rows.Close()

	var audits []model.Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		audits = append(audits, *a)
	}
	return audits, eris.Wrap(rows.Err(), "sqlite: list audits iterate")
}

func (s *SQLiteStore) InsertRows(ctx context.Context, auditID string, resultRows []model.ResultRow) error {
	if len(resultRows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert rows")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO result_rows (id, audit_id, company_id, category, provider, model, prompt, run_index, mentioned, mentions, sentiment, answer, sources, error, error_kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert row")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range resultRows {
		mentionsJSON, err := marshalMentions(r.Mentions)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			uuid.New().String(), auditID, r.CompanyID, string(r.Category), r.Provider, r.Model, r.Prompt,
			r.RunIndex, r.Mentioned, mentionsJSON, string(r.Sentiment), r.Answer, r.Sources,
			r.Error, r.ErrorKind, now,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert result row")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert rows")
}

func (s *SQLiteStore) ListRows(ctx context.Context, auditID string) ([]model.ResultRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT company_id, category, provider, model, prompt, run_index, mentioned, mentions, sentiment, answer, sources, error, error_kind
		 FROM result_rows WHERE audit_id = ? ORDER BY category, provider, prompt, run_index`,
		auditID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rows")
	}
	defer rows.Close()

	var out []model.ResultRow
	for rows.Next() {
		r, err := scanResultRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list rows iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAudit(row scannable) (*model.Audit, error) {
	var a model.Audit
	var companyJSON string
	var summaryJSON, errText sql.NullString

	err := row.Scan(&a.ID, &companyJSON, &a.Status, &summaryJSON, &errText, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("audit not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan audit")
	}

	if err := json.Unmarshal([]byte(companyJSON), &a.Company); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal company")
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		a.Summary = &model.AuditSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), a.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	a.Error = errText.String
	return &a, nil
}

func scanResultRow(row scannable) (*model.ResultRow, error) {
	var r model.ResultRow
	var mentionsJSON, sentiment, errText, errKind sql.NullString

	err := row.Scan(&r.CompanyID, &r.Category, &r.Provider, &r.Model, &r.Prompt, &r.RunIndex,
		&r.Mentioned, &mentionsJSON, &sentiment, &r.Answer, &r.Sources, &errText, &errKind)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan result row")
	}

	if mentionsJSON.Valid && mentionsJSON.String != "" {
		if err := json.Unmarshal([]byte(mentionsJSON.String), &r.Mentions); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal mentions")
		}
	}
	r.Sentiment = model.Sentiment(sentiment.String)
	r.Error = errText.String
	r.ErrorKind = errKind.String
	return &r, nil
}

func marshalMentions(mentions []model.BrandMention) (string, error) {
	if len(mentions) == 0 {
		return "", nil
	}
	b, err := json.Marshal(mentions)
	if err != nil {
		return "", eris.Wrap(err, "marshal mentions")
	}
	return string(b), nil
}
