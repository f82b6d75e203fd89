package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/veridoc/veridoc/internal/report"
)

// Schema for the audit store. The audit_log table is append-only: no code
// path issues UPDATE or DELETE against it.
const schema = `
CREATE TABLE IF NOT EXISTS reports (
    document_id  TEXT PRIMARY KEY,
    file_name    TEXT NOT NULL,
    analyzed_ns  INTEGER NOT NULL,
    risk_score   REAL NOT NULL,
    risk_level   TEXT NOT NULL,
    payload      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_analyzed ON reports(analyzed_ns);
CREATE INDEX IF NOT EXISTS idx_reports_level ON reports(risk_level, risk_score);

CREATE TABLE IF NOT EXISTS audit_log (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp_ns INTEGER NOT NULL,
    event        TEXT NOT NULL,
    document_id  TEXT NOT NULL,
    risk_score   REAL NOT NULL,
    duration_ns  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_document ON audit_log(document_id);
`

// SQLite is the durable audit Store.
type SQLite struct {
	db *sql.DB
}

// Open opens or creates the audit database at the given path and applies the
// schema.
func Open(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveReport persists a report exactly once. A second save for the same
// document id returns ErrDuplicate.
func (s *SQLite) SaveReport(ctx context.Context, r *report.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (document_id, file_name, analyzed_ns, risk_score, risk_level, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.DocumentID, r.FileName, r.AnalyzedAt.UnixNano(), r.Risk.OverallScore, string(r.Risk.RiskLevel), string(payload),
	)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
			return ErrDuplicate
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *SQLite) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (timestamp_ns, event, document_id, risk_score, duration_ns)
		VALUES (?, ?, ?, ?, ?)`,
		e.Timestamp.UnixNano(), e.Event, e.DocumentID, e.RiskScore, int64(e.Duration),
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *SQLite) Record(ctx context.Context, r *report.Report, e Entry) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reports (document_id, file_name, analyzed_ns, risk_score, risk_level, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.DocumentID, r.FileName, r.AnalyzedAt.UnixNano(), r.Risk.OverallScore, string(r.Risk.RiskLevel), string(payload),
	)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
			return ErrDuplicate
		}
		return fmt.Errorf("insert report: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO audit_log (timestamp_ns, event, document_id, risk_score, duration_ns)
		VALUES (?, ?, ?, ?, ?)`,
		e.Timestamp.UnixNano(), e.Event, e.DocumentID, e.RiskScore, int64(e.Duration),
	); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) Report(ctx context.Context, documentID string) (*report.Report, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM reports WHERE document_id = ?`, documentID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	var r report.Report
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

func (s *SQLite) Reports(ctx context.Context, f Filter) ([]*report.Report, error) {
	var conds []string
	var args []any
	if f.RiskLevel != "" {
		conds = append(conds, "risk_level = ?")
		args = append(args, string(f.RiskLevel))
	}
	if f.MinScore > 0 {
		conds = append(conds, "risk_score >= ?")
		args = append(args, f.MinScore)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "analyzed_ns >= ?")
		args = append(args, f.Since.UnixNano())
	}

	q := `SELECT payload FROM reports`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY analyzed_ns DESC, document_id"
	// The manual-review flag lives inside the JSON payload, so its filter
	// runs after decoding; the LIMIT must then also move out of SQL.
	if f.Limit > 0 && !f.ManualOnly {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []*report.Report
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		var r report.Report
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		if f.ManualOnly && !r.RequiresManualReview {
			continue
		}
		out = append(out, &r)
		if f.Limit > 0 && f.ManualOnly && len(out) == f.Limit {
			break
		}
	}
	return out, rows.Err()
}

func (s *SQLite) Entries(ctx context.Context, documentID string) ([]Entry, error) {
	q := `SELECT id, timestamp_ns, event, document_id, risk_score, duration_ns FROM audit_log`
	var args []any
	if documentID != "" {
		q += ` WHERE document_id = ?`
		args = append(args, documentID)
	}
	q += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts, dur int64
		if err := rows.Scan(&e.ID, &ts, &e.Event, &e.DocumentID, &e.RiskScore, &dur); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.Duration = time.Duration(dur)
		out = append(out, e)
	}
	return out, rows.Err()
}
