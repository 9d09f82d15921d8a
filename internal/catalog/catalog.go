// Package catalog persists per-document ingestion status in PostgreSQL so
// the pipeline can be audited and failed documents re-driven. The catalog is
// bookkeeping only; the searchable corpus lives in the in-memory indices.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/attestor-labs/lexsearch/pkg/errors"
	"github.com/attestor-labs/lexsearch/pkg/postgres"
)

// Document lifecycle statuses.
const (
	StatusPending = "PENDING"
	StatusIndexed = "INDEXED"
	StatusFailed  = "FAILED"
)

// Record is one catalog row.
type Record struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	DocumentType string     `json:"document_type"`
	CaseID       string     `json:"case_id,omitempty"`
	Status       string     `json:"status"`
	FailReason   string     `json:"fail_reason,omitempty"`
	ReceivedAt   time.Time  `json:"received_at"`
	IndexedAt    *time.Time `json:"indexed_at,omitempty"`
}

// Catalog is the PostgreSQL-backed document registry.
type Catalog struct {
	client *postgres.Client
	logger *slog.Logger
}

// New creates a Catalog over an open connection pool.
func New(client *postgres.Client) *Catalog {
	return &Catalog{
		client: client,
		logger: slog.Default().With("component", "document-catalog"),
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL DEFAULT 'other',
	case_id       TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'PENDING',
	fail_reason   TEXT NOT NULL DEFAULT '',
	received_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	indexed_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status);
CREATE INDEX IF NOT EXISTS idx_documents_case_id ON documents (case_id);
`

// EnsureSchema creates the documents table if it does not exist.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.client.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensuring catalog schema: %w", err)
	}
	return nil
}

// RegisterPending upserts documents as PENDING before they enter the index
// pipeline. Re-registering an existing ID resets its status.
func (c *Catalog) RegisterPending(ctx context.Context, records []Record) error {
	return c.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO documents (id, name, document_type, case_id, status, fail_reason, received_at, indexed_at)
			VALUES ($1, $2, $3, $4, $5, '', NOW(), NULL)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				document_type = EXCLUDED.document_type,
				case_id = EXCLUDED.case_id,
				status = EXCLUDED.status,
				fail_reason = '',
				received_at = NOW(),
				indexed_at = NULL`)
		if err != nil {
			return fmt.Errorf("preparing register statement: %w", err)
		}
		defer stmt.Close()
		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx, rec.ID, rec.Name, rec.DocumentType, rec.CaseID, StatusPending); err != nil {
				return fmt.Errorf("registering document %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// MarkIndexed transitions a document to INDEXED with the indexing timestamp.
func (c *Catalog) MarkIndexed(ctx context.Context, docID string) error {
	_, err := c.client.DB.ExecContext(ctx,
		`UPDATE documents SET status = $1, fail_reason = '', indexed_at = NOW() WHERE id = $2`,
		StatusIndexed, docID)
	if err != nil {
		return fmt.Errorf("marking document %s indexed: %w", docID, err)
	}
	return nil
}

// MarkFailed transitions a document to FAILED with the skip reason.
func (c *Catalog) MarkFailed(ctx context.Context, docID, reason string) error {
	_, err := c.client.DB.ExecContext(ctx,
		`UPDATE documents SET status = $1, fail_reason = $2, indexed_at = NULL WHERE id = $3`,
		StatusFailed, reason, docID)
	if err != nil {
		return fmt.Errorf("marking document %s failed: %w", docID, err)
	}
	return nil
}

// Get returns one catalog record.
func (c *Catalog) Get(ctx context.Context, docID string) (*Record, error) {
	row := c.client.DB.QueryRowContext(ctx, `
		SELECT id, name, document_type, case_id, status, fail_reason, received_at, indexed_at
		FROM documents WHERE id = $1`, docID)
	var rec Record
	var indexedAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.Name, &rec.DocumentType, &rec.CaseID,
		&rec.Status, &rec.FailReason, &rec.ReceivedAt, &indexedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrDocumentNotFound, 404, "document %s not in catalog", docID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading catalog record %s: %w", docID, err)
	}
	if indexedAt.Valid {
		rec.IndexedAt = &indexedAt.Time
	}
	return &rec, nil
}

// ListByStatus returns up to limit records in the given status, oldest
// first. Useful for re-driving FAILED documents.
func (c *Catalog) ListByStatus(ctx context.Context, status string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := c.client.DB.QueryContext(ctx, `
		SELECT id, name, document_type, case_id, status, fail_reason, received_at, indexed_at
		FROM documents WHERE status = $1 ORDER BY received_at ASC LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("listing %s documents: %w", status, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var indexedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.DocumentType, &rec.CaseID,
			&rec.Status, &rec.FailReason, &rec.ReceivedAt, &indexedAt); err != nil {
			return nil, fmt.Errorf("scanning catalog row: %w", err)
		}
		if indexedAt.Valid {
			rec.IndexedAt = &indexedAt.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByStatus returns row counts grouped by status.
func (c *Catalog) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := c.client.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting catalog statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
