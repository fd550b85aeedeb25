package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/clearinghouse-cli/internal/core/domain"
	"github.com/custodia-labs/clearinghouse-cli/internal/core/ports/driven"
)

// recordStore implements driven.RecordStore.
type recordStore struct {
	store *Store
}

var _ driven.RecordStore = (*recordStore)(nil)

// Begin opens the transaction that scopes one case's ingestion. Every upsert
// and archived payload inside it becomes visible on Commit or not at all.
func (s *recordStore) Begin(ctx context.Context) (driven.IngestTx, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &ingestTx{tx: tx}, nil
}

// GetCase retrieves a case by ID.
func (s *recordStore) GetCase(ctx context.Context, id string) (*domain.Case, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, court, state, status, last_checked, documents_url, dockets_url, metadata
		FROM cases WHERE id = ?
	`, id)

	var c domain.Case
	var court, state, status, documentsURL, docketsURL sql.NullString
	var lastChecked sql.NullTime
	var metadataJSON sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &court, &state, &status,
		&lastChecked, &documentsURL, &docketsURL, &metadataJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning case: %w", err)
	}

	c.Court = court.String
	c.State = state.String
	c.Status = status.String
	c.DocumentsURL = documentsURL.String
	c.DocketsURL = docketsURL.String
	if lastChecked.Valid {
		t := lastChecked.Time.UTC()
		c.LastChecked = &t
	}
	if err := unmarshalMetadata(metadataJSON, &c.Metadata); err != nil {
		return nil, err
	}

	return &c, nil
}

// ListDockets returns the dockets of a case.
func (s *recordStore) ListDockets(ctx context.Context, caseID string) ([]domain.Docket, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, case_id, docket_number, court, state, is_main, metadata
		FROM dockets WHERE case_id = ?
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("querying dockets: %w", err)
	}
	defer rows.Close()

	var dockets []domain.Docket //nolint:prealloc // size unknown from query
	for rows.Next() {
		var d domain.Docket
		var docketNumber, court, state sql.NullString
		var metadataJSON sql.NullString
		if err := rows.Scan(&d.ID, &d.CaseID, &docketNumber, &court, &state,
			&d.IsMain, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning docket: %w", err)
		}
		d.DocketNumber = docketNumber.String
		d.Court = court.String
		d.State = state.String
		if err := unmarshalMetadata(metadataJSON, &d.Metadata); err != nil {
			return nil, err
		}
		dockets = append(dockets, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dockets: %w", err)
	}

	return dockets, nil
}

// ListDocuments returns the documents of a case.
func (s *recordStore) ListDocuments(ctx context.Context, caseID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, case_id, docket_id, title, document_type, filed_date, court,
		       external_url, text_url, has_text, text, summary, metadata
		FROM documents WHERE case_id = ?
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// DeleteCase removes a case. Dockets and documents cascade.
func (s *recordStore) DeleteCase(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM cases WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting case: %w", err)
	}
	return nil
}

// DeleteDocket removes a docket. Documents keep their case link; their docket
// link is nullified.
func (s *recordStore) DeleteDocket(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM dockets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting docket: %w", err)
	}
	return nil
}

// ==================== Ingest Transaction ====================

// ingestTx implements driven.IngestTx on top of a *sql.Tx.
type ingestTx struct {
	tx   *sql.Tx
	done bool
}

var _ driven.IngestTx = (*ingestTx)(nil)

// UpsertCase stores or updates a case, merging by primary key.
func (t *ingestTx) UpsertCase(ctx context.Context, c domain.Case) error {
	metadataJSON, err := marshalMetadata(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling case metadata: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO cases (id, name, court, state, status, last_checked, documents_url, dockets_url, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			court = excluded.court,
			state = excluded.state,
			status = excluded.status,
			last_checked = excluded.last_checked,
			documents_url = excluded.documents_url,
			dockets_url = excluded.dockets_url,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, c.ID, c.Name, c.Court, c.State, c.Status, nullTimePtr(c.LastChecked),
		c.DocumentsURL, c.DocketsURL, metadataJSON, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("upserting case: %w", err)
	}
	return nil
}

// UpsertDocket stores or updates a docket, merging by primary key.
func (t *ingestTx) UpsertDocket(ctx context.Context, d domain.Docket) error {
	metadataJSON, err := marshalMetadata(d.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling docket metadata: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO dockets (id, case_id, docket_number, court, state, is_main, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			case_id = excluded.case_id,
			docket_number = excluded.docket_number,
			court = excluded.court,
			state = excluded.state,
			is_main = excluded.is_main,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, d.ID, d.CaseID, d.DocketNumber, d.Court, d.State, d.IsMain,
		metadataJSON, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("upserting docket: %w", err)
	}
	return nil
}

// UpsertDocument stores or updates a document, merging by primary key.
func (t *ingestTx) UpsertDocument(ctx context.Context, d domain.Document) error {
	metadataJSON, err := marshalMetadata(d.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling document metadata: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO documents (id, case_id, docket_id, title, document_type, filed_date, court,
			external_url, text_url, has_text, text, summary, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			case_id = excluded.case_id,
			docket_id = excluded.docket_id,
			title = excluded.title,
			document_type = excluded.document_type,
			filed_date = excluded.filed_date,
			court = excluded.court,
			external_url = excluded.external_url,
			text_url = excluded.text_url,
			has_text = excluded.has_text,
			text = excluded.text,
			summary = excluded.summary,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, d.ID, d.CaseID, nullStringPtr(d.DocketID), d.Title, d.Type,
		nullTimePtr(d.FiledDate), d.Court, d.ExternalURL, d.TextURL,
		d.HasText, d.Text, d.Summary, metadataJSON, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}
	return nil
}

// ArchivePayload appends a raw payload row unless this exact payload version
// is already archived for the resource.
func (t *ingestTx) ArchivePayload(ctx context.Context, p domain.RawPayload) error {
	var exists int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM raw_payloads
		WHERE resource_type = ? AND resource_id = ? AND payload_sha256 = ?
	`, string(p.ResourceType), p.ResourceID, p.SHA256).Scan(&exists)
	if err != nil {
		return fmt.Errorf("probing raw payload: %w", err)
	}
	if exists > 0 {
		return nil // Same payload version already archived
	}

	payloadJSON, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO raw_payloads (run_id, source, resource_type, resource_id, case_id, docket_id, payload_sha256, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.RunID, p.Source, string(p.ResourceType), p.ResourceID,
		nullString(p.CaseID), nullStringPtr(p.DocketID), p.SHA256, string(payloadJSON))

	if err != nil {
		return fmt.Errorf("archiving raw payload: %w", err)
	}
	return nil
}

// Commit makes all writes in this transaction visible atomically.
func (t *ingestTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rollback discards all writes. A no-op after Commit, so it can be deferred.
func (t *ingestTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

// ==================== Helper Functions ====================

// scanDocumentRows scans a document from *sql.Rows.
func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	var doc domain.Document
	var docketID sql.NullString
	var docType, court, externalURL, textURL, text, summary sql.NullString
	var filedDate sql.NullTime
	var metadataJSON sql.NullString

	if err := rows.Scan(&doc.ID, &doc.CaseID, &docketID, &doc.Title, &docType,
		&filedDate, &court, &externalURL, &textURL, &doc.HasText,
		&text, &summary, &metadataJSON); err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	if docketID.Valid {
		doc.DocketID = &docketID.String
	}
	doc.Type = docType.String
	doc.Court = court.String
	doc.ExternalURL = externalURL.String
	doc.TextURL = textURL.String
	doc.Text = text.String
	doc.Summary = summary.String
	if filedDate.Valid {
		t := filedDate.Time.UTC()
		doc.FiledDate = &t
	}
	if err := unmarshalMetadata(metadataJSON, &doc.Metadata); err != nil {
		return nil, err
	}

	return &doc, nil
}

// marshalMetadata serializes a metadata map, mapping nil to JSON null.
func marshalMetadata(m map[string]any) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalMetadata deserializes a metadata column when present.
func unmarshalMetadata(col sql.NullString, dst *map[string]any) error {
	if !col.Valid || col.String == "" || col.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(col.String), dst); err != nil {
		return fmt.Errorf("unmarshaling metadata: %w", err)
	}
	return nil
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullStringPtr maps a nil pointer to SQL NULL.
func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullTimePtr maps a nil pointer to SQL NULL, normalizing to UTC.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
