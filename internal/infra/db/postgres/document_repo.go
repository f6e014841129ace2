package postgres

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/complianceops/riskextract/internal/domain/documents"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Save(ctx context.Context, d *domain.Document) error {
	const q = `
INSERT INTO documents
(id, tenant_id, filename, mime_type, storage_ref, uploaded_at, status, size_bytes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
 status=EXCLUDED.status, storage_ref=EXCLUDED.storage_ref, size_bytes=EXCLUDED.size_bytes;
`
	uploaded := d.UploadedAt
	if uploaded.IsZero() {
		uploaded = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		d.ID, d.TenantID, d.Filename, d.MimeType, d.StorageRef, uploaded, string(d.Status), d.SizeBytes,
	)
	return err
}

func (r *DocumentRepository) Get(ctx context.Context, tenant string, id domain.DocumentID) (*domain.Document, error) {
	const q = `
SELECT id, tenant_id, filename, mime_type, storage_ref, uploaded_at, status, size_bytes
FROM documents
WHERE tenant_id=$1 AND id=$2 LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, tenant, id)

	var d domain.Document
	if err := row.Scan(
		&d.ID, &d.TenantID, &d.Filename, &d.MimeType, &d.StorageRef, &d.UploadedAt, &d.Status, &d.SizeBytes,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, tenant string, id domain.DocumentID, status domain.Status) error {
	const q = `UPDATE documents SET status=$1 WHERE tenant_id=$2 AND id=$3;`
	_, err := r.db.ExecContext(ctx, q, string(status), tenant, id)
	return err
}

func (r *DocumentRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, filename, mime_type, storage_ref, uploaded_at, status, size_bytes
FROM documents
WHERE tenant_id=$1 ORDER BY uploaded_at DESC LIMIT $2;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(
			&d.ID, &d.TenantID, &d.Filename, &d.MimeType, &d.StorageRef, &d.UploadedAt, &d.Status, &d.SizeBytes,
		); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
