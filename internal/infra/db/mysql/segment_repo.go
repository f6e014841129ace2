package mysql

import (
	"context"
	"database/sql"

	domain "github.com/complianceops/riskextract/internal/domain/documents"
)

type SegmentRepository struct {
	db *sql.DB
}

func NewSegmentRepository(db *sql.DB) *SegmentRepository {
	return &SegmentRepository{db: db}
}

// Replace drops prior segments for the document and writes the new set in one
// transaction, so re-extraction stays idempotent.
func (r *SegmentRepository) Replace(ctx context.Context, docID domain.DocumentID, segs []*domain.TextSegment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM text_segments WHERE document_id=?;`, docID); err != nil {
		return err
	}

	const q = `
INSERT INTO text_segments (id, document_id, ordinal, content, token_count)
VALUES (?,?,?,?,?);
`
	for _, s := range segs {
		if _, err := tx.ExecContext(ctx, q, s.ID, docID, s.Ordinal, s.Content, s.TokenCount); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListByDocument segments urut ordinal
func (r *SegmentRepository) ListByDocument(ctx context.Context, docID domain.DocumentID) ([]*domain.TextSegment, error) {
	const q = `
SELECT id, document_id, ordinal, content, token_count
FROM text_segments
WHERE document_id=? ORDER BY ordinal ASC;
`
	rows, err := r.db.QueryContext(ctx, q, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.TextSegment
	for rows.Next() {
		var s domain.TextSegment
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.Ordinal, &s.Content, &s.TokenCount); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
