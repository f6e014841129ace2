package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/complianceops/riskextract/internal/domain/analysis"
	docs "github.com/complianceops/riskextract/internal/domain/documents"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Save(ctx context.Context, j *domain.AnalysisJob) error {
	const q = `
INSERT INTO analysis_jobs
(id, tenant_id, document_id, state, started_at, completed_at,
 provider_used, error_kind, error_message, risk_count, control_count)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
 state=EXCLUDED.state, completed_at=EXCLUDED.completed_at,
 provider_used=EXCLUDED.provider_used,
 error_kind=EXCLUDED.error_kind, error_message=EXCLUDED.error_message,
 risk_count=EXCLUDED.risk_count, control_count=EXCLUDED.control_count;
`
	started := j.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	var completed sql.NullTime
	if j.CompletedAt != nil {
		completed = sql.NullTime{Time: *j.CompletedAt, Valid: true}
	}
	var errKind, errMsg sql.NullString
	if j.ErrorDetail != nil {
		errKind = sql.NullString{String: j.ErrorDetail.Kind, Valid: true}
		errMsg = sql.NullString{String: j.ErrorDetail.Message, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, q,
		j.ID, j.TenantID, j.DocumentID, string(j.State), started, completed,
		j.ProviderUsed, errKind, errMsg, j.RiskCount, j.ControlCount,
	)
	return err
}

func (r *JobRepository) Get(ctx context.Context, tenant string, id domain.JobID) (*domain.AnalysisJob, error) {
	const q = `
SELECT id, tenant_id, document_id, state, started_at, completed_at,
       provider_used, error_kind, error_message, risk_count, control_count
FROM analysis_jobs
WHERE tenant_id=$1 AND id=$2 LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, tenant, id)
	j, err := scanJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return j, err
}

func (r *JobRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.AnalysisJob, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, document_id, state, started_at, completed_at,
       provider_used, error_kind, error_message, risk_count, control_count
FROM analysis_jobs
WHERE tenant_id=$1 ORDER BY started_at DESC LIMIT $2;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AnalysisJob
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *JobRepository) Summary(ctx context.Context, tenant string, since time.Time) (int, int, int, int, error) {
	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE state='succeeded'),
       COUNT(*) FILTER (WHERE state='failed'),
       COALESCE(SUM(risk_count),0)
FROM analysis_jobs
WHERE tenant_id=$1 AND started_at >= $2;
`
	var total, succeeded, failed, risks int
	err := r.db.QueryRowContext(ctx, q, tenant, since).Scan(&total, &succeeded, &failed, &risks)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return total, succeeded, failed, risks, nil
}

func scanJob(scan func(dest ...any) error) (*domain.AnalysisJob, error) {
	var j domain.AnalysisJob
	var docID string
	var completed sql.NullTime
	var provider, errKind, errMsg sql.NullString
	if err := scan(
		&j.ID, &j.TenantID, &docID, &j.State, &j.StartedAt, &completed,
		&provider, &errKind, &errMsg, &j.RiskCount, &j.ControlCount,
	); err != nil {
		return nil, err
	}
	j.DocumentID = docs.DocumentID(docID)
	if completed.Valid {
		t := completed.Time
		j.CompletedAt = &t
	}
	j.ProviderUsed = provider.String
	if errKind.Valid && errKind.String != "" {
		j.ErrorDetail = &domain.ErrorDetail{Kind: errKind.String, Message: errMsg.String}
	}
	return &j, nil
}
