package mysql

import (
	"context"
	"database/sql"

	domain "github.com/complianceops/riskextract/internal/domain/analysis"
)

type CandidateRepository struct {
	db *sql.DB
}

func NewCandidateRepository(db *sql.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// SaveRisks writes a job's reconciled risks; result sets are immutable so a
// rerun replaces the whole set.
func (r *CandidateRepository) SaveRisks(ctx context.Context, jobID domain.JobID, risks []*domain.RiskCandidate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM risk_candidates WHERE job_id=?;`, jobID); err != nil {
		return err
	}
	const q = `
INSERT INTO risk_candidates
(id, job_id, title, description, category, likelihood, impact, confidence, source_segment_ids)
VALUES (?,?,?,?,?,?,?,?,?);
`
	for _, c := range risks {
		if _, err := tx.ExecContext(ctx, q,
			c.ID, jobID, c.Title, c.Description, c.Category,
			c.Likelihood, c.Impact, c.Confidence, idsToJSON(c.SourceSegmentIDs),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveControls analog SaveRisks untuk controls
func (r *CandidateRepository) SaveControls(ctx context.Context, jobID domain.JobID, controls []*domain.ControlCandidate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM control_candidates WHERE job_id=?;`, jobID); err != nil {
		return err
	}
	const q = `
INSERT INTO control_candidates
(id, job_id, title, description, category, likelihood, impact, confidence, source_segment_ids, risk_ids)
VALUES (?,?,?,?,?,?,?,?,?,?);
`
	for _, c := range controls {
		if _, err := tx.ExecContext(ctx, q,
			c.ID, jobID, c.Title, c.Description, c.Category,
			c.Likelihood, c.Impact, c.Confidence,
			idsToJSON(c.SourceSegmentIDs), idsToJSON(c.RiskIDs),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRisks ordered by confidence desc (reconciler order)
func (r *CandidateRepository) ListRisks(ctx context.Context, jobID domain.JobID) ([]*domain.RiskCandidate, error) {
	const q = `
SELECT id, job_id, title, description, category, likelihood, impact, confidence, source_segment_ids
FROM risk_candidates
WHERE job_id=? ORDER BY confidence DESC, id ASC;
`
	rows, err := r.db.QueryContext(ctx, q, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RiskCandidate
	for rows.Next() {
		var c domain.RiskCandidate
		var segIDs string
		if err := rows.Scan(
			&c.ID, &c.JobID, &c.Title, &c.Description, &c.Category,
			&c.Likelihood, &c.Impact, &c.Confidence, &segIDs,
		); err != nil {
			return nil, err
		}
		c.SourceSegmentIDs = idsFromJSON(segIDs)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *CandidateRepository) ListControls(ctx context.Context, jobID domain.JobID) ([]*domain.ControlCandidate, error) {
	const q = `
SELECT id, job_id, title, description, category, likelihood, impact, confidence, source_segment_ids, risk_ids
FROM control_candidates
WHERE job_id=? ORDER BY confidence DESC, id ASC;
`
	rows, err := r.db.QueryContext(ctx, q, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ControlCandidate
	for rows.Next() {
		var c domain.ControlCandidate
		var segIDs, riskIDs string
		if err := rows.Scan(
			&c.ID, &c.JobID, &c.Title, &c.Description, &c.Category,
			&c.Likelihood, &c.Impact, &c.Confidence, &segIDs, &riskIDs,
		); err != nil {
			return nil, err
		}
		c.SourceSegmentIDs = idsFromJSON(segIDs)
		c.RiskIDs = idsFromJSON(riskIDs)
		out = append(out, &c)
	}
	return out, rows.Err()
}
