package analysis

import (
	"context"
	"time"
)

// JobRepository port (interface untuk persistence)
type JobRepository interface {
	Save(ctx context.Context, j *AnalysisJob) error
	Get(ctx context.Context, tenant string, id JobID) (*AnalysisJob, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*AnalysisJob, error)
	Summary(ctx context.Context, tenant string, since time.Time) (total, succeeded, failed, risks int, err error)
}

// CandidateRepository persists the reconciled output of a job.
type CandidateRepository interface {
	SaveRisks(ctx context.Context, jobID JobID, risks []*RiskCandidate) error
	SaveControls(ctx context.Context, jobID JobID, controls []*ControlCandidate) error
	ListRisks(ctx context.Context, jobID JobID) ([]*RiskCandidate, error)
	ListControls(ctx context.Context, jobID JobID) ([]*ControlCandidate, error)
}
