package analysis

import (
	"fmt"
	"time"

	"github.com/complianceops/riskextract/internal/domain/documents"
)

// ID tipe untuk AnalysisJob
type JobID string

// State enum; transitions only move forward.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// ErrorDetail is the structured failure captured on a job. Kind is one of the
// Kind* constants; Message is human readable, never a stack trace.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Aggregate Root: AnalysisJob
type AnalysisJob struct {
	ID           JobID                `json:"id"`
	TenantID     string               `json:"tenant_id"`
	DocumentID   documents.DocumentID `json:"document_id"`
	State        State                `json:"state"`
	StartedAt    time.Time            `json:"started_at"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	ProviderUsed string               `json:"provider_used,omitempty"`
	ErrorDetail  *ErrorDetail         `json:"error_detail,omitempty"`
	RiskCount    int                  `json:"risk_count"`
	ControlCount int                  `json:"control_count"`
}

// rank untuk enforce forward-only transitions
func (s State) rank() int {
	switch s {
	case StateQueued:
		return 0
	case StateRunning:
		return 1
	case StateSucceeded, StateFailed:
		return 2
	}
	return -1
}

// Terminal reports whether the state accepts no further transitions.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Transition moves the job to next. Backward moves and moves out of a
// terminal state are rejected.
func (j *AnalysisJob) Transition(next State) error {
	if j.State.Terminal() {
		return fmt.Errorf("job %s already terminal (%s), cannot move to %s", j.ID, j.State, next)
	}
	if next.rank() <= j.State.rank() {
		return fmt.Errorf("invalid transition %s -> %s for job %s", j.State, next, j.ID)
	}
	j.State = next
	return nil
}

// CandidateKind distinguishes risks from controls in raw AI output.
type CandidateKind string

const (
	KindRisk    CandidateKind = "risk"
	KindControl CandidateKind = "control"
)

// RawCandidate is an unvalidated suggestion straight from a provider,
// prior to reconciliation.
type RawCandidate struct {
	Kind             CandidateKind `json:"kind"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Category         string        `json:"category"`
	LikelihoodHint   int           `json:"likelihood_hint"`
	ImpactHint       int           `json:"impact_hint"`
	Confidence       float64       `json:"confidence"`
	Rationale        string        `json:"rationale,omitempty"`
	LinkedRiskTitles []string      `json:"linked_risk_titles,omitempty"`

	// provenance, set by the extraction client
	SegmentID      string `json:"segment_id"`
	SegmentOrdinal int    `json:"segment_ordinal"`
}

// RiskCandidate is a reconciled, deduplicated risk ready for human review.
type RiskCandidate struct {
	ID               string   `json:"id"`
	JobID            JobID    `json:"job_id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Category         string   `json:"category"`
	Likelihood       int      `json:"likelihood"` // 1-5
	Impact           int      `json:"impact"`     // 1-5
	Confidence       float64  `json:"confidence"` // 0-100
	SourceSegmentIDs []string `json:"source_segment_ids"`
}

// ControlCandidate mirrors RiskCandidate for controls, with non-owning
// references to the risks it mitigates.
type ControlCandidate struct {
	ID               string   `json:"id"`
	JobID            JobID    `json:"job_id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Category         string   `json:"category"`
	Likelihood       int      `json:"likelihood"`
	Impact           int      `json:"impact"`
	Confidence       float64  `json:"confidence"`
	SourceSegmentIDs []string `json:"source_segment_ids"`
	RiskIDs          []string `json:"risk_ids,omitempty"`
}

// Result is the final output set of a succeeded job.
type Result struct {
	RiskCandidates    []*RiskCandidate    `json:"risk_candidates"`
	ControlCandidates []*ControlCandidate `json:"control_candidates"`
}
