package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/complianceops/riskextract/internal/application"
	domain "github.com/complianceops/riskextract/internal/domain/analysis"
	"github.com/complianceops/riskextract/internal/domain/documents"
	"github.com/complianceops/riskextract/internal/infra/ai/prompt"
)

// SegmentAnalyzer is the use-case port onto the AI extraction client.
type SegmentAnalyzer interface {
	AnalyzeSegment(ctx context.Context, seg *documents.TextSegment, pc prompt.Context) ([]domain.RawCandidate, string, error)
}

// Service implements the document-analysis use-cases. It is designed to be
// used concurrently and is thread-safe.
//
// Sem is the process-wide pool bounding concurrent provider calls. It is
// injected (not a package singleton) and shared across all jobs so the
// provider rate budget is global.
type Service struct {
	Docs       documents.Repository
	Segments   documents.SegmentRepository
	Store      documents.ObjectStore
	Extractor  documents.Extractor
	Jobs       domain.JobRepository
	Candidates domain.CandidateRepository
	AI         SegmentAnalyzer
	Sem        *semaphore.Weighted
	Clock      application.Clock

	JobTimeout     time.Duration
	Reconcile      domain.ReconcileOptions
	RiskCategories []string
	ControlHints   []string

	// OnStateChange, kalau diset, dipanggil tiap job pindah state (metrics).
	OnStateChange func(next domain.State)

	mu      sync.Mutex
	cancels map[domain.JobID]context.CancelFunc
}

// UploadDocument stores the raw bytes and creates the document row (pending).
func (s *Service) UploadDocument(ctx context.Context, tenant, filename, mimeType string, r io.Reader, size int64) (*documents.Document, error) {
	id := documents.DocumentID(uuid.New().String())
	key := fmt.Sprintf("%s/%s%s", tenant, id, path.Ext(filename))

	ref, err := s.Store.Put(ctx, key, r, size, mimeType)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	doc := &documents.Document{
		ID:         id,
		TenantID:   tenant,
		Filename:   filename,
		MimeType:   mimeType,
		StorageRef: ref,
		UploadedAt: s.Clock.Now(),
		Status:     documents.StatusPending,
		SizeBytes:  size,
	}
	if err := s.Docs.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument ambil 1 document by id
func (s *Service) GetDocument(ctx context.Context, tenant string, id documents.DocumentID) (*documents.Document, error) {
	return s.Docs.Get(ctx, tenant, id)
}

// LatestDocuments ambil N document terakhir
func (s *Service) LatestDocuments(ctx context.Context, tenant string, limit int) ([]*documents.Document, error) {
	return s.Docs.Latest(ctx, tenant, limit)
}

// Submit creates a queued job for the document and runs it in the background.
// Returns immediately with the job id; callers poll GetStatus.
func (s *Service) Submit(ctx context.Context, tenant string, docID documents.DocumentID) (domain.JobID, error) {
	doc, err := s.Docs.Get(ctx, tenant, docID)
	if err != nil {
		return "", err
	}

	job := &domain.AnalysisJob{
		ID:         domain.JobID(uuid.New().String()),
		TenantID:   tenant,
		DocumentID: doc.ID,
		State:      domain.StateQueued,
		StartedAt:  s.Clock.Now(),
	}
	if err := s.Jobs.Save(ctx, job); err != nil {
		return "", err
	}

	// jalankan di background sampai selesai, context sendiri + timeout job
	jobCtx, cancel := context.WithTimeout(context.Background(), s.jobTimeout())
	s.registerCancel(job.ID, cancel)
	go func() {
		defer cancel()
		defer s.unregisterCancel(job.ID)
		s.run(jobCtx, job, doc)
	}()

	return job.ID, nil
}

// GetStatus poll state of a job.
func (s *Service) GetStatus(ctx context.Context, tenant string, id domain.JobID) (*domain.AnalysisJob, error) {
	return s.Jobs.Get(ctx, tenant, id)
}

// GetResult returns the reconciled candidate sets of a succeeded job.
// Fails with domain.ErrJobNotComplete while the job has not succeeded.
func (s *Service) GetResult(ctx context.Context, tenant string, id domain.JobID) (*domain.Result, error) {
	job, err := s.Jobs.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if job.State != domain.StateSucceeded {
		return nil, fmt.Errorf("%w: job %s is %s", domain.ErrJobNotComplete, id, job.State)
	}

	risks, err := s.Candidates.ListRisks(ctx, id)
	if err != nil {
		return nil, err
	}
	controls, err := s.Candidates.ListControls(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.Result{RiskCandidates: risks, ControlCandidates: controls}, nil
}

// Cancel requests best-effort cancellation. In-flight provider calls get a
// cancelled context; their results are discarded, not awaited. Terminal jobs
// are left untouched.
func (s *Service) Cancel(ctx context.Context, tenant string, id domain.JobID) error {
	job, err := s.Jobs.Get(ctx, tenant, id)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return nil
	}
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// Latest ambil N job terakhir
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*domain.AnalysisJob, error) {
	return s.Jobs.Latest(ctx, tenant, limit)
}

// Summary rekap job N hari terakhir
func (s *Service) Summary(ctx context.Context, tenant string, sinceDays int) (map[string]any, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	since := s.Clock.Now().AddDate(0, 0, -sinceDays)
	total, succeeded, failed, risks, err := s.Jobs.Summary(ctx, tenant, since)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"total_jobs":      total,
		"succeeded":       succeeded,
		"failed":          failed,
		"risk_candidates": risks,
	}, nil
}

//
// ==== JOB EXECUTION ====
//

func (s *Service) run(ctx context.Context, job *domain.AnalysisJob, doc *documents.Document) {
	if err := s.transition(job, domain.StateRunning); err != nil {
		log.Printf("job %s: %v", job.ID, err)
		return
	}

	segs, err := s.extract(ctx, doc)
	if err != nil {
		s.fail(job, doc, err)
		return
	}

	raws, providerUsed, segErrs := s.analyzeSegments(ctx, segs)
	if ctx.Err() != nil {
		s.fail(job, doc, ctx.Err())
		return
	}
	job.ProviderUsed = providerUsed

	if len(segs) > 0 && len(segErrs) == len(segs) {
		// every segment failed; surface the strongest kind
		final := domain.ErrMalformedAIResponse
		for _, e := range segErrs {
			if errors.Is(e, domain.ErrExtractionUnavailable) {
				final = domain.ErrExtractionUnavailable
				break
			}
		}
		s.fail(job, doc, fmt.Errorf("%w: all %d segments failed", final, len(segs)))
		return
	}
	for _, e := range segErrs {
		log.Printf("job %s: segment skipped: %v", job.ID, e)
	}

	risks, controls := s.reconcile(job.ID, raws)
	bg := context.Background()
	if err := s.Candidates.SaveRisks(bg, job.ID, risks); err != nil {
		s.fail(job, doc, err)
		return
	}
	if err := s.Candidates.SaveControls(bg, job.ID, controls); err != nil {
		s.fail(job, doc, err)
		return
	}

	job.RiskCount = len(risks)
	job.ControlCount = len(controls)
	if err := s.transition(job, domain.StateSucceeded); err != nil {
		log.Printf("job %s: %v", job.ID, err)
		return
	}
	_ = s.Docs.UpdateStatus(bg, doc.TenantID, doc.ID, documents.StatusAnalyzed)
	log.Printf("job %s: succeeded risks=%d controls=%d provider=%s", job.ID, len(risks), len(controls), providerUsed)
}

// extract downloads the document and produces its segments. Idempotent:
// Replace drops any prior segments for the document.
func (s *Service) extract(ctx context.Context, doc *documents.Document) ([]*documents.TextSegment, error) {
	_ = s.Docs.UpdateStatus(ctx, doc.TenantID, doc.ID, documents.StatusExtracting)

	data, err := s.Store.Get(ctx, doc.StorageRef)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("fetch document bytes: %w", err)
	}

	segs, err := s.Extractor.Extract(ctx, doc, data)
	if err != nil {
		return nil, err
	}
	if err := s.Segments.Replace(ctx, doc.ID, segs); err != nil {
		return nil, err
	}
	return segs, nil
}

// analyzeSegments fans segments out to the AI client under the shared
// semaphore. Per-segment failures are recorded, not fatal; only context
// cancellation stops the group.
func (s *Service) analyzeSegments(ctx context.Context, segs []*documents.TextSegment) ([]domain.RawCandidate, string, map[int]error) {
	pc := prompt.Context{
		RiskCategories: s.RiskCategories,
		ControlHints:   s.ControlHints,
	}

	results := make([][]domain.RawCandidate, len(segs))
	segErrs := make(map[int]error, len(segs))
	var errMu sync.Mutex
	var providerUsed string

	g, gctx := errgroup.WithContext(ctx)
	for i, seg := range segs {
		g.Go(func() error {
			if err := s.Sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer s.Sem.Release(1)

			raws, provider, err := s.AI.AnalyzeSegment(gctx, seg, pc)
			errMu.Lock()
			defer errMu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				segErrs[i] = fmt.Errorf("segment %d: %w", seg.Ordinal, err)
				return nil
			}
			if provider != "" {
				providerUsed = provider
			}
			results[i] = raws
			return nil
		})
	}
	_ = g.Wait()

	var all []domain.RawCandidate
	for _, r := range results {
		all = append(all, r...)
	}
	return all, providerUsed, segErrs
}

// reconcile dedups raws and binds the merged output to the job, resolving
// control->risk links by merged risk title.
func (s *Service) reconcile(jobID domain.JobID, raws []domain.RawCandidate) ([]*domain.RiskCandidate, []*domain.ControlCandidate) {
	var rawRisks, rawControls []domain.RawCandidate
	for _, rc := range raws {
		if rc.Kind == domain.KindControl {
			rawControls = append(rawControls, rc)
		} else {
			rawRisks = append(rawRisks, rc)
		}
	}

	opts := s.Reconcile
	if opts.SimilarityThreshold == 0 {
		opts = domain.DefaultReconcileOptions()
	}

	riskIDByTitle := map[string]string{}
	var risks []*domain.RiskCandidate
	for _, m := range domain.Reconcile(rawRisks, opts) {
		r := &domain.RiskCandidate{
			ID:               uuid.New().String(),
			JobID:            jobID,
			Title:            m.Title,
			Description:      m.Description,
			Category:         m.Category,
			Likelihood:       m.Likelihood,
			Impact:           m.Impact,
			Confidence:       m.Confidence,
			SourceSegmentIDs: m.SourceSegmentIDs,
		}
		risks = append(risks, r)
		riskIDByTitle[normTitle(m.Title)] = r.ID
	}

	var controls []*domain.ControlCandidate
	for _, m := range domain.Reconcile(rawControls, opts) {
		c := &domain.ControlCandidate{
			ID:               uuid.New().String(),
			JobID:            jobID,
			Title:            m.Title,
			Description:      m.Description,
			Category:         m.Category,
			Likelihood:       m.Likelihood,
			Impact:           m.Impact,
			Confidence:       m.Confidence,
			SourceSegmentIDs: m.SourceSegmentIDs,
		}
		for _, lt := range m.LinkedRiskTitles {
			if id, ok := riskIDByTitle[normTitle(lt)]; ok {
				c.RiskIDs = append(c.RiskIDs, id)
			}
		}
		controls = append(controls, c)
	}
	return risks, controls
}

// fail moves the job to failed with a structured detail (kind + message,
// never a stack) and marks the document failed.
func (s *Service) fail(job *domain.AnalysisJob, doc *documents.Document, cause error) {
	kind := domain.KindOf(cause)
	msg := cause.Error()
	if kind == domain.KindCancelled {
		msg = "cancelled"
	}
	job.ErrorDetail = &domain.ErrorDetail{Kind: kind, Message: msg}
	if err := s.transition(job, domain.StateFailed); err != nil {
		log.Printf("job %s: %v", job.ID, err)
		return
	}
	_ = s.Docs.UpdateStatus(context.Background(), doc.TenantID, doc.ID, documents.StatusFailed)
	log.Printf("job %s: failed kind=%s msg=%s", job.ID, kind, msg)
}

// transition advances the state machine and persists. Status writes use
// context.Background() so a dead job context cannot block the bookkeeping.
func (s *Service) transition(job *domain.AnalysisJob, next domain.State) error {
	if err := job.Transition(next); err != nil {
		return err
	}
	if next.Terminal() {
		now := s.Clock.Now()
		job.CompletedAt = &now
	}
	if err := s.Jobs.Save(context.Background(), job); err != nil {
		return err
	}
	if s.OnStateChange != nil {
		s.OnStateChange(next)
	}
	return nil
}

func (s *Service) jobTimeout() time.Duration {
	if s.JobTimeout > 0 {
		return s.JobTimeout
	}
	return 5 * time.Minute
}

func (s *Service) registerCancel(id domain.JobID, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancels == nil {
		s.cancels = make(map[domain.JobID]context.CancelFunc)
	}
	s.cancels[id] = cancel
}

func (s *Service) unregisterCancel(id domain.JobID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)
}

// normTitle matches control links against reconciled risk titles.
func normTitle(t string) string {
	return strings.Join(strings.Fields(strings.ToLower(t)), " ")
}
