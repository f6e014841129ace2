package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appanalysis "github.com/complianceops/riskextract/internal/application/analysis"
	domai "github.com/complianceops/riskextract/internal/domain/ai"
	domain "github.com/complianceops/riskextract/internal/domain/analysis"
	"github.com/complianceops/riskextract/internal/domain/documents"
	"github.com/complianceops/riskextract/internal/middleware"
)

// maxUploadBytes caps multipart uploads (32 MiB).
const maxUploadBytes = 32 << 20

type Router struct {
	svc *appanalysis.Service
}

func NewRouter(svc *appanalysis.Service) http.Handler {
	r := &Router{svc: svc}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Post("/documents", r.wrap(r.handleUpload))
		rt.Get("/documents/latest", r.wrap(r.handleLatestDocuments))
		rt.Get("/documents/{id}", r.wrap(r.handleGetDocument))
		rt.Post("/documents/{id}/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/jobs/latest", r.wrap(r.handleLatestJobs))
		rt.Get("/jobs/{id}", r.wrap(r.handleGetJob))
		rt.Get("/jobs/{id}/result", r.wrap(r.handleGetResult))
		rt.Post("/jobs/{id}/cancel", r.wrap(r.handleCancel))
		rt.Get("/summary", r.wrap(r.handleSummary))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks caller errors so wrap maps them to 400.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var br badRequest
			switch {
			case errors.Is(err, sql.ErrNoRows), errors.Is(err, domain.ErrJobNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domain.ErrJobNotComplete):
				http.Error(w, "job not complete", http.StatusConflict)
			case errors.Is(err, documents.ErrUnsupportedFormat):
				http.Error(w, "unsupported document format", http.StatusUnsupportedMediaType)
			case errors.Is(err, domai.ErrQuotaExceeded):
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
			case errors.As(err, &br):
				http.Error(w, br.msg, http.StatusBadRequest)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

// POST /v1/{tenant}/documents (multipart: file, optional mime_type field)
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")

	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)
	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		return badRequest{msg: fmt.Sprintf("invalid multipart body: %v", err)}
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		return badRequest{msg: "file field is required"}
	}
	defer file.Close()

	if err := middleware.ValidateFilename(header.Filename); err != nil {
		return badRequest{msg: err.Error()}
	}

	mimeType := req.FormValue("mime_type")
	if mimeType == "" {
		mimeType = header.Header.Get("Content-Type")
	}
	if err := middleware.ValidateMimeType(mimeType); err != nil {
		return badRequest{msg: err.Error()}
	}

	doc, err := r.svc.UploadDocument(req.Context(), tenant, header.Filename, mimeType, file, header.Size)
	if err != nil {
		return err
	}
	middleware.IncrementDocuments()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(doc)
}

// GET /v1/{tenant}/documents/{id}
func (r *Router) handleGetDocument(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	doc, err := r.svc.GetDocument(req.Context(), tenant, documents.DocumentID(id))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(doc)
}

// GET /v1/{tenant}/documents/latest?limit=20
func (r *Router) handleLatestDocuments(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.LatestDocuments(req.Context(), tenant, limit)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// POST /v1/{tenant}/documents/{id}/analyze
// Fire-and-forget: balikin job id langsung, pipeline jalan di background.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	jobID, err := r.svc.Submit(req.Context(), tenant, documents.DocumentID(id))
	if err != nil {
		return err
	}
	middleware.IncrementJobs()

	resp := map[string]any{
		"job_id":   jobID,
		"state":    "queued",
		"message":  "analysis started in background",
		"queuedAt": time.Now(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(resp)
}

// GET /v1/{tenant}/jobs/{id}
func (r *Router) handleGetJob(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	job, err := r.svc.GetStatus(req.Context(), tenant, domain.JobID(id))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(job)
}

// GET /v1/{tenant}/jobs/{id}/result
func (r *Router) handleGetResult(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	result, err := r.svc.GetResult(req.Context(), tenant, domain.JobID(id))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(result)
}

// POST /v1/{tenant}/jobs/{id}/cancel
func (r *Router) handleCancel(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	if err := r.svc.Cancel(req.Context(), tenant, domain.JobID(id)); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{"id": id, "message": "cancellation requested"})
}

// GET /v1/{tenant}/jobs/latest?limit=20
func (r *Router) handleLatestJobs(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.Latest(req.Context(), tenant, limit)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	summary, err := r.svc.Summary(req.Context(), tenant, days)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(summary)
}
