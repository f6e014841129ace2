package documents

import (
	"time"
)

// ID tipe untuk Document
type DocumentID string

// Status enum
type Status string

const (
	StatusPending    Status = "pending"
	StatusExtracting Status = "extracting"
	StatusAnalyzed   Status = "analyzed"
	StatusFailed     Status = "failed"
)

// Aggregate Root: Document
type Document struct {
	ID         DocumentID `json:"id"`
	TenantID   string     `json:"tenant_id"`
	Filename   string     `json:"filename"`
	MimeType   string     `json:"mime_type"`
	StorageRef string     `json:"storage_ref"`
	UploadedAt time.Time  `json:"uploaded_at"`
	Status     Status     `json:"status"`
	SizeBytes  int64      `json:"size_bytes,omitempty"`
}

// TextSegment is one bounded chunk of a document's extracted text.
// Immutable once created; many per document, ordered by Ordinal.
type TextSegment struct {
	ID         string     `json:"id"`
	DocumentID DocumentID `json:"document_id"`
	Ordinal    int        `json:"ordinal"`
	Content    string     `json:"content"`
	TokenCount int        `json:"token_count"`
}
