package documents

import (
	"context"
	"io"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, d *Document) error
	Get(ctx context.Context, tenant string, id DocumentID) (*Document, error)
	UpdateStatus(ctx context.Context, tenant string, id DocumentID, status Status) error
	Latest(ctx context.Context, tenant string, limit int) ([]*Document, error)
}

// SegmentRepository persists extracted segments. Replace is idempotent:
// prior segments for the document are dropped before the new set is written.
type SegmentRepository interface {
	Replace(ctx context.Context, docID DocumentID, segs []*TextSegment) error
	ListByDocument(ctx context.Context, docID DocumentID) ([]*TextSegment, error)
}

// ObjectStore port (interface untuk penyimpanan dokumen mentah)
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, storageRef string) ([]byte, error)
}

// Extractor port (interface untuk ekstraksi teks)
type Extractor interface {
	Extract(ctx context.Context, doc *Document, data []byte) ([]*TextSegment, error)
}
