package objectclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

// ResearchArchive writes each generated record to object storage as a JSON document.
// Objects are never overwritten, so the bucket keeps the full history per vector.
type ResearchArchive struct {
	objects core.ObjectClient
	bucket  string
}

var _ core.ResearchArchive = (*ResearchArchive)(nil)

func NewResearchArchive(objects core.ObjectClient, bucket string) (*ResearchArchive, error) {
	if objects == nil {
		return nil, errors.New("object client is nil")
	}
	if bucket == "" {
		return nil, errors.New("ARCHIVE_BUCKET not set")
	}
	return &ResearchArchive{objects: objects, bucket: bucket}, nil
}

type archivedRecord struct {
	CompanyName string `json:"companyName"`
	*models.ResearchRecord
}

// ArchiveKey is the object key for a record: companies/{id}/research/{vector}/{generatedAt}.json
func ArchiveKey(record *models.ResearchRecord) string {
	return fmt.Sprintf("companies/%s/research/%s/%s.json",
		record.CompanyID, record.VectorType, record.GeneratedAt.UTC().Format("20060102T150405.000000000Z"))
}

func (a *ResearchArchive) ArchiveRecord(ctx context.Context, companyName string, record *models.ResearchRecord) error {
	if record == nil {
		return errors.New("nil research record")
	}
	body, err := json.Marshal(archivedRecord{CompanyName: companyName, ResearchRecord: record})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := a.objects.UploadFile(ctx, a.bucket, ArchiveKey(record), bytes.NewReader(body), "application/json"); err != nil {
		return fmt.Errorf("archive %s/%s: %w", record.CompanyID, record.VectorType, err)
	}
	return nil
}
