package core

import (
	"context"
	"io"

	"github.com/markdave123-py/Careerlyst/internal/models"
)

// ResearchStore defines the persistence operations for research records.
// It abstracts Postgres/SQLite so higher layers never depend on a specific DB.
type ResearchStore interface {
	GetAll(ctx context.Context, companyID string) ([]models.ResearchRecord, error)
	Upsert(ctx context.Context, record *models.ResearchRecord) error
	Invalidate(ctx context.Context, companyID string, vector models.ResearchVectorType) error
	InvalidateAll(ctx context.Context, companyID string) (int64, error)
}

// CompanyDirectory resolves the companies research is generated for.
type CompanyDirectory interface {
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	UpsertCompany(ctx context.Context, company *models.Company) error
}

// DbClient is the full database surface the app wires up.
type DbClient interface {
	ResearchStore
	CompanyDirectory
	Ping(ctx context.Context) error
	Close() error
}

// ObjectClient writes objects to S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
}

// ResearchArchive keeps a copy of every generated record outside the database.
type ResearchArchive interface {
	ArchiveRecord(ctx context.Context, companyName string, record *models.ResearchRecord) error
}
