package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/markdave123-py/Careerlyst/internal/config"
	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

type DatabaseClient struct {
	db      *sql.DB
	dialect Dialect
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	switch Dialect(cfg.StoreDriver) {
	case DialectSQLite:
		return Open(ctx, DialectSQLite, cfg.SqlitePath)
	case DialectPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is empty")
		}
		return Open(ctx, DialectPostgres, cfg.DatabaseURL)
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}

// Open connects, pings, and bootstraps the schema.
func Open(ctx context.Context, d Dialect, dsn string) (*DatabaseClient, error) {
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if d == DialectSQLite {
		db.SetMaxOpenConns(1) // SQLite: single writer
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetConnMaxIdleTime(10 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db, dialect: d}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *DatabaseClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Implementing the store interface for companies

func (c *DatabaseClient) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	q := c.dialect.rebind(`
		SELECT id, name, domain, created_at, updated_at
		FROM companies WHERE id = $1
	`)
	var co models.Company
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&co.ID, &co.Name, &co.Domain, &co.CreatedAt, &co.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrCompanyNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &co, nil
}

func (c *DatabaseClient) UpsertCompany(ctx context.Context, company *models.Company) error {
	if company == nil {
		return errors.New("nil company")
	}
	now := time.Now().UTC()
	if company.CreatedAt.IsZero() {
		company.CreatedAt = now
	}
	company.UpdatedAt = now

	q := c.dialect.rebind(`
		INSERT INTO companies (id, name, domain, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = excluded.name, domain = excluded.domain, updated_at = excluded.updated_at
	`)
	_, err := c.db.ExecContext(ctx, q,
		company.ID, company.Name, company.Domain, company.CreatedAt, company.UpdatedAt)
	return err
}

// Implementing the store interface for research records

// GetAll returns every record for the company, valid or not, in vector order.
func (c *DatabaseClient) GetAll(ctx context.Context, companyID string) ([]models.ResearchRecord, error) {
	q := c.dialect.rebind(`
		SELECT id, company_id, vector_type, generated_at, is_valid, payload
		FROM company_research
		WHERE company_id = $1
		ORDER BY vector_type ASC
	`)
	rows, err := c.db.QueryContext(ctx, q, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ResearchRecord
	for rows.Next() {
		var (
			r       models.ResearchRecord
			vector  string
			payload []byte
		)
		if err := rows.Scan(&r.ID, &r.CompanyID, &vector, &r.GeneratedAt, &r.IsValid, &payload); err != nil {
			return nil, err
		}
		r.VectorType = models.ResearchVectorType(vector)
		r.Payload = payload
		out = append(out, r)
	}
	return out, rows.Err()
}

// Upsert makes record the current valid record for its (company, vector) pair.
func (c *DatabaseClient) Upsert(ctx context.Context, record *models.ResearchRecord) error {
	if record == nil {
		return errors.New("nil research record")
	}
	if record.GeneratedAt.IsZero() {
		record.GeneratedAt = time.Now().UTC()
	}
	record.IsValid = true
	payload := string(record.Payload)
	if payload == "" {
		payload = "{}"
	}

	q := c.dialect.rebind(`
		INSERT INTO company_research (id, company_id, vector_type, generated_at, is_valid, payload)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		ON CONFLICT (company_id, vector_type) DO UPDATE
		SET id = excluded.id,
		    generated_at = excluded.generated_at,
		    is_valid = TRUE,
		    payload = excluded.payload
	`)
	_, err := c.db.ExecContext(ctx, q,
		record.ID, record.CompanyID, string(record.VectorType), record.GeneratedAt, payload)
	return err
}

// Invalidate marks the pair stale. Invalidating a pair with no record is a no-op.
func (c *DatabaseClient) Invalidate(ctx context.Context, companyID string, vector models.ResearchVectorType) error {
	q := c.dialect.rebind(`
		UPDATE company_research
		SET is_valid = FALSE
		WHERE company_id = $1 AND vector_type = $2
	`)
	_, err := c.db.ExecContext(ctx, q, companyID, string(vector))
	return err
}

func (c *DatabaseClient) InvalidateAll(ctx context.Context, companyID string) (int64, error) {
	q := c.dialect.rebind(`
		UPDATE company_research
		SET is_valid = FALSE
		WHERE company_id = $1 AND is_valid = TRUE
	`)
	res, err := c.db.ExecContext(ctx, q, companyID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
