package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/subcat/internal/model"
)

var ErrJobNotFound = errors.New("job not found")

// Repository persists job runs in the database.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// SaveJob inserts a pending record for job. Saving a job ID again resets
// the record, so a redelivered message starts from pending.
func (r *Repository) SaveJob(ctx context.Context, job model.Job) error {
	query := `
		INSERT INTO jobs (id, filename, dir, format, image_count, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET output_path = '', status = EXCLUDED.status, message = ''
    `

	_, err := r.db.ExecContext(
		ctx, query, job.ID, job.OutputName(), job.Dir, job.Format.String(), len(job.Images), model.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("save: failed to save job: %w", err)
	}

	return nil
}

// GetJob retrieves a job record by ID.
func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (model.JobRecord, error) {
	query := `
		SELECT filename, dir, format, image_count, output_path, status, message, created_at
		FROM jobs
		WHERE id = $1
    `

	var rec model.JobRecord

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.Filename, &rec.Dir, &rec.Format, &rec.ImageCount,
		&rec.OutputPath, &rec.Status, &rec.Message, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.JobRecord{}, ErrJobNotFound
		}

		return model.JobRecord{}, fmt.Errorf("get: failed to get job: %w", err)
	}

	rec.ID = id

	return rec, nil
}

// UpdateJob sets the outcome of a job run.
func (r *Repository) UpdateJob(ctx context.Context, id uuid.UUID, outputPath, status, message string) error {
	query := `
		UPDATE jobs
		SET output_path = $1, status = $2, message = $3
		WHERE id = $4
    `

	res, err := r.db.ExecContext(ctx, query, outputPath, status, message, id)
	if err != nil {
		return fmt.Errorf("update: failed to update job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update: failed to get number of rows affected: %w", err)
	}

	if rows == 0 {
		return ErrJobNotFound
	}

	return nil
}
