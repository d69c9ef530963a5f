package measurement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, m *Measurement) error
	GetByID(ctx context.Context, id uuid.UUID) (*Measurement, error)
	List(ctx context.Context, filter ListFilter) ([]Measurement, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

const schema = `
	CREATE TABLE IF NOT EXISTS measurements (
		id               UUID PRIMARY KEY,
		name             TEXT NOT NULL,
		geometry         JSONB NOT NULL,
		vertex_count     INTEGER NOT NULL,
		area_sq_meters   DOUBLE PRECISION NOT NULL,
		perimeter_meters DOUBLE PRECISION NOT NULL,
		unit             TEXT NOT NULL,
		display_area     DOUBLE PRECISION NOT NULL,
		archive_key      TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS measurements_created_at_idx ON measurements (created_at DESC);`

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// Migrate creates the measurements table when it does not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create measurements schema: %w", err)
	}
	return nil
}

func (r *postgresRepository) Create(ctx context.Context, m *Measurement) error {
	query := `
		INSERT INTO measurements (
			id, name, geometry, vertex_count, area_sq_meters,
			perimeter_meters, unit, display_area, archive_key, created_at
		) VALUES (
			:id, :name, :geometry, :vertex_count, :area_sq_meters,
			:perimeter_meters, :unit, :display_area, :archive_key, :created_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, m)
	return err
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Measurement, error) {
	var m Measurement
	err := r.db.GetContext(ctx, &m, "SELECT * FROM measurements WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *postgresRepository) List(ctx context.Context, filter ListFilter) ([]Measurement, error) {
	measurements := []Measurement{}
	query := "SELECT * FROM measurements ORDER BY created_at DESC"
	var args []interface{}
	argCount := 1

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	err := r.db.SelectContext(ctx, &measurements, query, args...)
	return measurements, err
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM measurements WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
