package report

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/rehabdesk/clinic/internal/platform/db"
)

var (
	ErrVersionNotFound = errors.New("report version not found")
	ErrCurrentNotFound = errors.New("report not found")
)

type versionRepoPG struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewVersionRepoPG(pool *pgxpool.Pool, logger zerolog.Logger) VersionRepository {
	return &versionRepoPG{pool: pool, logger: logger}
}

func (r *versionRepoPG) conn(ctx context.Context) db.Queryer {
	if q := db.QueryerFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const versionCols = `id, patient_id, patient_name, report_type, version, payload, created_by, created_by_id, created_at`

func scanVersion(row pgx.Row) (*Version, error) {
	var v Version
	err := row.Scan(&v.ID, &v.PatientID, &v.PatientName, &v.Kind, &v.Version, &v.Payload, &v.CreatedBy, &v.CreatedByID, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVersionNotFound
	}
	return &v, err
}

func (r *versionRepoPG) Insert(ctx context.Context, v *Version) error {
	v.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO report_versions (id, patient_id, patient_name, report_type, version, payload, created_by, created_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		v.ID, v.PatientID, v.PatientName, v.Kind, v.Version, v.Payload, v.CreatedBy, v.CreatedByID)
	if err := row.Scan(&v.CreatedAt); err != nil {
		return fmt.Errorf("insert report version: %w", err)
	}
	return nil
}

func (r *versionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Version, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+versionCols+` FROM report_versions WHERE id = $1`, id)
	return scanVersion(row)
}

// ListByPartition prefers the fully filtered, index-backed query. If that
// fails it retries with the patient-only filter and finishes the kind filter
// and ordering in memory; if that also fails the history degrades to empty
// rather than blocking the caller's save.
func (r *versionRepoPG) ListByPartition(ctx context.Context, patientID uuid.UUID, kind Kind) ([]*Version, error) {
	items, err := r.list(ctx, `
		SELECT `+versionCols+` FROM report_versions
		WHERE patient_id = $1 AND report_type = $2
		ORDER BY version ASC, created_at ASC`,
		patientID, kind)
	if err == nil {
		return items, nil
	}
	r.logger.Warn().Err(err).
		Str("patient_id", patientID.String()).
		Str("report_type", string(kind)).
		Msg("filtered version query failed, retrying with patient-only filter")

	items, err = r.list(ctx, `
		SELECT `+versionCols+` FROM report_versions WHERE patient_id = $1`,
		patientID)
	if err != nil {
		r.logger.Error().Err(err).
			Str("patient_id", patientID.String()).
			Msg("version history unavailable, degrading to empty")
		return nil, nil
	}

	filtered := items[:0]
	for _, v := range items {
		if v.Kind == kind {
			filtered = append(filtered, v)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Version != filtered[j].Version {
			return filtered[i].Version < filtered[j].Version
		}
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})
	return filtered, nil
}

func (r *versionRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Version, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *versionRepoPG) UpdateNumber(ctx context.Context, id uuid.UUID, version int) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE report_versions SET version = $2 WHERE id = $1`, id, version)
	if err != nil {
		return fmt.Errorf("renumber version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionNotFound
	}
	return nil
}

func (r *versionRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM report_versions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionNotFound
	}
	return nil
}

type currentRepoPG struct{ pool *pgxpool.Pool }

func NewCurrentRepoPG(pool *pgxpool.Pool) CurrentRepository {
	return &currentRepoPG{pool: pool}
}

func (r *currentRepoPG) conn(ctx context.Context) db.Queryer {
	if q := db.QueryerFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

func (r *currentRepoPG) Get(ctx context.Context, patientID uuid.UUID, kind Kind) (*Current, error) {
	var c Current
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT patient_id, patient_name, report_type, payload, updated_by, updated_by_id, updated_at
		FROM report_current WHERE patient_id = $1 AND report_type = $2`,
		patientID, kind).
		Scan(&c.PatientID, &c.PatientName, &c.Kind, &c.Payload, &c.UpdatedBy, &c.UpdatedByID, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCurrentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get current report: %w", err)
	}
	return &c, nil
}

func (r *currentRepoPG) Upsert(ctx context.Context, c *Current) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO report_current (patient_id, patient_name, report_type, payload, updated_by, updated_by_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (patient_id, report_type)
		DO UPDATE SET patient_name = EXCLUDED.patient_name, payload = EXCLUDED.payload,
			updated_by = EXCLUDED.updated_by, updated_by_id = EXCLUDED.updated_by_id, updated_at = now()
		RETURNING updated_at`,
		c.PatientID, c.PatientName, c.Kind, c.Payload, c.UpdatedBy, c.UpdatedByID)
	if err := row.Scan(&c.UpdatedAt); err != nil {
		return fmt.Errorf("upsert current report: %w", err)
	}
	return nil
}

// TxRunnerPG runs report transactions on the shared pool.
type TxRunnerPG struct{ pool *pgxpool.Pool }

func NewTxRunnerPG(pool *pgxpool.Pool) *TxRunnerPG { return &TxRunnerPG{pool: pool} }

func (t *TxRunnerPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RunInTx(ctx, t.pool, fn)
}
