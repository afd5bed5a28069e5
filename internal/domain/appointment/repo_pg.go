package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rehabdesk/clinic/internal/platform/db"
)

var ErrNotFound = errors.New("appointment not found")

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryer {
	if q := db.QueryerFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const apptCols = `id, patient_id, staff_id, scheduled_at, duration_hours, status,
	category, notes, is_extra_treatment, completed_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.StaffID, &a.ScheduledAt, &a.DurationHours,
		&a.Status, &a.Category, &a.Notes, &a.IsExtraTreatment, &a.CompletedAt,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, staff_id, scheduled_at, duration_hours,
			status, category, notes, is_extra_treatment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.StaffID, a.ScheduledAt, a.DurationHours,
		a.Status, a.Category, a.Notes, a.IsExtraTreatment)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET staff_id = $2, scheduled_at = $3, duration_hours = $4,
			status = $5, category = $6, notes = $7, updated_at = now()
		WHERE id = $1`,
		a.ID, a.StaffID, a.ScheduledAt, a.DurationHours, a.Status, a.Category, a.Notes)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Complete(ctx context.Context, id uuid.UUID, isExtraTreatment bool, completedAt time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET status = 'completed', is_extra_treatment = $2,
			completed_at = $3, updated_at = now()
		WHERE id = $1`,
		id, isExtraTreatment, completedAt)
	if err != nil {
		return fmt.Errorf("complete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		where += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	if filter.StaffID != nil {
		args = append(args, *filter.StaffID)
		where += fmt.Sprintf(" AND staff_id = $%d", len(args))
	}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		where += fmt.Sprintf(" AND scheduled_at::date = $%d::date", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT count(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := `SELECT ` + apptCols + ` FROM appointments` + where +
		fmt.Sprintf(` ORDER BY scheduled_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) FindOpenByDate(ctx context.Context, patientID uuid.UUID, date time.Time) (*Appointment, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments
		 WHERE patient_id = $1 AND status IN ('pending', 'ongoing')
		   AND scheduled_at::date = $2::date
		 ORDER BY scheduled_at DESC LIMIT 1`,
		patientID, date)
	return scanAppointment(row)
}

func (r *repoPG) FindLatestOpen(ctx context.Context, patientID uuid.UUID) (*Appointment, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments
		 WHERE patient_id = $1 AND status IN ('pending', 'ongoing')
		 ORDER BY scheduled_at DESC LIMIT 1`,
		patientID)
	return scanAppointment(row)
}

func (r *repoPG) CountCompleted(ctx context.Context, patientID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT count(*) FROM appointments WHERE patient_id = $1 AND status = 'completed'`,
		patientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed appointments: %w", err)
	}
	return n, nil
}

func (r *repoPG) AllClosed(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var open int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT count(*) FROM appointments
		 WHERE patient_id = $1 AND status NOT IN ('completed', 'cancelled')`,
		patientID).Scan(&open)
	if err != nil {
		return false, fmt.Errorf("count open appointments: %w", err)
	}
	return open == 0, nil
}
