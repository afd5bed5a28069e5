package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rehabdesk/clinic/internal/domain/billing"
	"github.com/rehabdesk/clinic/internal/domain/patient"
)

var validStatuses = map[string]bool{
	"pending":   true,
	"ongoing":   true,
	"completed": true,
	"cancelled": true,
}

// Patients is the slice of the patient service the completion trigger needs.
type Patients interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	RefreshSessionProgress(ctx context.Context, id uuid.UUID) error
}

// Biller creates the automatic charge for a completed session.
type Biller interface {
	CreateForSession(ctx context.Context, patientID, appointmentID uuid.UUID, amount float64, date time.Time) (*billing.Entry, bool, error)
}

// BillingConfig controls which patient category is auto-billed on session
// completion, and for how much.
type BillingConfig struct {
	AutoCategory  string
	SessionAmount float64
}

type Service struct {
	repo     Repository
	patients Patients
	biller   Biller
	billing  BillingConfig
	logger   zerolog.Logger
}

func NewService(repo Repository, patients Patients, biller Biller, billing BillingConfig, logger zerolog.Logger) *Service {
	return &Service{repo: repo, patients: patients, biller: biller, billing: billing, logger: logger}
}

func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.ScheduledAt.IsZero() {
		return fmt.Errorf("scheduled_at is required")
	}
	if a.Status == "" {
		a.Status = "pending"
	}
	if !validStatuses[a.Status] {
		return fmt.Errorf("invalid status: %s", a.Status)
	}
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, a *Appointment) error {
	if !validStatuses[a.Status] {
		return fmt.Errorf("invalid status: %s", a.Status)
	}
	return s.repo.Update(ctx, a)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error) {
	if filter.Status != "" && !validStatuses[filter.Status] {
		return nil, 0, fmt.Errorf("invalid status: %s", filter.Status)
	}
	return s.repo.List(ctx, filter, limit, offset)
}

func (s *Service) CountCompleted(ctx context.Context, patientID uuid.UUID) (int, error) {
	return s.repo.CountCompleted(ctx, patientID)
}

// CompleteSession is the post-save trigger: it finds the open appointment
// matching sessionDate (or the latest open one), marks it completed, creates
// the automatic billing entry for the auto-billed category, refreshes the
// patient's session counts, and closes out the patient once every
// appointment is completed or cancelled.
//
// Every step is best-effort. Failures are logged and swallowed so the report
// save that fired the trigger still succeeds; the method never returns an
// error to its caller.
func (s *Service) CompleteSession(ctx context.Context, patientID uuid.UUID, sessionDate *time.Time, isExtraTreatment bool) {
	appt := s.findSessionAppointment(ctx, patientID, sessionDate)
	if appt == nil {
		return
	}

	now := time.Now().UTC()
	if err := s.repo.Complete(ctx, appt.ID, isExtraTreatment, now); err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", appt.ID.String()).
			Msg("session completion: marking appointment failed")
		return
	}

	s.maybeCreateBilling(ctx, patientID, appt.ID, now)

	if err := s.patients.RefreshSessionProgress(ctx, patientID); err != nil {
		s.logger.Error().Err(err).
			Str("patient_id", patientID.String()).
			Msg("session completion: progress refresh failed")
	}

	s.maybeCompletePatient(ctx, patientID)
}

func (s *Service) findSessionAppointment(ctx context.Context, patientID uuid.UUID, sessionDate *time.Time) *Appointment {
	if sessionDate != nil {
		appt, err := s.repo.FindOpenByDate(ctx, patientID, *sessionDate)
		if err == nil {
			return appt
		}
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error().Err(err).
				Str("patient_id", patientID.String()).
				Msg("session completion: date lookup failed")
			return nil
		}
	}

	appt, err := s.repo.FindLatestOpen(ctx, patientID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error().Err(err).
				Str("patient_id", patientID.String()).
				Msg("session completion: latest-open lookup failed")
		} else {
			s.logger.Warn().
				Str("patient_id", patientID.String()).
				Msg("session completion: no open appointment to complete")
		}
		return nil
	}
	return appt
}

func (s *Service) maybeCreateBilling(ctx context.Context, patientID, appointmentID uuid.UUID, date time.Time) {
	if s.biller == nil || s.billing.AutoCategory == "" {
		return
	}

	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("patient_id", patientID.String()).
			Msg("session completion: patient lookup for billing failed")
		return
	}
	if !strings.EqualFold(p.Category, s.billing.AutoCategory) {
		return
	}

	_, created, err := s.biller.CreateForSession(ctx, patientID, appointmentID, s.billing.SessionAmount, date)
	if err != nil {
		// Appointment stays completed; the charge is created manually later.
		s.logger.Error().Err(err).
			Str("appointment_id", appointmentID.String()).
			Msg("session completion: automatic billing failed")
		return
	}
	if created {
		s.logger.Info().
			Str("patient_id", patientID.String()).
			Str("appointment_id", appointmentID.String()).
			Msg("session completion: billing entry created")
	}
}

func (s *Service) maybeCompletePatient(ctx context.Context, patientID uuid.UUID) {
	closed, err := s.repo.AllClosed(ctx, patientID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("patient_id", patientID.String()).
			Msg("session completion: closed-check failed")
		return
	}
	if !closed {
		return
	}

	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("patient_id", patientID.String()).
			Msg("session completion: patient lookup failed")
		return
	}
	if p.Status == "completed" {
		return
	}

	if err := s.patients.SetStatus(ctx, patientID, "completed"); err != nil {
		s.logger.Error().Err(err).
			Str("patient_id", patientID.String()).
			Msg("session completion: patient status update failed")
	}
}
