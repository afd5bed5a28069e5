package patient

import (
	"context"

	"github.com/google/uuid"
)

// ComputeRemaining derives the remaining session count from the prescribed
// total and the number of completed appointments. It returns nil when no
// total has been prescribed, in which case no update should be produced.
func ComputeRemaining(totalSessions *int, completedCount int) *int {
	if totalSessions == nil {
		return nil
	}
	remaining := *totalSessions - completedCount
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// RefreshSessionProgress recomputes a patient's session accounting from the
// completed-appointment count. When the remaining count reaches zero the
// patient's status moves to completed; otherwise the status is left alone.
// The computation is idempotent: re-running it with unchanged inputs writes
// the same values.
func (s *Service) RefreshSessionProgress(ctx context.Context, patientID uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		return err
	}
	if p.TotalSessions == nil {
		return nil
	}

	completed, err := s.completed.CountCompleted(ctx, patientID)
	if err != nil {
		return err
	}

	remaining := ComputeRemaining(p.TotalSessions, completed)
	if err := s.repo.UpdateSessionProgress(ctx, patientID, completed, *remaining); err != nil {
		return err
	}

	if *remaining == 0 && p.Status != "completed" {
		if err := s.repo.UpdateStatus(ctx, patientID, "completed"); err != nil {
			return err
		}
		s.logger.Info().
			Str("patient_id", patientID.String()).
			Msg("patient completed all prescribed sessions")
	}
	return nil
}
