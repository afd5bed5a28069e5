package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is a person under treatment at the clinic. Session accounting
// fields are derived: CompletedSessions and RemainingSessions are recomputed
// from completed appointments, never edited directly.
type Patient struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	BirthDate         *time.Time `json:"birth_date,omitempty"`
	Status            string     `json:"status"`
	Category          string     `json:"category,omitempty"`
	TotalSessions     *int       `json:"total_sessions,omitempty"`
	CompletedSessions int        `json:"completed_sessions"`
	RemainingSessions int        `json:"remaining_sessions"`
	AssignedStaffID   *uuid.UUID `json:"assigned_staff_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
