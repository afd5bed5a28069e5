package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment is a scheduled visit. Status moves pending -> ongoing ->
// completed, or to cancelled; completion is usually driven by the report
// save trigger rather than edited directly.
type Appointment struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        uuid.UUID  `json:"patient_id"`
	StaffID          *uuid.UUID `json:"staff_id,omitempty"`
	ScheduledAt      time.Time  `json:"scheduled_at"`
	DurationHours    *float64   `json:"duration_hours,omitempty"`
	Status           string     `json:"status"`
	Category         string     `json:"category,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	IsExtraTreatment bool       `json:"is_extra_treatment"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
