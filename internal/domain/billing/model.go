package billing

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a single billable item for a patient, optionally tied to the
// appointment that produced it.
type Entry struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Description   string     `json:"description"`
	Amount        float64    `json:"amount"`
	Status        string     `json:"status"`
	EntryDate     time.Time  `json:"entry_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
