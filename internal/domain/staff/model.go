package staff

import (
	"time"

	"github.com/google/uuid"
)

// Staff is a clinic team member who can be assigned to patients and
// appointments.
type Staff struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
