// Package report implements the clinical report editor's storage rules:
// one mutable "current" document per patient per report kind, an append-only
// version history with contiguous numbering, payload cleaning, duration
// normalization, and the draft state machine that reconciles live updates
// with unsaved edits.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidPayload marks save rejections caused by the caller's input, as
// opposed to storage failures. Handlers map it to a 400.
var ErrInvalidPayload = errors.New("invalid report payload")

// Kind tags which report variant a document belongs to. Each variant has its
// own field schema; the tag decides which one applies.
type Kind string

const (
	KindPhysiotherapy        Kind = "physiotherapy"
	KindStrengthConditioning Kind = "strength_conditioning"
	KindPsychology           Kind = "psychology"
)

var validKinds = map[Kind]bool{
	KindPhysiotherapy:        true,
	KindStrengthConditioning: true,
	KindPsychology:           true,
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !validKinds[k] {
		return "", fmt.Errorf("unknown report kind: %s", s)
	}
	return k, nil
}

// Payload is a report's field set. Shape varies per Kind; see kindFields.
type Payload map[string]interface{}

// kindFields lists the top-level fields each variant accepts. Saves with
// fields outside the variant's schema are rejected, which keeps the three
// report shapes from bleeding into each other.
var kindFields = map[Kind]map[string]bool{
	KindPhysiotherapy: {
		"history": true, "diagnosis": true, "complaint": true,
		"rom": true, "mmt": true, "special_tests": true,
		"treatment_plan": true, "session_notes": true,
		"consultation_date": true, "pain_score": true,
	},
	KindStrengthConditioning: {
		"assessment": true, "goals": true, "program": true,
		"session_notes": true, "consultation_date": true,
		"rpe": true, "skill_training_duration": true,
		"strength_conditioning_duration": true,
		"daily_workload": true, "acute_workload": true,
		"chronic_workload": true, "acwr": true,
	},
	KindPsychology: {
		"presenting_issues": true, "mental_status": true,
		"assessment": true, "interventions": true,
		"session_notes": true, "consultation_date": true,
	},
}

// ValidateFields rejects payload fields outside the variant's schema.
func ValidateFields(kind Kind, p Payload) error {
	allowed, ok := kindFields[kind]
	if !ok {
		return fmt.Errorf("%w: unknown report kind: %s", ErrInvalidPayload, kind)
	}
	for field := range p {
		if !allowed[field] {
			return fmt.Errorf("%w: field %q is not part of the %s report", ErrInvalidPayload, field, kind)
		}
	}
	return nil
}

// Version is an immutable snapshot of a report at a point in time. Numbers
// within a (patient, kind) partition are kept contiguous from 1.
type Version struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Kind        Kind      `json:"report_type"`
	Version     int       `json:"version"`
	Payload     Payload   `json:"payload"`
	CreatedBy   string    `json:"created_by"`
	CreatedByID string    `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Current is the single mutable report document per patient per kind. The
// patient name and editor identity are denormalized onto the row so that a
// snapshot taken later carries them without another lookup.
type Current struct {
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Kind        Kind      `json:"report_type"`
	Payload     Payload   `json:"payload"`
	UpdatedBy   string    `json:"updated_by"`
	UpdatedByID string    `json:"updated_by_id"`
	UpdatedAt   time.Time `json:"updated_at"`
}
