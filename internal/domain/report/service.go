package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rehabdesk/clinic/internal/platform/events"
)

// SessionCompleter is the post-save hook that closes out the matched
// appointment. The appointment service implements it; it swallows its own
// errors, so a save never fails because of it.
type SessionCompleter interface {
	CompleteSession(ctx context.Context, patientID uuid.UUID, sessionDate *time.Time, isExtraTreatment bool)
}

type Service struct {
	versions  VersionRepository
	current   CurrentRepository
	tx        TxRunner
	completer SessionCompleter
	bus       *events.Bus
	logger    zerolog.Logger
}

func NewService(versions VersionRepository, current CurrentRepository, tx TxRunner, completer SessionCompleter, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		versions:  versions,
		current:   current,
		tx:        tx,
		completer: completer,
		bus:       bus,
		logger:    logger,
	}
}

// SaveRequest carries one report save. Author and AuthorID identify the
// editor; PatientName is denormalized onto the stored row for snapshots.
type SaveRequest struct {
	PatientID        uuid.UUID
	PatientName      string
	Kind             Kind
	Payload          Payload
	Author           string
	AuthorID         string
	SessionCompleted bool
	IsExtraTreatment bool
	SessionDate      *time.Time
}

// Save merges the cleaned payload over the current document, first
// archiving the prior state as the next version when it had content. Fields
// absent from the request keep their stored value; an explicit null clears
// one. The session-completion trigger runs after a successful write and
// cannot fail the save.
//
// Versioning note: next-number assignment is not serialized against other
// writers, so two simultaneous saves can assign the same number. The next
// renumbering pass restores contiguity; see Renumber.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*Current, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidPayload)
	}
	if !validKinds[req.Kind] {
		return nil, fmt.Errorf("%w: unknown report kind: %s", ErrInvalidPayload, req.Kind)
	}
	if err := ValidateFields(req.Kind, req.Payload); err != nil {
		return nil, err
	}

	cleaned := CleanPayload(req.Payload)
	if req.Kind == KindStrengthConditioning {
		if err := enrichStrengthConditioning(cleaned); err != nil {
			return nil, err
		}
	}

	prior := s.archivePrior(ctx, req.PatientID, req.Kind)

	var priorPayload Payload
	if prior != nil {
		priorPayload = prior.Payload
	}
	merged := MergePayload(priorPayload, cleaned)

	cur := &Current{
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
		Kind:        req.Kind,
		Payload:     merged,
		UpdatedBy:   req.Author,
		UpdatedByID: req.AuthorID,
	}
	if err := s.current.Upsert(ctx, cur); err != nil {
		return nil, err
	}

	if s.bus != nil {
		s.bus.Publish(events.Event{
			Topic:     ReportsTopic,
			PatientID: req.PatientID,
			Kind:      string(req.Kind),
			Data:      merged,
		})
	}

	if req.SessionCompleted && s.completer != nil {
		s.completer.CompleteSession(ctx, req.PatientID, req.SessionDate, req.IsExtraTreatment)
	}

	return cur, nil
}

// archivePrior snapshots the current document into the version history and
// returns it so the save can merge over it. All failures degrade to "no
// snapshot" with a log line; history problems must not block the save
// itself.
func (s *Service) archivePrior(ctx context.Context, patientID uuid.UUID, kind Kind) *Current {
	prior, err := s.current.Get(ctx, patientID, kind)
	if err != nil {
		if !errors.Is(err, ErrCurrentNotFound) {
			s.logger.Error().Err(err).
				Str("patient_id", patientID.String()).
				Msg("reading prior report failed, skipping snapshot")
		}
		return nil
	}
	if !HasContent(prior.Payload) {
		return prior
	}

	if err := s.Renumber(ctx, patientID, kind); err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", patientID.String()).
			Msg("pre-save renumbering failed")
	}

	next, err := s.nextVersionNumber(ctx, patientID, kind)
	if err != nil {
		s.logger.Error().Err(err).
			Str("patient_id", patientID.String()).
			Msg("next version lookup failed, skipping snapshot")
		return prior
	}

	v := &Version{
		PatientID:   patientID,
		PatientName: prior.PatientName,
		Kind:        kind,
		Version:     next,
		Payload:     prior.Payload,
		CreatedBy:   prior.UpdatedBy,
		CreatedByID: prior.UpdatedByID,
	}
	if err := s.versions.Insert(ctx, v); err != nil {
		s.logger.Error().Err(err).
			Str("patient_id", patientID.String()).
			Int("version", next).
			Msg("version snapshot failed")
	}
	return prior
}

// nextVersionNumber returns max(version)+1 for the partition, or 1 when the
// history is empty or degraded.
func (s *Service) nextVersionNumber(ctx context.Context, patientID uuid.UUID, kind Kind) (int, error) {
	vs, err := s.versions.ListByPartition(ctx, patientID, kind)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, v := range vs {
		if v.Version > max {
			max = v.Version
		}
	}
	return max + 1, nil
}

// Renumber rewrites the partition's version numbers to 1..N when any gap or
// duplicate is found. It runs in one transaction so readers never observe a
// half-renumbered history. Ordering ties on a duplicated number break by
// creation time.
func (s *Service) Renumber(ctx context.Context, patientID uuid.UUID, kind Kind) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		vs, err := s.versions.ListByPartition(ctx, patientID, kind)
		if err != nil {
			return err
		}
		for i, v := range vs {
			want := i + 1
			if v.Version == want {
				continue
			}
			if err := s.versions.UpdateNumber(ctx, v.ID, want); err != nil {
				return err
			}
			v.Version = want
		}
		return nil
	})
}

// DeleteVersion removes a snapshot and renumbers the survivors so the
// partition stays contiguous.
func (s *Service) DeleteVersion(ctx context.Context, id uuid.UUID) error {
	v, err := s.versions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.versions.Delete(ctx, id); err != nil {
		return err
	}
	return s.Renumber(ctx, v.PatientID, v.Kind)
}

func (s *Service) GetCurrent(ctx context.Context, patientID uuid.UUID, kind Kind) (*Current, error) {
	return s.current.Get(ctx, patientID, kind)
}

func (s *Service) GetVersion(ctx context.Context, id uuid.UUID) (*Version, error) {
	return s.versions.GetByID(ctx, id)
}

// ListVersions returns the partition's history, newest first.
func (s *Service) ListVersions(ctx context.Context, patientID uuid.UUID, kind Kind) ([]*Version, error) {
	vs, err := s.versions.ListByPartition(ctx, patientID, kind)
	if err != nil {
		return nil, err
	}
	out := make([]*Version, len(vs))
	for i, v := range vs {
		out[len(vs)-1-i] = v
	}
	return out, nil
}

// EarliestVersionDate reports when the partition's first snapshot was taken,
// or nil for an empty history. Drives the Session 1 check.
func (s *Service) EarliestVersionDate(ctx context.Context, patientID uuid.UUID, kind Kind) (*time.Time, error) {
	vs, err := s.versions.ListByPartition(ctx, patientID, kind)
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		return nil, nil
	}
	earliest := vs[0].CreatedAt
	for _, v := range vs[1:] {
		if v.CreatedAt.Before(earliest) {
			earliest = v.CreatedAt
		}
	}
	return &earliest, nil
}

// enrichStrengthConditioning normalizes the duration fields and recomputes
// the derived workload metrics in place.
func enrichStrengthConditioning(p Payload) error {
	skill, err := normalizeField(p, "skill_training_duration")
	if err != nil {
		return err
	}
	sc, err := normalizeField(p, "strength_conditioning_duration")
	if err != nil {
		return err
	}

	if rpe, ok := numberField(p, "rpe"); ok && skill != nil && sc != nil {
		p["daily_workload"] = DailyWorkload(rpe, *skill, *sc)
	}

	acute, haveAcute := numberField(p, "acute_workload")
	chronic, haveChronic := numberField(p, "chronic_workload")
	if haveAcute && haveChronic {
		if ratio := ACWR(acute, chronic); ratio != nil {
			p["acwr"] = *ratio
		} else {
			// Undefined ratio: null so the merge clears any stored value.
			p["acwr"] = nil
		}
	}
	return nil
}

// normalizeField snaps a duration field, accepting either string or numeric
// input, and writes the normalized value back.
func normalizeField(p Payload, field string) (*float64, error) {
	raw, ok := p[field]
	if !ok {
		return nil, nil
	}

	var in string
	switch v := raw.(type) {
	case string:
		in = v
	case float64:
		in = fmt.Sprintf("%g", v)
	default:
		return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidPayload, field)
	}

	norm, err := NormalizeDuration(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, field, err)
	}
	if norm == nil {
		// Blank input means "no value": null so the merge clears it.
		p[field] = nil
		return nil, nil
	}
	p[field] = *norm
	return norm, nil
}

func numberField(p Payload, field string) (float64, bool) {
	v, ok := p[field].(float64)
	return v, ok
}
