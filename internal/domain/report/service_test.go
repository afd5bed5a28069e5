package report

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rehabdesk/clinic/internal/platform/events"
)

type mockVersionRepo struct {
	versions map[uuid.UUID]*Version
	seq      int
	listErr  error
}

func newMockVersionRepo() *mockVersionRepo {
	return &mockVersionRepo{versions: make(map[uuid.UUID]*Version)}
}

func (m *mockVersionRepo) Insert(_ context.Context, v *Version) error {
	v.ID = uuid.New()
	m.seq++
	v.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Minute)
	m.versions[v.ID] = v
	return nil
}

func (m *mockVersionRepo) GetByID(_ context.Context, id uuid.UUID) (*Version, error) {
	v, ok := m.versions[id]
	if !ok {
		return nil, ErrVersionNotFound
	}
	return v, nil
}

func (m *mockVersionRepo) ListByPartition(_ context.Context, patientID uuid.UUID, kind Kind) ([]*Version, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*Version
	for _, v := range m.versions {
		if v.PatientID == patientID && v.Kind == kind {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Version != out[j].Version {
			return out[i].Version < out[j].Version
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *mockVersionRepo) UpdateNumber(_ context.Context, id uuid.UUID, version int) error {
	v, ok := m.versions[id]
	if !ok {
		return ErrVersionNotFound
	}
	v.Version = version
	return nil
}

func (m *mockVersionRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.versions[id]; !ok {
		return ErrVersionNotFound
	}
	delete(m.versions, id)
	return nil
}

func (m *mockVersionRepo) numbers(patientID uuid.UUID, kind Kind) []int {
	vs, _ := m.ListByPartition(context.Background(), patientID, kind)
	nums := make([]int, len(vs))
	for i, v := range vs {
		nums[i] = v.Version
	}
	return nums
}

type currentKey struct {
	pid  uuid.UUID
	kind Kind
}

type mockCurrentRepo struct {
	docs      map[currentKey]*Current
	upsertErr error
}

func newMockCurrentRepo() *mockCurrentRepo {
	return &mockCurrentRepo{docs: make(map[currentKey]*Current)}
}

func (m *mockCurrentRepo) Get(_ context.Context, patientID uuid.UUID, kind Kind) (*Current, error) {
	c, ok := m.docs[currentKey{patientID, kind}]
	if !ok {
		return nil, ErrCurrentNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCurrentRepo) Upsert(_ context.Context, c *Current) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	c.UpdatedAt = time.Now()
	cp := *c
	m.docs[currentKey{c.PatientID, c.Kind}] = &cp
	return nil
}

type mockTx struct{}

func (mockTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockCompleter struct {
	calls []struct {
		patientID uuid.UUID
		date      *time.Time
		extra     bool
	}
}

func (m *mockCompleter) CompleteSession(_ context.Context, patientID uuid.UUID, sessionDate *time.Time, isExtra bool) {
	m.calls = append(m.calls, struct {
		patientID uuid.UUID
		date      *time.Time
		extra     bool
	}{patientID, sessionDate, isExtra})
}

type svcFixture struct {
	svc       *Service
	versions  *mockVersionRepo
	current   *mockCurrentRepo
	completer *mockCompleter
}

func newSvcFixture() *svcFixture {
	versions := newMockVersionRepo()
	current := newMockCurrentRepo()
	completer := &mockCompleter{}
	svc := NewService(versions, current, mockTx{}, completer, events.NewBus(), zerolog.Nop())
	return &svcFixture{svc: svc, versions: versions, current: current, completer: completer}
}

func (f *svcFixture) save(t *testing.T, pid uuid.UUID, payload Payload) *Current {
	t.Helper()
	cur, err := f.svc.Save(context.Background(), SaveRequest{
		PatientID: pid,
		Kind:      KindPhysiotherapy,
		Payload:   payload,
		Author:    "Dr. Ramos",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	return cur
}

func TestSave_FirstSaveCreatesNoVersion(t *testing.T) {
	f := newSvcFixture()
	pid := uuid.New()

	f.save(t, pid, Payload{"history": "initial"})

	if len(f.versions.versions) != 0 {
		t.Errorf("first save has no prior state to archive, got %d versions", len(f.versions.versions))
	}
}

func TestSave_ArchivesPriorState(t *testing.T) {
	f := newSvcFixture()
	pid := uuid.New()

	f.save(t, pid, Payload{"history": "v1 text"})
	f.save(t, pid, Payload{"history": "v2 text"})

	nums := f.versions.numbers(pid, KindPhysiotherapy)
	if !reflect.DeepEqual(nums, []int{1}) {
		t.Fatalf("expected version numbers [1], got %v", nums)
	}
	vs, _ := f.versions.ListByPartition(context.Background(), pid, KindPhysiotherapy)
	if vs[0].Payload["history"] != "v1 text" {
		t.Errorf("archived snapshot must hold the prior state, got %v", vs[0].Payload)
	}
	if vs[0].CreatedBy != "Dr. Ramos" {
		t.Errorf("snapshot author should be the prior editor, got %q", vs[0].CreatedBy)
	}
}

func TestSave_MergesOverPriorDocument(t *testing.T) {
	f := newSvcFixture()
	pid := uuid.New()

	f.save(t, pid, Payload{"history": "sprained ankle"})
	cur := f.save(t, pid, Payload{"diagnosis": "grade II sprain"})

	if cur.Payload["history"] != "sprained ankle" {
		t.Errorf("field absent from the save must keep its stored value, got %v", cur.Payload)
	}
	if cur.Payload["diagnosis"] != "grade II sprain" {
		t.Errorf("saved field missing: %v", cur.Payload)
	}
}

func TestSave_NullClearsStoredField(t *testing.T) {
	f := newSvcFixture()
	pid := uuid.New()

	f.save(t, pid, Payload{"history": "acl rupture", "diagnosis": "grade III"})
	cur := f.save(t, pid, Payload{"diagnosis": nil})

	if _, ok := cur.Payload["diagnosis"]; ok {
		t.Errorf("explicit null must clear the field, got %v", cur.Payload)
	}
	if cur.Payload["history"] != "acl rupture" {
		t.Errorf("untouched field lost: %v", cur.Payload)
	}
}

func TestSave_ContiguousNumbering(t *testing.T) {
	f := newSvcFixture()
	pid := uuid.New()

	for i := 1; i <= 4; i++ {
		f.save(t, pid, Payload{"history": fmt.Sprintf("rev %d", i)})
	}

	nums := f.versions.numbers(pid, KindPhysiotherapy)
	if !reflect.DeepEqual(nums, []int{1, 2, 3}) {
		t.Errorf("expected [1 2 3], got %v", nums)
	}
}

func TestSave_EmptyPriorNotArchived(t *testing.T) {
	f := newSvcFixture()
	pid := uuid.New()

	// Seed a content-free current document directly.
	_ = f.current.Upsert(context.Background(), &Current{
		PatientID: pid, Kind: KindPhysiotherapy, Payload: Payload{},
	})

	f.save(t, pid, Payload{"history": "real content"})

	if len(f.versions.versions) != 0 {
		t.Errorf("content-free prior state must not be archived")
	}
}

func TestSave_RejectsForeignFields(t *testing.T) {
	f := newSvcFixture()

	_, err := f.svc.Save(context.Background(), SaveRequest{
		PatientID: uuid.New(),
		Kind:      KindPsychology,
		Payload:   Payload{"rom": "not a psychology field"},
		Author:    "x",
	})
	if err == nil {
		t.Fatal("expected rejection of fields outside the variant's schema")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	f := newSvcFixture()
	pid := uuid.New()

	in := Payload{
		"history":   "acl rupture",
		"diagnosis": "", // empty, dropped
		"mmt":       map[string]interface{}{"knee": "4/5"},
	}
	f.save(t, pid, in)
	f.save(t, pid, Payload{"history": "follow-up"})

	vs, _ := f.versions.ListByPartition(context.Background(), pid, KindPhysiotherapy)
	if len(vs) != 1 {
		t.Fatalf("expected one archived version, got %d", len(vs))
	}
	got := vs[0].Payload
	if got["history"] != "acl rupture" {
		t.Errorf("non-empty field lost: %v", got)
	}
	if !reflect.DeepEqual(got["mmt"], map[string]interface{}{"knee": "4/5"}) {
		t.Errorf("nested field lost: %v", got)
	}
	if _, ok := got["diagnosis"]; ok {
		t.Errorf("empty field must have been dropped: %v", got)
	}
}

func TestSave_DegradedHistoryDoesNotBlockSave(t *testing.T) {
	f := newSvcFixture()
	pid := uuid.New()

	f.save(t, pid, Payload{"history": "v1"})
	f.versions.listErr = fmt.Errorf("index missing")

	cur := f.save(t, pid, Payload{"history": "v2"})
	if cur.Payload["history"] != "v2" {
		t.Errorf("save must succeed while history is degraded: %v", cur.Payload)
	}
}

func TestSave_SessionCompletedFiresTrigger(t *testing.T) {
	f := newSvcFixture()
	pid := uuid.New()
	date := time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.Save(context.Background(), SaveRequest{
		PatientID:        pid,
		Kind:             KindPhysiotherapy,
		Payload:          Payload{"history": "x"},
		Author:           "Dr. Ramos",
		SessionCompleted: true,
		IsExtraTreatment: true,
		SessionDate:      &date,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if len(f.completer.calls) != 1 {
		t.Fatalf("expected one trigger call, got %d", len(f.completer.calls))
	}
	call := f.completer.calls[0]
	if call.patientID != pid || !call.extra || call.date == nil || !call.date.Equal(date) {
		t.Errorf("unexpected trigger call: %+v", call)
	}
}

func TestSave_NoTriggerWithoutFlag(t *testing.T) {
	f := newSvcFixture()
	f.save(t, uuid.New(), Payload{"history": "x"})

	if len(f.completer.calls) != 0 {
		t.Errorf("trigger must not fire without the session-completed flag")
	}
}

func TestSave_StrengthConditioningEnrichment(t *testing.T) {
	f := newSvcFixture()
	pid := uuid.New()

	cur, err := f.svc.Save(context.Background(), SaveRequest{
		PatientID: pid,
		Kind:      KindStrengthConditioning,
		Payload: Payload{
			"rpe":                            7.0,
			"skill_training_duration":        "1.12",
			"strength_conditioning_duration": "0.57",
			"acute_workload":                 120.0,
			"chronic_workload":               100.0,
		},
		Author: "Coach Lee",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if got := cur.Payload["skill_training_duration"]; got != 1.10 {
		t.Errorf("skill duration = %v, want 1.10", got)
	}
	if got := cur.Payload["strength_conditioning_duration"]; got != 1.0 {
		t.Errorf("s&c duration = %v, want 1.0", got)
	}
	if got := cur.Payload["daily_workload"]; got != 7.0*(1.10+1.0) {
		t.Errorf("daily workload = %v, want %v", got, 7.0*(1.10+1.0))
	}
	if got := cur.Payload["acwr"]; got != 1.2 {
		t.Errorf("acwr = %v, want 1.2", got)
	}
}

func TestDeleteVersion_RenumbersSurvivors(t *testing.T) {
	f := newSvcFixture()
	pid := uuid.New()

	for i := 1; i <= 4; i++ {
		f.save(t, pid, Payload{"history": fmt.Sprintf("rev %d", i)})
	}
	// History is now {1,2,3}.
	vs, _ := f.versions.ListByPartition(context.Background(), pid, KindPhysiotherapy)
	second := vs[1]

	if err := f.svc.DeleteVersion(context.Background(), second.ID); err != nil {
		t.Fatalf("DeleteVersion: %v", err)
	}

	nums := f.versions.numbers(pid, KindPhysiotherapy)
	if !reflect.DeepEqual(nums, []int{1, 2}) {
		t.Fatalf("expected [1 2] after delete, got %v", nums)
	}
	vs, _ = f.versions.ListByPartition(context.Background(), pid, KindPhysiotherapy)
	if vs[1].Payload["history"] != "rev 3" {
		t.Errorf("old #3 should now be #2, got %v", vs[1].Payload)
	}
}

func TestRenumber_FixesGapsAndDuplicates(t *testing.T) {
	f := newSvcFixture()
	pid := uuid.New()

	seed := []int{1, 3, 7}
	for i, n := range seed {
		v := &Version{PatientID: pid, Kind: KindPhysiotherapy, Version: n,
			Payload: Payload{"history": fmt.Sprintf("seed %d", i)}}
		_ = f.versions.Insert(context.Background(), v)
	}

	if err := f.svc.Renumber(context.Background(), pid, KindPhysiotherapy); err != nil {
		t.Fatalf("Renumber: %v", err)
	}

	nums := f.versions.numbers(pid, KindPhysiotherapy)
	if !reflect.DeepEqual(nums, []int{1, 2, 3}) {
		t.Errorf("expected [1 2 3], got %v", nums)
	}
}

func TestListVersions_NewestFirst(t *testing.T) {
	f := newSvcFixture()
	pid := uuid.New()

	for i := 1; i <= 3; i++ {
		f.save(t, pid, Payload{"history": fmt.Sprintf("rev %d", i)})
	}

	vs, err := f.svc.ListVersions(context.Background(), pid, KindPhysiotherapy)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(vs) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(vs))
	}
	if vs[0].Version != 2 || vs[1].Version != 1 {
		t.Errorf("expected newest first, got %d then %d", vs[0].Version, vs[1].Version)
	}
}
