package report

import (
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rehabdesk/clinic/internal/platform/events"
)

// DraftState tracks how a draft relates to the server copy it was loaded
// from.
type DraftState int

const (
	// StateClean: draft matches the last-known server state.
	StateClean DraftState = iota
	// StateDirty: the user has diverged from the last-known server state.
	StateDirty
	// StateConflictPending: the server moved while the draft was dirty. The
	// remote payload is held aside; it is not merged over local edits.
	StateConflictPending
)

func (s DraftState) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateConflictPending:
		return "conflict-pending"
	default:
		return "unknown"
	}
}

// Draft holds the in-progress edit of one report kind. Transitions:
// local edits move Clean -> Dirty; a remote push lands directly on a Clean
// draft but flips a Dirty one to ConflictPending without touching its data;
// a completed save resets to Clean.
type Draft struct {
	Kind Kind

	data       Payload
	lastServer Payload
	state      DraftState
}

func NewDraft(kind Kind) *Draft {
	return &Draft{Kind: kind, data: Payload{}, lastServer: Payload{}}
}

func (d *Draft) State() DraftState { return d.state }

// Data returns the draft's current field set.
func (d *Draft) Data() Payload { return clonePayload(d.data) }

// Edit replaces the draft's data with a local edit.
func (d *Draft) Edit(p Payload) {
	d.data = clonePayload(p)
	if d.state == StateConflictPending {
		return
	}
	if reflect.DeepEqual(d.data, d.lastServer) {
		d.state = StateClean
	} else {
		d.state = StateDirty
	}
}

// ApplyRemote reconciles a server push. A clean draft (or a read-only view)
// adopts the remote payload; a diverged draft keeps its local edits and
// moves to ConflictPending. Reports whether the remote payload was adopted.
func (d *Draft) ApplyRemote(p Payload, readOnly bool) bool {
	d.lastServer = clonePayload(p)
	if d.state == StateClean || readOnly {
		d.data = clonePayload(p)
		d.state = StateClean
		return true
	}
	d.state = StateConflictPending
	return false
}

// MarkSaved records a successful save: the draft becomes the server state.
func (d *Draft) MarkSaved(saved Payload) {
	d.data = clonePayload(saved)
	d.lastServer = clonePayload(saved)
	d.state = StateClean
}

func clonePayload(p Payload) Payload {
	if p == nil {
		return Payload{}
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case Payload:
		return cloneValue(map[string]interface{}(val))
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return val
	}
}

// FirstSession reports whether the chosen consultation date belongs to the
// patient's first-ever session for a report kind: either no version has been
// recorded yet, or the chosen date does not fall after the earliest one.
// It decides whether the full intake form or the follow-up form applies.
func FirstSession(chosen time.Time, earliestVersion *time.Time) bool {
	if earliestVersion == nil {
		return true
	}
	return !chosen.After(*earliestVersion)
}

// SessionManager owns the three drafts of one editing session and the live
// subscription feeding them. Close releases the subscription; the session's
// lifetime bounds the listener's.
type SessionManager struct {
	patientID uuid.UUID
	readOnly  bool

	mu     sync.Mutex
	drafts map[Kind]*Draft

	sub  *events.Subscription
	done chan struct{}
}

// ReportsTopic is the event bus topic report saves publish on.
const ReportsTopic = "reports"

func NewSessionManager(bus *events.Bus, patientID uuid.UUID, readOnly bool) *SessionManager {
	m := &SessionManager{
		patientID: patientID,
		readOnly:  readOnly,
		drafts: map[Kind]*Draft{
			KindPhysiotherapy:        NewDraft(KindPhysiotherapy),
			KindStrengthConditioning: NewDraft(KindStrengthConditioning),
			KindPsychology:           NewDraft(KindPsychology),
		},
		done: make(chan struct{}),
	}
	if bus != nil {
		m.sub = bus.Subscribe(ReportsTopic)
		go m.consume()
	}
	return m
}

func (m *SessionManager) consume() {
	defer close(m.done)
	for ev := range m.sub.C {
		if ev.PatientID != m.patientID {
			continue
		}
		kind, err := ParseKind(ev.Kind)
		if err != nil {
			continue
		}
		m.mu.Lock()
		m.drafts[kind].ApplyRemote(Payload(ev.Data), m.readOnly)
		m.mu.Unlock()
	}
}

func (m *SessionManager) Edit(kind Kind, p Payload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[kind].Edit(p)
}

func (m *SessionManager) State(kind Kind) DraftState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drafts[kind].State()
}

func (m *SessionManager) Snapshot(kind Kind) Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drafts[kind].Data()
}

func (m *SessionManager) MarkSaved(kind Kind, saved Payload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[kind].MarkSaved(saved)
}

// Close releases the live subscription and waits for the feed to drain.
func (m *SessionManager) Close() {
	if m.sub == nil {
		return
	}
	m.sub.Close()
	<-m.done
}
