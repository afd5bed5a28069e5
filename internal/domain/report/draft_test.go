package report

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rehabdesk/clinic/internal/platform/events"
)

func TestDraft_RemoteAppliesWhenClean(t *testing.T) {
	d := NewDraft(KindPhysiotherapy)

	remote := Payload{"history": "from server"}
	if !d.ApplyRemote(remote, false) {
		t.Fatal("clean draft must adopt remote state")
	}
	if d.State() != StateClean {
		t.Errorf("expected clean, got %s", d.State())
	}
	if d.Data()["history"] != "from server" {
		t.Errorf("remote data not adopted: %v", d.Data())
	}
}

func TestDraft_LocalEditMakesDirty(t *testing.T) {
	d := NewDraft(KindPhysiotherapy)
	d.ApplyRemote(Payload{"history": "v1"}, false)

	d.Edit(Payload{"history": "v1 plus my notes"})
	if d.State() != StateDirty {
		t.Errorf("expected dirty after divergence, got %s", d.State())
	}

	// Editing back to the server state is clean again.
	d.Edit(Payload{"history": "v1"})
	if d.State() != StateClean {
		t.Errorf("expected clean after reverting, got %s", d.State())
	}
}

func TestDraft_RemoteSuppressedWhenDirty(t *testing.T) {
	d := NewDraft(KindPhysiotherapy)
	d.ApplyRemote(Payload{"history": "v1"}, false)
	d.Edit(Payload{"history": "local edits"})

	if d.ApplyRemote(Payload{"history": "v2"}, false) {
		t.Fatal("dirty draft must not be clobbered by remote push")
	}
	if d.State() != StateConflictPending {
		t.Errorf("expected conflict-pending, got %s", d.State())
	}
	if d.Data()["history"] != "local edits" {
		t.Errorf("local edits lost: %v", d.Data())
	}
}

func TestDraft_ReadOnlyAlwaysFollowsRemote(t *testing.T) {
	d := NewDraft(KindPsychology)
	d.ApplyRemote(Payload{"assessment": "v1"}, true)
	d.Edit(Payload{"assessment": "local"})

	if !d.ApplyRemote(Payload{"assessment": "v2"}, true) {
		t.Fatal("read-only view must follow remote state")
	}
	if d.Data()["assessment"] != "v2" {
		t.Errorf("expected v2, got %v", d.Data())
	}
}

func TestDraft_SaveResetsToClean(t *testing.T) {
	d := NewDraft(KindPhysiotherapy)
	d.ApplyRemote(Payload{"history": "v1"}, false)
	d.Edit(Payload{"history": "v2"})
	d.ApplyRemote(Payload{"history": "v1.5"}, false) // now conflict-pending

	d.MarkSaved(Payload{"history": "v2"})
	if d.State() != StateClean {
		t.Errorf("expected clean after save, got %s", d.State())
	}
}

func TestFirstSession(t *testing.T) {
	chosen := time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)

	if !FirstSession(chosen, nil) {
		t.Error("no versions means first session")
	}

	earlier := chosen.AddDate(0, 0, -30)
	if FirstSession(chosen, &earlier) {
		t.Error("a chosen date after the earliest version is a follow-up")
	}

	later := chosen.AddDate(0, 0, 5)
	if !FirstSession(chosen, &later) {
		t.Error("a chosen date before the earliest version is still session 1")
	}
}

func TestSessionManager_AppliesMatchingEvents(t *testing.T) {
	bus := events.NewBus()
	pid := uuid.New()

	m := NewSessionManager(bus, pid, false)
	defer m.Close()

	bus.Publish(events.Event{
		Topic:     ReportsTopic,
		PatientID: pid,
		Kind:      string(KindPhysiotherapy),
		Data:      map[string]interface{}{"history": "pushed"},
	})

	deadline := time.After(time.Second)
	for {
		if m.Snapshot(KindPhysiotherapy)["history"] == "pushed" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("event never reached the draft")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSessionManager_IgnoresOtherPatients(t *testing.T) {
	bus := events.NewBus()
	m := NewSessionManager(bus, uuid.New(), false)
	defer m.Close()

	bus.Publish(events.Event{
		Topic:     ReportsTopic,
		PatientID: uuid.New(),
		Kind:      string(KindPhysiotherapy),
		Data:      map[string]interface{}{"history": "someone else"},
	})

	time.Sleep(20 * time.Millisecond)
	if len(m.Snapshot(KindPhysiotherapy)) != 0 {
		t.Error("foreign patient's event must not touch this session")
	}
}

func TestSessionManager_CloseReleasesSubscription(t *testing.T) {
	bus := events.NewBus()
	m := NewSessionManager(bus, uuid.New(), false)

	m.Close()
	if got := bus.SubscriberCount(ReportsTopic); got != 0 {
		t.Errorf("expected released subscription, %d left", got)
	}
}
