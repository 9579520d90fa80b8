package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestEventLogWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatalf("start: %v", err)
	}

	if !el.Emit(AuditEvent{Type: AuditJoin, ParticipantID: "p1", Detail: map[string]any{"mode": "duel"}}) {
		t.Fatal("emit rejected")
	}
	if !el.Emit(AuditEvent{Type: AuditMatchEnd, MatchID: "m1"}) {
		t.Fatal("emit rejected")
	}
	el.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var events []AuditEvent
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var evt AuditEvent
		if err := json.Unmarshal(sc.Bytes(), &evt); err != nil {
			t.Fatalf("bad JSONL line %q: %v", sc.Text(), err)
		}
		events = append(events, evt)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != AuditJoin || events[0].ParticipantID != "p1" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Type != AuditMatchEnd || events[1].MatchID != "m1" {
		t.Errorf("second event = %+v", events[1])
	}
	if events[0].Time == 0 {
		t.Error("emit should stamp the event time")
	}
}

func TestEventLogInertWithoutStart(t *testing.T) {
	el := NewEventLog()
	if el.Emit(AuditEvent{Type: AuditJoin}) {
		t.Error("emit before Start should be dropped")
	}
}

func TestEventLogNilReceiverIsNoop(t *testing.T) {
	var el *EventLog
	if el.Emit(AuditEvent{Type: AuditJoin}) {
		t.Error("nil log accepted an event")
	}
	el.Stop()
	if stats := el.Stats(); stats["total"] != 0 {
		t.Error("nil log reports activity")
	}
}

func TestEventLogDropsWhenSaturated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer el.Stop()

	// Well past the rate limit burst; the log must shed load, never block.
	dropped := 0
	for i := 0; i < auditMaxPerSecond; i++ {
		if !el.Emit(AuditEvent{Type: AuditEliminated}) {
			dropped++
		}
	}
	if dropped == 0 {
		t.Error("saturating emit loop should drop events")
	}
	if el.Stats()["dropped"] == 0 {
		t.Error("drop counter not incremented")
	}
}
