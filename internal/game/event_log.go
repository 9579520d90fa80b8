package game

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Audit event types recorded in the JSONL lifecycle log.
const (
	AuditJoin       = "join"
	AuditMatchStart = "match_start"
	AuditEliminated = "eliminated"
	AuditMatchEnd   = "match_end"
	AuditFlagged    = "anticheat_flagged"
)

const (
	auditBufferSize   = 1024
	auditMaxPerSecond = 2000
)

// AuditEvent is one row of the lifecycle audit log.
type AuditEvent struct {
	Time          int64          `json:"time"` // unix nano
	Type          string         `json:"type"`
	MatchID       string         `json:"matchId,omitempty"`
	ParticipantID string         `json:"participantId,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// EventLog appends match lifecycle events to a JSONL file from a dedicated
// writer goroutine. Emission never blocks the simulation: events are dropped
// when the buffer is full or the global rate limit trips. A nil *EventLog is
// a valid no-op log.
type EventLog struct {
	limiter *rate.Limiter
	ch      chan AuditEvent
	stop    chan struct{}

	file *os.File
	wg   sync.WaitGroup

	running  atomic.Bool
	stopOnce sync.Once

	total   atomic.Uint64
	dropped atomic.Uint64
}

// NewEventLog creates an event log that is inert until Start.
func NewEventLog() *EventLog {
	return &EventLog{
		limiter: rate.NewLimiter(auditMaxPerSecond, auditMaxPerSecond/10),
		ch:      make(chan AuditEvent, auditBufferSize),
		stop:    make(chan struct{}),
	}
}

// Start opens the output file and launches the writer goroutine.
func (el *EventLog) Start(path string) error {
	if el == nil || el.running.Load() {
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	el.file = file
	el.running.Store(true)
	el.wg.Add(1)
	go el.writerLoop()
	return nil
}

// Stop drains buffered events and closes the file.
func (el *EventLog) Stop() {
	if el == nil {
		return
	}
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stop)
		el.wg.Wait()
		if el.file != nil {
			el.file.Close()
		}
	})
}

// Emit records an event. Returns false if the log is inactive, rate limited
// or full.
func (el *EventLog) Emit(evt AuditEvent) bool {
	if el == nil || !el.running.Load() {
		return false
	}
	if !el.limiter.Allow() {
		el.dropped.Add(1)
		return false
	}
	evt.Time = time.Now().UnixNano()
	select {
	case el.ch <- evt:
		el.total.Add(1)
		return true
	default:
		el.dropped.Add(1)
		return false
	}
}

// Stats returns counters for monitoring.
func (el *EventLog) Stats() map[string]uint64 {
	if el == nil {
		return map[string]uint64{"total": 0, "dropped": 0}
	}
	return map[string]uint64{
		"total":   el.total.Load(),
		"dropped": el.dropped.Load(),
	}
}

func (el *EventLog) writerLoop() {
	defer el.wg.Done()
	enc := json.NewEncoder(el.file)
	write := func(evt AuditEvent) {
		if err := enc.Encode(evt); err != nil {
			log.Printf("⚠️ Audit log write failed: %v", err)
		}
	}
	for {
		select {
		case evt := <-el.ch:
			write(evt)
		case <-el.stop:
			// Drain whatever is still buffered before closing.
			for {
				select {
				case evt := <-el.ch:
					write(evt)
				default:
					return
				}
			}
		}
	}
}
