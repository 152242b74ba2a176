package outbox

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// MetricsCollector receives outbox processing measurements.
type MetricsCollector interface {
	RecordEntryProcessed(kind string, success bool, duration time.Duration)
	RecordPublishAttempt(eventType string, attempt int, success bool)
}

// Stats counts worker activity with atomics so health checks can read it
// without taking the worker lock.
type Stats struct {
	processed     atomic.Uint64
	failed        atomic.Uint64
	published     atomic.Uint64
	publishFailed atomic.Uint64
	lastEvent     atomic.Int64 // unix nanos

	clock clockwork.Clock
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Processed     uint64    `json:"processed"`
	Failed        uint64    `json:"failed"`
	Published     uint64    `json:"published"`
	PublishFailed uint64    `json:"publishFailed"`
	LastEventTime time.Time `json:"lastEventTime"`
}

func (s *Stats) RecordEntryProcessed(_ string, success bool, _ time.Duration) {
	if success {
		s.processed.Add(1)
	} else {
		s.failed.Add(1)
	}
	now := time.Now()
	if s.clock != nil {
		now = s.clock.Now()
	}
	s.lastEvent.Store(now.UnixNano())
}

func (s *Stats) RecordPublishAttempt(_ string, _ int, success bool) {
	if success {
		s.published.Add(1)
	} else {
		s.publishFailed.Add(1)
	}
}

// Snapshot reads every counter.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Processed:     s.processed.Load(),
		Failed:        s.failed.Load(),
		Published:     s.published.Load(),
		PublishFailed: s.publishFailed.Load(),
	}
	if ns := s.lastEvent.Load(); ns != 0 {
		snap.LastEventTime = time.Unix(0, ns)
	}
	return snap
}
