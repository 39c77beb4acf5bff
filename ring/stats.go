package ring

import (
	"sync"
	"time"
)

// Stats counts transfer outcomes over the life of a run.
type Stats struct {
	mu sync.RWMutex

	counts      map[Outcome]uint64
	submissions uint64
	total       uint64

	startTime  time.Time
	lastUpdate time.Time
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Counts      map[Outcome]uint64
	Submissions uint64
	Total       uint64
	Elapsed     time.Duration
	LastUpdate  time.Time
}

func NewStats() *Stats {
	now := time.Now()
	return &Stats{
		counts:     make(map[Outcome]uint64),
		startTime:  now,
		lastUpdate: now,
	}
}

// Record adds the result of one transfer-and-confirm cycle.
func (s *Stats) Record(res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[res.Outcome]++
	s.submissions += uint64(len(res.Submissions))
	s.total++
	s.lastUpdate = time.Now()
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Outcome]uint64, len(s.counts))
	for k, v := range s.counts {
		counts[k] = v
	}
	return StatsSnapshot{
		Counts:      counts,
		Submissions: s.submissions,
		Total:       s.total,
		Elapsed:     time.Since(s.startTime),
		LastUpdate:  s.lastUpdate,
	}
}

// Since returns the activity recorded between prev and s.
func (s StatsSnapshot) Since(prev StatsSnapshot) StatsSnapshot {
	counts := make(map[Outcome]uint64, len(s.Counts))
	for o, n := range s.Counts {
		if d := n - prev.Counts[o]; d > 0 {
			counts[o] = d
		}
	}
	return StatsSnapshot{
		Counts:      counts,
		Submissions: s.Submissions - prev.Submissions,
		Total:       s.Total - prev.Total,
		Elapsed:     s.Elapsed - prev.Elapsed,
		LastUpdate:  s.LastUpdate,
	}
}

// LogCtx renders the snapshot as logger key/value pairs, skipping zero counts.
func (s StatsSnapshot) LogCtx() []interface{} {
	ctx := []interface{}{"transfers", s.Total, "submitted", s.Submissions}
	for o := OutcomeConfirmed; o <= OutcomeCanceled; o++ {
		if n := s.Counts[o]; n > 0 {
			ctx = append(ctx, o.String(), n)
		}
	}
	return append(ctx, "elapsed", s.Elapsed.Round(time.Second))
}
