package orchestrator

import "sync/atomic"

// Stats holds one source's run counters. Workers for that source are the
// only writers; progress logging and the status API read snapshots.
//
// For a completed, non-cancelled source run:
//
//	Processed == Succeeded + Failed + Skipped
//	Processed == Queued
//
// Skips are a deliberate third outcome category: they never count toward
// Succeeded or Failed.
type Stats struct {
	Discovered atomic.Int64
	Queued     atomic.Int64
	Processed  atomic.Int64
	Succeeded  atomic.Int64
	Failed     atomic.Int64
	Skipped    atomic.Int64
}

// StatsSnapshot is a point-in-time copy of one source's counters.
type StatsSnapshot struct {
	Discovered int64 `json:"discovered"`
	Queued     int64 `json:"queued"`
	Processed  int64 `json:"processed"`
	Succeeded  int64 `json:"succeeded"`
	Failed     int64 `json:"failed"`
	Skipped    int64 `json:"skipped"`
}

// Snapshot copies the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Discovered: s.Discovered.Load(),
		Queued:     s.Queued.Load(),
		Processed:  s.Processed.Load(),
		Succeeded:  s.Succeeded.Load(),
		Failed:     s.Failed.Load(),
		Skipped:    s.Skipped.Load(),
	}
}

// Percent returns processing progress against the queued total, in [0, 100].
func (s StatsSnapshot) Percent() float64 {
	if s.Queued == 0 {
		return 0
	}
	return float64(s.Processed) / float64(s.Queued) * 100
}
