// ABOUTME: Counters updated by the audio callback
// ABOUTME: Read by metrics and the status view without locking
package engine

import "sync/atomic"

// Stats are monotonically increasing callback counters plus a few gauges.
type Stats struct {
	QuantaProcessed       atomic.Uint64
	CommandsApplied       atomic.Uint64
	NotificationsDropped  atomic.Uint64
	CaptureAllocFallbacks atomic.Uint64
	TakesFinished         atomic.Uint64
	VoicesStarted         atomic.Uint64
	UnderrunFrames        atomic.Uint64
	OverrunFrames         atomic.Uint64
	ActiveVoices          atomic.Int64
	PendingVoices         atomic.Int64
}

// StatsSnapshot is a plain copy of Stats.
type StatsSnapshot struct {
	QuantaProcessed       uint64
	CommandsApplied       uint64
	NotificationsDropped  uint64
	CaptureAllocFallbacks uint64
	TakesFinished         uint64
	VoicesStarted         uint64
	UnderrunFrames        uint64
	OverrunFrames         uint64
	ActiveVoices          int64
	PendingVoices         int64
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		QuantaProcessed:       s.QuantaProcessed.Load(),
		CommandsApplied:       s.CommandsApplied.Load(),
		NotificationsDropped:  s.NotificationsDropped.Load(),
		CaptureAllocFallbacks: s.CaptureAllocFallbacks.Load(),
		TakesFinished:         s.TakesFinished.Load(),
		VoicesStarted:         s.VoicesStarted.Load(),
		UnderrunFrames:        s.UnderrunFrames.Load(),
		OverrunFrames:         s.OverrunFrames.Load(),
		ActiveVoices:          s.ActiveVoices.Load(),
		PendingVoices:         s.PendingVoices.Load(),
	}
}
