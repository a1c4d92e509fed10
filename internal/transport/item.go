// ABOUTME: Transport data model: timeline items and transport state
// ABOUTME: Items are immutable PCM buffers placed on lanes at a start time
package transport

import "errors"

var (
	// ErrNothingLoaded is returned when playing without a backing track.
	ErrNothingLoaded = errors.New("no backing track loaded")
	// ErrAlreadyPlaying is returned when play is called while playing.
	ErrAlreadyPlaying = errors.New("transport already playing")
	// ErrNotPlaying is returned when recording is started while stopped.
	ErrNotPlaying = errors.New("transport not playing")
	// ErrRecording is returned when seeking while recording.
	ErrRecording = errors.New("cannot seek while recording")
	// ErrNotRecording is returned when stopping a recording that is not running.
	ErrNotRecording = errors.New("not recording")
	// ErrUnknownItem is returned for item operations on a missing id.
	ErrUnknownItem = errors.New("unknown item")
	// ErrInvalidPunch is returned when punch-in is not before punch-out.
	ErrInvalidPunch = errors.New("punch in must be before punch out")
	// ErrInvalidLane is returned for an empty or reserved lane id.
	ErrInvalidLane = errors.New("invalid lane id")
	// ErrLaneNotEnabled is returned when disabling a lane that is not enabled.
	ErrLaneNotEnabled = errors.New("lane not enabled")
)

// backingLane tags the backing track voice. Lane commands never accept it.
const backingLane = "\x00backing"

// Item is a prerecorded buffer on the timeline. Samples are mono at the
// engine rate and are never modified after loading.
type Item struct {
	ID        string
	OwnerID   string
	LaneID    string
	StartTime float64 // seconds from transport zero
	Duration  float64
	Samples   []float32
	Enabled   bool
	VideoURL  string
}

// End returns the transport time the item finishes.
func (it *Item) End() float64 {
	return it.StartTime + it.Duration
}

// State is the transport state owned by the Scheduler.
type State struct {
	Playing            bool
	TransportStartTime *float64 // audio clock seconds of transport zero, nil when stopped
	CurrentOffset      float64
	PunchIn            *float64
	PunchOut           *float64
}

func (s State) clone() State {
	out := s
	out.TransportStartTime = clonePtr(s.TransportStartTime)
	out.PunchIn = clonePtr(s.PunchIn)
	out.PunchOut = clonePtr(s.PunchOut)
	return out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
