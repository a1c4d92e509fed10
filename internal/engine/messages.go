// ABOUTME: Commands into and notifications out of the audio callback
// ABOUTME: Closed set of variants dispatched with type switches
package engine

import "github.com/choirless/rehearsal/pkg/audio"

// Command is a structural change applied at the next quantum boundary.
type Command interface {
	isCommand()
}

// StartVoice schedules a voice in the mixer.
type StartVoice struct {
	Voice *Voice
}

// StopItem silences every voice playing an item.
type StopItem struct {
	ItemID string
}

// StopLane silences every voice on a lane.
type StopLane struct {
	LaneID string
}

// ClearVoices silences every voice.
type ClearVoices struct{}

// SetTickRing replaces the calibration tick pattern.
type SetTickRing struct {
	Ring       *audio.Ring
	PeakOffset int
}

// AbortCapture drops any take in progress without emitting it.
type AbortCapture struct{}

func (StartVoice) isCommand()   {}
func (StopItem) isCommand()     {}
func (StopLane) isCommand()     {}
func (ClearVoices) isCommand()  {}
func (SetTickRing) isCommand()  {}
func (AbortCapture) isCommand() {}

// NotificationKind identifies a Notification.
type NotificationKind uint8

const (
	NotifyQuietStart NotificationKind = iota + 1
	NotifyQuietEnd
	NotifyCalibrationSample
	NotifyCalibrationDone
	NotifyTake
	NotifyVoiceEnded
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyQuietStart:
		return "quiet-start"
	case NotifyQuietEnd:
		return "quiet-end"
	case NotifyCalibrationSample:
		return "calibration-sample"
	case NotifyCalibrationDone:
		return "calibration-done"
	case NotifyTake:
		return "take"
	case NotifyVoiceEnded:
		return "voice-ended"
	default:
		return "unknown"
	}
}

// Notification is a result produced on the audio thread. It is a single
// concrete type so sending it never allocates.
type Notification struct {
	Kind  NotificationKind
	Frame int64

	// Calibration statistics
	Mean    float64
	Max     float64
	SD      float64
	Latency float64
	Count   int

	Take   Take
	ItemID string
}

// Take is a finished recording still held in capture blocks.
type Take struct {
	Blocks    [][]float32
	BlockSize int
	Samples   int     // samples captured across Blocks
	Skip      int     // leading samples to drop for latency compensation
	StartTime float64 // transport seconds
}

// Len returns the number of samples after latency compensation.
func (t Take) Len() int {
	return max(t.Samples-t.Skip, 0)
}
