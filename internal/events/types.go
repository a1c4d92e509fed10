// ABOUTME: Event types published by the session
// ABOUTME: Calibration, recording, transport and device events
package events

// Event type constants for kelindar/event.
const (
	TypeQuietCalibrationStart uint32 = iota + 1
	TypeQuietCalibrationEnd
	TypeCalibrationSample
	TypeCalibrationDone
	TypeRecordingFinished
	TypeTransportTimeUpdated
	TypeTransportStateChanged
	TypeDeviceError
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// QuietCalibrationStartEvent marks the start of the ambient noise measurement.
type QuietCalibrationStartEvent struct{}

// Type returns the event type identifier for QuietCalibrationStartEvent.
func (e QuietCalibrationStartEvent) Type() uint32 { return TypeQuietCalibrationStart }

// QuietCalibrationEndEvent carries the ambient RMS statistics.
type QuietCalibrationEndEvent struct {
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
	SD   float64 `json:"sd"`
}

// Type returns the event type identifier for QuietCalibrationEndEvent.
func (e QuietCalibrationEndEvent) Type() uint32 { return TypeQuietCalibrationEnd }

// CalibrationSampleEvent reports one accepted latency measurement and the
// statistics of the current best cluster.
type CalibrationSampleEvent struct {
	Latency float64 `json:"latency"`
	Mean    float64 `json:"mean"`
	SD      float64 `json:"sd"`
}

// Type returns the event type identifier for CalibrationSampleEvent.
func (e CalibrationSampleEvent) Type() uint32 { return TypeCalibrationSample }

// CalibrationDoneEvent carries the final round-trip latency.
type CalibrationDoneEvent struct {
	Latency     float64 `json:"latency"`
	SD          float64 `json:"sd"`
	SampleCount int     `json:"sample_count"`
}

// Type returns the event type identifier for CalibrationDoneEvent.
func (e CalibrationDoneEvent) Type() uint32 { return TypeCalibrationDone }

// RecordingFinishedEvent carries a completed, latency-compensated take.
type RecordingFinishedEvent struct {
	LayerID    string    `json:"layer_id"`
	AudioData  []float32 `json:"-"`
	SampleRate int       `json:"sample_rate"`
	StartTime  float64   `json:"start_time"`
	Duration   float64   `json:"duration"`
}

// Type returns the event type identifier for RecordingFinishedEvent.
func (e RecordingFinishedEvent) Type() uint32 { return TypeRecordingFinished }

// TransportTimeUpdatedEvent reports the transport position in seconds.
type TransportTimeUpdatedEvent struct {
	OffsetSeconds float64 `json:"offset_seconds"`
}

// Type returns the event type identifier for TransportTimeUpdatedEvent.
func (e TransportTimeUpdatedEvent) Type() uint32 { return TypeTransportTimeUpdated }

// TransportStateChangedEvent reports play and record state transitions.
type TransportStateChangedEvent struct {
	Playing   bool    `json:"playing"`
	Recording bool    `json:"recording"`
	Offset    float64 `json:"offset"`
}

// Type returns the event type identifier for TransportStateChangedEvent.
func (e TransportStateChangedEvent) Type() uint32 { return TypeTransportStateChanged }

// DeviceErrorEvent reports a failed device operation.
type DeviceErrorEvent struct {
	Op    string `json:"op"`
	Error string `json:"error"`
}

// Type returns the event type identifier for DeviceErrorEvent.
func (e DeviceErrorEvent) Type() uint32 { return TypeDeviceError }

// Name returns the wire name of an event.
func Name(ev Event) string {
	switch ev.(type) {
	case QuietCalibrationStartEvent:
		return "quietCalibrationStart"
	case QuietCalibrationEndEvent:
		return "quietCalibrationEnd"
	case CalibrationSampleEvent:
		return "calibrationSample"
	case CalibrationDoneEvent:
		return "calibrationDone"
	case RecordingFinishedEvent:
		return "recordingFinished"
	case TransportTimeUpdatedEvent:
		return "transportTimeUpdated"
	case TransportStateChangedEvent:
		return "transportStateChanged"
	case DeviceErrorEvent:
		return "deviceError"
	default:
		return "unknown"
	}
}
