// ABOUTME: Session loop tick: engine notifications, housekeeping, scheduling
// ABOUTME: Maps audio thread results to bus events and persists calibration
package session

import (
	"context"

	"github.com/choirless/rehearsal/internal/engine"
	"github.com/choirless/rehearsal/internal/events"
	"github.com/choirless/rehearsal/internal/transport"
	"github.com/choirless/rehearsal/pkg/audio"
	"github.com/google/uuid"
)

// maxNotificationsPerTick bounds the work done in one tick so scheduling
// passes keep their cadence.
const maxNotificationsPerTick = 64

// CalibrationStatus summarises calibration progress for status views.
type CalibrationStatus struct {
	Phase       string  `json:"phase"`
	AmbientMean float64 `json:"ambient_mean"`
	AmbientMax  float64 `json:"ambient_max"`
	AmbientSD   float64 `json:"ambient_sd"`
	LastLatency float64 `json:"last_latency"`
	Mean        float64 `json:"mean"`
	SD          float64 `json:"sd"`
	Samples     int     `json:"samples"`
}

// Status is a point-in-time view of the session.
type Status struct {
	Initialised  bool                 `json:"initialised"`
	InputID      string               `json:"input_id"`
	OutputID     string               `json:"output_id"`
	SampleRate   int                  `json:"sample_rate"`
	Latency      float64              `json:"latency"`
	Playing      bool                 `json:"playing"`
	Recording    bool                 `json:"recording"`
	Offset       float64              `json:"offset"`
	PunchIn      *float64             `json:"punch_in,omitempty"`
	PunchOut     *float64             `json:"punch_out,omitempty"`
	BackingTrack string               `json:"backing_track"`
	Items        int                  `json:"items"`
	Lanes        []string             `json:"lanes"`
	Layers       int                  `json:"layers"`
	Calibrating  bool                 `json:"calibrating"`
	Calibration  CalibrationStatus    `json:"calibration"`
	Engine       engine.StatsSnapshot `json:"engine"`
	Scheduler    transport.Stats      `json:"scheduler"`
	ClockDrift   float64              `json:"clock_drift"`
	ClockQuality string               `json:"clock_quality"`
}

func (o *Orchestrator) tick(s *AudioSession) {
	o.drainNotifications(s)
	s.graph.Maintain()
	s.clock.Update()
	s.scheduler.Pass()
	o.enforceMaxRecording(s)
}

func (o *Orchestrator) drainNotifications(s *AudioSession) {
	for range maxNotificationsPerTick {
		select {
		case n := <-s.graph.Notifications():
			o.handleNotification(s, n)
		default:
			return
		}
	}
}

func (o *Orchestrator) handleNotification(s *AudioSession, n engine.Notification) {
	switch n.Kind {
	case engine.NotifyQuietStart:
		s.calibration = CalibrationStatus{Phase: engine.PhaseMeasuringQuiet.String()}
		o.bus.Publish(events.QuietCalibrationStartEvent{})

	case engine.NotifyQuietEnd:
		s.calibration.Phase = engine.PhaseMeasuringLatency.String()
		s.calibration.AmbientMean = n.Mean
		s.calibration.AmbientMax = n.Max
		s.calibration.AmbientSD = n.SD
		o.logger.Info("Ambient noise measured", "mean", n.Mean, "max", n.Max, "sd", n.SD)
		o.bus.Publish(events.QuietCalibrationEndEvent{Mean: n.Mean, Max: n.Max, SD: n.SD})

	case engine.NotifyCalibrationSample:
		s.calibration.LastLatency = n.Latency
		s.calibration.Mean = n.Mean
		s.calibration.SD = n.SD
		s.calibration.Samples = n.Count
		o.logger.Debug("Calibration sample", "latency", n.Latency, "mean", n.Mean, "sd", n.SD, "count", n.Count)
		o.bus.Publish(events.CalibrationSampleEvent{Latency: n.Latency, Mean: n.Mean, SD: n.SD})

	case engine.NotifyCalibrationDone:
		if !s.calibrating {
			return
		}
		o.finishCalibration(s, n)

	case engine.NotifyTake:
		o.finishTake(s, n.Take)

	case engine.NotifyVoiceEnded:
		o.logger.Debug("Voice ended", "item", n.ItemID, "frame", n.Frame)
	}
}

func (o *Orchestrator) finishCalibration(s *AudioSession, n engine.Notification) {
	s.calibrating = false
	s.graph.Params().SetCalibrating(false)
	s.graph.Params().SetLatency(n.Latency)
	s.calibration.Phase = engine.PhaseDone.String()
	s.calibration.Mean = n.Latency
	s.calibration.SD = n.SD
	s.calibration.Samples = n.Count

	if err := o.prefs.SetLatency(s.InputID, s.OutputID, n.Latency); err != nil {
		o.logger.Warn("Failed to persist latency", "error", err)
	}
	o.logger.Info("Calibration done", "latency", n.Latency, "sd", n.SD, "samples", n.Count)
	o.bus.Publish(events.CalibrationDoneEvent{Latency: n.Latency, SD: n.SD, SampleCount: n.Count})
}

func (o *Orchestrator) finishTake(s *AudioSession, take engine.Take) {
	layer := Layer{
		ID:         uuid.NewString(),
		Samples:    s.graph.Assemble(take),
		SampleRate: o.cfg.SampleRate,
		StartTime:  take.StartTime,
	}
	s.layers++

	if o.cfg.ExportDir != "" {
		p, err := exportLayer(o.cfg.ExportDir, o.cfg.ExportFormat, layer)
		if err != nil {
			o.logger.Error("Failed to export layer", "layer", layer.ID, "error", err)
		} else {
			layer.Path = p
		}
	}

	duration := audio.FramesToSeconds(int64(len(layer.Samples)), layer.SampleRate)
	o.logger.Info("Recording finished", "layer", layer.ID, "start", layer.StartTime, "duration", duration, "path", layer.Path)
	o.bus.Publish(events.RecordingFinishedEvent{
		LayerID:    layer.ID,
		AudioData:  layer.Samples,
		SampleRate: layer.SampleRate,
		StartTime:  layer.StartTime,
		Duration:   duration,
	})
	if o.LayerSink != nil {
		o.LayerSink(layer)
	}
}

func (o *Orchestrator) enforceMaxRecording(s *AudioSession) {
	recording := s.scheduler.Recording()
	offset := s.scheduler.State().CurrentOffset
	if recording && !s.wasRecording {
		s.recordingSince = offset
	}
	s.wasRecording = recording
	if !recording || o.cfg.MaxRecording <= 0 {
		return
	}
	limit := o.cfg.MaxRecording.Seconds()
	if offset-s.recordingSince >= limit {
		o.logger.Warn("Recording reached maximum length", "limit", o.cfg.MaxRecording)
		s.scheduler.StopRecording()
		s.wasRecording = false
	}
}

// Status reports the session state. It is safe to call from any goroutine
// except a transport time callback.
func (o *Orchestrator) Status() Status {
	var st Status
	err := o.call(context.Background(), func(s *AudioSession) {
		state := s.scheduler.State()
		_, drift, quality := s.clock.Stats()
		st = Status{
			Initialised:  true,
			InputID:      s.InputID,
			OutputID:     s.OutputID,
			SampleRate:   s.graph.SampleRate(),
			Latency:      s.graph.Params().Latency(),
			Playing:      state.Playing,
			Recording:    s.scheduler.Recording(),
			Offset:       state.CurrentOffset,
			PunchIn:      state.PunchIn,
			PunchOut:     state.PunchOut,
			Items:        len(s.scheduler.Items()),
			Lanes:        s.scheduler.Lanes(),
			Layers:       s.layers,
			Calibrating:  s.calibrating,
			Calibration:  s.calibration,
			Engine:       s.graph.Stats().Snapshot(),
			Scheduler:    s.scheduler.Stats(),
			ClockDrift:   drift,
			ClockQuality: quality.String(),
		}
		if b := s.scheduler.BackingTrack(); b != nil {
			st.BackingTrack = b.ID
		}
	})
	if err != nil {
		return Status{}
	}
	return st
}
