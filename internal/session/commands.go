// ABOUTME: Command surface of the orchestrator
// ABOUTME: Every transport and item operation runs on the session loop
package session

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/choirless/rehearsal/internal/engine"
	"github.com/choirless/rehearsal/internal/transport"
	"github.com/choirless/rehearsal/pkg/audio"
	"github.com/choirless/rehearsal/pkg/audio/decode"
	"github.com/choirless/rehearsal/pkg/audio/resample"
	"github.com/choirless/rehearsal/pkg/audio/waveform"
)

// ErrNoAudio is returned when an item has neither samples nor an audio URL.
var ErrNoAudio = errors.New("item has no audio")

// ItemSpec describes an item to place on the timeline. Samples, when set,
// are used instead of fetching AudioURL and must be at SampleRate
// (engine rate when zero).
type ItemSpec struct {
	ItemID     string    `json:"item_id"`
	LaneID     string    `json:"lane_id"`
	OwnerID    string    `json:"owner_id"`
	StartTime  float64   `json:"start_time"`
	AudioURL   string    `json:"audio_url"`
	VideoURL   string    `json:"video_url"`
	Duration   float64   `json:"duration"`
	Enabled    bool      `json:"enabled"`
	Samples    []float32 `json:"-"`
	SampleRate int       `json:"-"`
}

// ItemInfo is returned for a loaded item.
type ItemInfo struct {
	Duration float64 `json:"duration"`
	RMSImage []byte  `json:"rms_image"`
}

// StartCalibration begins quiet measurement followed by tick detection.
// Recording is stopped first because both share the input.
func (o *Orchestrator) StartCalibration(ctx context.Context) error {
	return o.call(ctx, func(s *AudioSession) {
		s.scheduler.StopRecording()
		s.calibrating = true
		s.calibration = CalibrationStatus{Phase: engine.PhaseMeasuringQuiet.String()}
		s.graph.Params().SetCalibrating(true)
		o.logger.Info("Calibration started")
	})
}

// StopCalibration aborts calibration without changing the stored latency.
func (o *Orchestrator) StopCalibration(ctx context.Context) error {
	return o.call(ctx, func(s *AudioSession) {
		if !s.calibrating {
			return
		}
		s.calibrating = false
		s.calibration.Phase = engine.PhaseIdle.String()
		s.graph.Params().SetCalibrating(false)
		o.logger.Info("Calibration stopped")
	})
}

// SetLatency overrides the round trip latency for the current device pair.
func (o *Orchestrator) SetLatency(ctx context.Context, seconds float64) error {
	return o.call(ctx, func(s *AudioSession) {
		s.graph.Params().SetLatency(seconds)
		if err := o.prefs.SetLatency(s.InputID, s.OutputID, seconds); err != nil {
			o.logger.Warn("Failed to persist latency", "error", err)
		}
	})
}

// SetMonitorGain sets how loudly the microphone is heard while playing.
func (o *Orchestrator) SetMonitorGain(gain float32) error {
	g := o.Graph()
	if g == nil {
		return ErrNotInitialised
	}
	g.Params().SetMonitorGain(gain)
	return nil
}

// SetNoise sets the masking noise volume and colour.
func (o *Orchestrator) SetNoise(volume float32, typ engine.NoiseType) error {
	g := o.Graph()
	if g == nil {
		return ErrNotInitialised
	}
	g.Params().SetNoise(volume, typ)
	return nil
}

// LoadItem decodes an item's audio and places it on the timeline. An item
// with the same id is replaced.
func (o *Orchestrator) LoadItem(ctx context.Context, spec ItemSpec) (ItemInfo, error) {
	item, info, err := o.prepareItem(ctx, spec)
	if err != nil {
		return ItemInfo{}, err
	}
	err = o.call(ctx, func(s *AudioSession) {
		s.scheduler.LoadItem(item)
	})
	if err != nil {
		return ItemInfo{}, err
	}
	o.logger.Info("Item loaded", "item", item.ID, "lane", item.LaneID, "start", item.StartTime, "duration", item.Duration)
	return info, nil
}

// LoadBackingTrack decodes and installs the track that defines the piece.
func (o *Orchestrator) LoadBackingTrack(ctx context.Context, spec ItemSpec) (ItemInfo, error) {
	spec.Enabled = true
	item, info, err := o.prepareItem(ctx, spec)
	if err != nil {
		return ItemInfo{}, err
	}
	err = o.call(ctx, func(s *AudioSession) {
		s.scheduler.LoadBackingTrack(item)
	})
	if err != nil {
		return ItemInfo{}, err
	}
	o.logger.Info("Backing track loaded", "item", item.ID, "duration", item.Duration)
	return info, nil
}

func (o *Orchestrator) prepareItem(ctx context.Context, spec ItemSpec) (*transport.Item, ItemInfo, error) {
	buf, err := o.itemAudio(ctx, spec)
	if err != nil {
		return nil, ItemInfo{}, err
	}

	duration := spec.Duration
	if duration <= 0 || duration > buf.Duration() {
		duration = buf.Duration()
	}

	image, err := waveform.PNG(buf)
	if err != nil {
		o.logger.Warn("Failed to render waveform", "item", spec.ItemID, "error", err)
	}

	item := &transport.Item{
		ID:        spec.ItemID,
		OwnerID:   spec.OwnerID,
		LaneID:    spec.LaneID,
		StartTime: spec.StartTime,
		Duration:  duration,
		Samples:   buf.Samples,
		Enabled:   spec.Enabled,
		VideoURL:  spec.VideoURL,
	}
	return item, ItemInfo{Duration: duration, RMSImage: image}, nil
}

// itemAudio returns the item's samples at the engine rate.
func (o *Orchestrator) itemAudio(ctx context.Context, spec ItemSpec) (audio.Buffer, error) {
	rate := o.cfg.SampleRate
	if spec.Samples != nil {
		src := spec.SampleRate
		if src <= 0 {
			src = rate
		}
		return resample.Buffer(audio.Buffer{Samples: spec.Samples, SampleRate: src}, rate), nil
	}
	if spec.AudioURL == "" {
		return audio.Buffer{}, fmt.Errorf("%w: %s", ErrNoAudio, spec.ItemID)
	}
	if o.fetcher == nil {
		return audio.Buffer{}, fmt.Errorf("no asset fetcher for %s", spec.AudioURL)
	}

	data, err := o.fetcher.Fetch(ctx, spec.AudioURL)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to fetch item %s: %w", spec.ItemID, err)
	}
	buf, err := decode.Bytes(path.Base(spec.AudioURL), data, rate)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to decode item %s: %w", spec.ItemID, err)
	}
	return resample.Buffer(buf, rate), nil
}

// DeleteItem removes an item and silences it.
func (o *Orchestrator) DeleteItem(ctx context.Context, id string) error {
	var opErr error
	err := o.call(ctx, func(s *AudioSession) {
		opErr = s.scheduler.DeleteItem(id)
	})
	return errors.Join(err, opErr)
}

// SetItemEnabled includes or excludes an item from playback.
func (o *Orchestrator) SetItemEnabled(ctx context.Context, id string, enabled bool) error {
	var opErr error
	err := o.call(ctx, func(s *AudioSession) {
		opErr = s.scheduler.SetItemEnabled(id, enabled)
	})
	return errors.Join(err, opErr)
}

// MoveItem changes an item's start time.
func (o *Orchestrator) MoveItem(ctx context.Context, id string, startTime float64) error {
	var opErr error
	err := o.call(ctx, func(s *AudioSession) {
		opErr = s.scheduler.MoveItem(id, startTime)
	})
	return errors.Join(err, opErr)
}

// ClearAll stops the transport and drops every item and the backing track.
func (o *Orchestrator) ClearAll(ctx context.Context) error {
	return o.call(ctx, func(s *AudioSession) {
		s.scheduler.ClearAll()
	})
}

// Play starts the transport startTime seconds into the piece.
func (o *Orchestrator) Play(ctx context.Context, startTime float64) error {
	var opErr error
	err := o.call(ctx, func(s *AudioSession) {
		if s.scheduler.Play(startTime) {
			return
		}
		if s.scheduler.BackingTrack() == nil {
			opErr = transport.ErrNothingLoaded
		} else {
			opErr = transport.ErrAlreadyPlaying
		}
	})
	return errors.Join(err, opErr)
}

// Stop halts the transport and any recording. Stopping twice succeeds.
func (o *Orchestrator) Stop(ctx context.Context) error {
	return o.call(ctx, func(s *AudioSession) {
		s.scheduler.Stop()
	})
}

// Seek moves the cursor. It fails while recording.
func (o *Orchestrator) Seek(ctx context.Context, t float64) error {
	var opErr error
	err := o.call(ctx, func(s *AudioSession) {
		if !s.scheduler.Seek(t) {
			opErr = transport.ErrRecording
		}
	})
	return errors.Join(err, opErr)
}

// StartRecording arms the recorder. The transport must be playing.
func (o *Orchestrator) StartRecording(ctx context.Context) error {
	var opErr error
	err := o.call(ctx, func(s *AudioSession) {
		if s.calibrating {
			s.calibrating = false
			s.graph.Params().SetCalibrating(false)
		}
		if !s.scheduler.StartRecording() {
			opErr = transport.ErrNotPlaying
		}
	})
	return errors.Join(err, opErr)
}

// StopRecording disarms the recorder. The take arrives as a
// RecordingFinishedEvent once the latency tail has been captured.
func (o *Orchestrator) StopRecording(ctx context.Context) error {
	var opErr error
	err := o.call(ctx, func(s *AudioSession) {
		if !s.scheduler.StopRecording() {
			opErr = transport.ErrNotRecording
		}
	})
	return errors.Join(err, opErr)
}

// EnableLane makes a lane audible.
func (o *Orchestrator) EnableLane(ctx context.Context, laneID string) error {
	var opErr error
	err := o.call(ctx, func(s *AudioSession) {
		opErr = s.scheduler.EnableLane(laneID)
	})
	return errors.Join(err, opErr)
}

// DisableLane silences a lane.
func (o *Orchestrator) DisableLane(ctx context.Context, laneID string) error {
	var opErr error
	err := o.call(ctx, func(s *AudioSession) {
		opErr = s.scheduler.DisableLane(laneID)
	})
	return errors.Join(err, opErr)
}

// SetPunchTimes arms automatic recording between in and out.
func (o *Orchestrator) SetPunchTimes(ctx context.Context, in, out float64) error {
	var opErr error
	err := o.call(ctx, func(s *AudioSession) {
		opErr = s.scheduler.SetPunchTimes(in, out)
	})
	return errors.Join(err, opErr)
}

// ClearPunchTimes disarms automatic recording.
func (o *Orchestrator) ClearPunchTimes(ctx context.Context) error {
	return o.call(ctx, func(s *AudioSession) {
		s.scheduler.ClearPunchTimes()
	})
}

// AddTransportTimeCallback registers fn for every transport time update.
// fn runs on the session loop and must not call back into the
// orchestrator. The returned function removes it.
func (o *Orchestrator) AddTransportTimeCallback(ctx context.Context, fn func(offset float64)) (func(), error) {
	var remove func()
	err := o.call(ctx, func(s *AudioSession) {
		remove = s.scheduler.AddTimeObserver(fn)
	})
	if err != nil {
		return nil, err
	}
	return func() {
		// The session may already be gone, in which case so is the observer
		_ = o.call(context.Background(), func(*AudioSession) { remove() })
	}, nil
}
