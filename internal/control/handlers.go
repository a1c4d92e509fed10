// ABOUTME: Control request handlers
// ABOUTME: Maps message types onto orchestrator operations
package control

import (
	"context"
	"encoding/json"

	"github.com/choirless/rehearsal/internal/engine"
	"github.com/choirless/rehearsal/internal/session"
)

type handlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

type devicesRequest struct {
	Reload bool `json:"reload"`
}

type initRequest struct {
	InputID  string `json:"input_id"`
	OutputID string `json:"output_id"`
}

type itemRequest struct {
	ItemID    string  `json:"item_id"`
	Enabled   bool    `json:"enabled"`
	StartTime float64 `json:"start_time"`
}

type laneRequest struct {
	LaneID string `json:"lane_id"`
}

type timeRequest struct {
	Time float64 `json:"time"`
}

type punchRequest struct {
	In  float64 `json:"in"`
	Out float64 `json:"out"`
}

type latencyRequest struct {
	Latency float64 `json:"latency"`
}

type noiseRequest struct {
	Volume float32 `json:"volume"`
	Type   string  `json:"type"`
}

type gainRequest struct {
	Gain float32 `json:"gain"`
}

// withPayload decodes the payload into a fresh T before calling fn.
func withPayload[T any](fn func(ctx context.Context, req T) (any, error)) handlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req T
		if err := decodePayload(payload, &req); err != nil {
			return nil, err
		}
		return fn(ctx, req)
	}
}

// noPayload adapts an operation that only returns an error.
func noPayload(fn func(ctx context.Context) error) handlerFunc {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		return nil, fn(ctx)
	}
}

func (s *Server) routes() map[string]handlerFunc {
	o := s.orch
	return map[string]handlerFunc{
		"devices/list": withPayload(func(ctx context.Context, req devicesRequest) (any, error) {
			return o.InitDevices(ctx, req.Reload)
		}),
		"session/init": withPayload(func(ctx context.Context, req initRequest) (any, error) {
			if err := o.Init(ctx, req.InputID, req.OutputID); err != nil {
				return nil, err
			}
			return o.Status(), nil
		}),
		"session/close": func(context.Context, json.RawMessage) (any, error) {
			return nil, o.Close()
		},
		"session/status": func(context.Context, json.RawMessage) (any, error) {
			return o.Status(), nil
		},

		"calibration/start": noPayload(o.StartCalibration),
		"calibration/stop":  noPayload(o.StopCalibration),
		"latency/set": withPayload(func(ctx context.Context, req latencyRequest) (any, error) {
			return nil, o.SetLatency(ctx, req.Latency)
		}),

		"item/load": withPayload(func(ctx context.Context, req session.ItemSpec) (any, error) {
			return o.LoadItem(ctx, req)
		}),
		"backing/load": withPayload(func(ctx context.Context, req session.ItemSpec) (any, error) {
			return o.LoadBackingTrack(ctx, req)
		}),
		"item/delete": withPayload(func(ctx context.Context, req itemRequest) (any, error) {
			return nil, o.DeleteItem(ctx, req.ItemID)
		}),
		"item/enable": withPayload(func(ctx context.Context, req itemRequest) (any, error) {
			return nil, o.SetItemEnabled(ctx, req.ItemID, req.Enabled)
		}),
		"item/move": withPayload(func(ctx context.Context, req itemRequest) (any, error) {
			return nil, o.MoveItem(ctx, req.ItemID, req.StartTime)
		}),
		"items/clear": noPayload(o.ClearAll),

		"transport/play": withPayload(func(ctx context.Context, req timeRequest) (any, error) {
			return nil, o.Play(ctx, req.Time)
		}),
		"transport/stop": noPayload(o.Stop),
		"transport/seek": withPayload(func(ctx context.Context, req timeRequest) (any, error) {
			return nil, o.Seek(ctx, req.Time)
		}),
		"recording/start": noPayload(o.StartRecording),
		"recording/stop":  noPayload(o.StopRecording),
		"lane/enable": withPayload(func(ctx context.Context, req laneRequest) (any, error) {
			return nil, o.EnableLane(ctx, req.LaneID)
		}),
		"lane/disable": withPayload(func(ctx context.Context, req laneRequest) (any, error) {
			return nil, o.DisableLane(ctx, req.LaneID)
		}),
		"punch/set": withPayload(func(ctx context.Context, req punchRequest) (any, error) {
			return nil, o.SetPunchTimes(ctx, req.In, req.Out)
		}),
		"punch/clear": noPayload(o.ClearPunchTimes),

		"mixer/noise": withPayload(func(_ context.Context, req noiseRequest) (any, error) {
			return nil, o.SetNoise(req.Volume, engine.ParseNoiseType(req.Type))
		}),
		"mixer/monitor": withPayload(func(_ context.Context, req gainRequest) (any, error) {
			return nil, o.SetMonitorGain(req.Gain)
		}),
	}
}
