// ABOUTME: Calibration tick sounds
// ABOUTME: Loads tick and tock assets or synthesises clave clicks
package session

import (
	"context"
	"fmt"
	"math"
	"path"

	"github.com/choirless/rehearsal/internal/engine"
	"github.com/choirless/rehearsal/pkg/audio"
	"github.com/choirless/rehearsal/pkg/audio/decode"
	"github.com/choirless/rehearsal/pkg/audio/resample"
)

// assetPeakSeconds is where the loudest sample sits in the stock clave
// recordings.
const assetPeakSeconds = 0.01

const (
	clickLength = 0.04
	clickAttack = 0.002
	clickDecay  = 0.006
	tickHz      = 2500
	tockHz      = 1800
)

// loadTickRing builds the calibration ring, preferring configured assets.
func (o *Orchestrator) loadTickRing(ctx context.Context) (*audio.Ring, int) {
	rate := o.cfg.SampleRate
	period := o.cfg.TickPeriod

	if o.cfg.TickURL != "" && o.cfg.TockURL != "" && o.fetcher != nil {
		tick, errTick := o.loadSound(ctx, o.cfg.TickURL)
		tock, errTock := o.loadSound(ctx, o.cfg.TockURL)
		if errTick == nil && errTock == nil {
			return engine.BuildTickRing(tick, tock, assetPeakSeconds, assetPeakSeconds, period, rate)
		}
		o.logger.Warn("Falling back to synthesised ticks", "tick_error", errTick, "tock_error", errTock)
	}

	tick := synthClick(tickHz, rate)
	tock := synthClick(tockHz, rate)
	tickPeak := float64(audio.Peak(tick)) / float64(rate)
	tockPeak := float64(audio.Peak(tock)) / float64(rate)
	return engine.BuildTickRing(tick, tock, tickPeak, tockPeak, period, rate)
}

func (o *Orchestrator) loadSound(ctx context.Context, url string) ([]float32, error) {
	data, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	buf, err := decode.Bytes(path.Base(url), data, o.cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	if len(buf.Samples) == 0 {
		return nil, fmt.Errorf("tick sound %s is empty", url)
	}
	return resample.Buffer(buf, o.cfg.SampleRate).Samples, nil
}

// synthClick renders a short percussive sine burst.
func synthClick(freq float64, rate int) []float32 {
	n := int(clickLength * float64(rate))
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / float64(rate)
		env := math.Exp(-(t - clickAttack) / clickDecay)
		if t < clickAttack {
			env = t / clickAttack
		}
		out[i] = float32(0.8 * env * math.Sin(2*math.Pi*freq*t))
	}
	return out
}
