package engine

import (
	"math"
	"testing"

	"github.com/choirless/rehearsal/pkg/audio"
)

func newTestCalibrator(opts CalibratorOptions) (*Calibrator, *[]Notification) {
	var notes []Notification
	c := NewCalibrator(audio.DefaultSampleRate, opts, func(n Notification) {
		notes = append(notes, n)
	})
	return c, &notes
}

func kinds(notes []Notification) []NotificationKind {
	out := make([]NotificationKind, len(notes))
	for i, n := range notes {
		out[i] = n.Kind
	}
	return out
}

func TestCalibrationClustering(t *testing.T) {
	c, notes := newTestCalibrator(DefaultCalibratorOptions())

	for i, latency := range []float64{0.10, 0.11, 0.50, 0.12} {
		c.AddSample(latency, int64(i))
	}

	got := *notes
	if len(got) != 5 {
		t.Fatalf("expected 4 samples and 1 done, got %v", kinds(got))
	}
	for i := 0; i < 4; i++ {
		if got[i].Kind != NotifyCalibrationSample {
			t.Errorf("notification %d: expected sample, got %v", i, got[i].Kind)
		}
	}
	if got[3].Latency != 0.12 {
		t.Errorf("expected sample to carry raw latency 0.12, got %v", got[3].Latency)
	}

	done := got[4]
	if done.Kind != NotifyCalibrationDone {
		t.Fatalf("expected done, got %v", done.Kind)
	}
	if math.Abs(done.Latency-0.11) > 1e-9 {
		t.Errorf("expected latency 0.11, got %v", done.Latency)
	}
	if done.Count != 3 {
		t.Errorf("expected 3 clustered samples, got %d", done.Count)
	}
	if math.Abs(done.SD-0.02/3) > 1e-9 {
		t.Errorf("expected sd %v, got %v", 0.02/3, done.SD)
	}
	if c.Phase() != PhaseDone {
		t.Errorf("expected phase done, got %v", c.Phase())
	}
}

func TestCalibrationNotDoneWhenSpread(t *testing.T) {
	c, notes := newTestCalibrator(DefaultCalibratorOptions())

	c.AddSample(0.10, 0)
	c.AddSample(0.30, 1)
	c.AddSample(0.50, 2)

	for _, n := range *notes {
		if n.Kind == NotifyCalibrationDone {
			t.Fatal("expected no done notification for scattered samples")
		}
	}
}

func TestCalibrationSamplesAreBounded(t *testing.T) {
	c := NewCalibrator(audio.DefaultSampleRate, DefaultCalibratorOptions(), nil)

	// Samples further apart than the cluster width never converge
	n := 0
	add := func() {
		c.AddSample(0.01+0.06*float64(n), int64(n))
		n++
	}
	for i := 0; i < 3*maxCalibrationSamples; i++ {
		add()
	}
	if len(c.samples) != maxCalibrationSamples {
		t.Errorf("expected %d kept samples, got %d", maxCalibrationSamples, len(c.samples))
	}
	if cap(c.samples) != maxCalibrationSamples || cap(c.sorted) != maxCalibrationSamples {
		t.Errorf("expected capacity %d, got %d and %d", maxCalibrationSamples, cap(c.samples), cap(c.sorted))
	}
	want := 0.01 + 0.06*float64(n-1)
	if last := c.samples[len(c.samples)-1]; math.Abs(last-want) > 1e-9 {
		t.Errorf("expected newest sample %v kept last, got %v", want, last)
	}

	if allocs := testing.AllocsPerRun(100, add); allocs != 0 {
		t.Errorf("expected no allocations, got %v", allocs)
	}
	if c.Phase() == PhaseDone {
		t.Error("expected scattered samples not to converge")
	}
}

func TestCalibrationLatencyBounds(t *testing.T) {
	c, _ := newTestCalibrator(DefaultCalibratorOptions())

	tests := []struct {
		latency float64
		want    bool
	}{
		{0.8, true},
		{0.8001, false},
		{0.009, false},
		{0.01, true},
		{0.25, true},
	}

	for _, tt := range tests {
		if got := c.acceptLatency(tt.latency); got != tt.want {
			t.Errorf("latency %v: expected %v, got %v", tt.latency, tt.want, got)
		}
	}
}

func TestCalibrationQuietStats(t *testing.T) {
	opts := DefaultCalibratorOptions()
	opts.InitialQuietPeriod = 0
	c, notes := newTestCalibrator(opts)

	var low, high, out audio.Quantum
	for i := range low {
		low[i] = 0.1
		high[i] = 0.3
	}

	c.Process(0, &low, true, &out)
	if c.Phase() != PhaseMeasuringQuiet {
		t.Fatalf("expected measuring quiet, got %v", c.Phase())
	}
	c.Process(audio.QuantumSize, &high, true, &out)

	got := *notes
	if len(got) != 2 || got[0].Kind != NotifyQuietStart || got[1].Kind != NotifyQuietEnd {
		t.Fatalf("expected quiet start and end, got %v", kinds(got))
	}
	end := got[1]
	if math.Abs(end.Mean-0.2) > 1e-5 {
		t.Errorf("expected mean 0.2, got %v", end.Mean)
	}
	if math.Abs(end.Max-0.3) > 1e-5 {
		t.Errorf("expected max 0.3, got %v", end.Max)
	}
	if math.Abs(end.SD-0.1) > 1e-5 {
		t.Errorf("expected sd 0.1, got %v", end.SD)
	}
	if c.Phase() != PhaseMeasuringLatency {
		t.Errorf("expected measuring latency, got %v", c.Phase())
	}
}

func TestCalibrationDetectsClaps(t *testing.T) {
	opts := DefaultCalibratorOptions()
	opts.InitialQuietPeriod = 0
	c, notes := newTestCalibrator(opts)
	period := int64(c.TickPeriodFrames())

	var silence, clap, out audio.Quantum
	clap[0] = 0.9

	c.Process(0, &silence, true, &out)
	c.Process(audio.QuantumSize, &silence, true, &out)

	latencyFrames := int64(4410)
	for k := int64(1); k <= 3; k++ {
		c.Process(k*period+latencyFrames, &clap, true, &out)
		// A second transient in the same period is ignored
		c.Process(k*period+2*latencyFrames, &clap, true, &out)
	}

	var samples int
	var done *Notification
	for i, n := range *notes {
		switch n.Kind {
		case NotifyCalibrationSample:
			samples++
		case NotifyCalibrationDone:
			done = &(*notes)[i]
		}
	}
	if samples != 3 {
		t.Errorf("expected 3 samples, got %d", samples)
	}
	if done == nil {
		t.Fatal("expected calibration to finish")
	}
	if math.Abs(done.Latency-0.1) > 1e-9 {
		t.Errorf("expected latency 0.1, got %v", done.Latency)
	}
}

func TestCalibrationDisableAborts(t *testing.T) {
	c, notes := newTestCalibrator(DefaultCalibratorOptions())
	var in, out audio.Quantum

	c.Process(0, &in, true, &out)
	c.Process(audio.QuantumSize, &in, false, &out)
	for f := int64(2); f < 400; f++ {
		c.Process(f*audio.QuantumSize, &in, false, &out)
	}

	if len(*notes) != 1 || (*notes)[0].Kind != NotifyQuietStart {
		t.Errorf("expected only quiet start, got %v", kinds(*notes))
	}
	if c.Phase() != PhaseIdle {
		t.Errorf("expected idle, got %v", c.Phase())
	}
}

func TestCalibratorTicksFollowRing(t *testing.T) {
	opts := DefaultCalibratorOptions()
	opts.InitialQuietPeriod = 0
	c, _ := newTestCalibrator(opts)

	tick := []float32{0, 1, 0}
	ring, peak := BuildTickRing(tick, tick, 0, 0, opts.TickPeriod, audio.DefaultSampleRate)
	c.SetTickRing(ring, peak)

	var in, out audio.Quantum
	c.Process(0, &in, true, &out)
	clear(out[:])
	c.Process(audio.QuantumSize, &in, true, &out)

	if out[0] != ring.At(audio.QuantumSize) {
		t.Errorf("expected tick output to follow the ring")
	}

	period := int64(ring.Len())
	clear(out[:])
	c.Process(period, &in, true, &out)
	if out[1] != 1 {
		t.Errorf("expected tick peak at the period boundary, got %v", out[1])
	}
}

func TestBuildTickRing(t *testing.T) {
	rate := 400
	tick := []float32{1}
	tock := []float32{1}

	ring, peak := BuildTickRing(tick, tock, 0, 0, 1, rate)

	if ring.Len() != rate {
		t.Fatalf("expected ring of %d, got %d", rate, ring.Len())
	}
	if peak != 0 {
		t.Errorf("expected peak 0, got %d", peak)
	}
	tests := []struct {
		pos  int64
		want float32
	}{
		{0, 1},
		{100, 0.25},
		{200, 0.25},
		{300, 0.25},
		{50, 0},
	}
	for _, tt := range tests {
		if got := ring.At(tt.pos); got != tt.want {
			t.Errorf("position %d: expected %v, got %v", tt.pos, tt.want, got)
		}
	}
}

func TestFloorDiv(t *testing.T) {
	tests := []struct{ a, b, want int64 }{
		{7, 2, 3},
		{-7, 2, -4},
		{-4, 2, -2},
		{0, 5, 0},
	}
	for _, tt := range tests {
		if got := floorDiv(tt.a, tt.b); got != tt.want {
			t.Errorf("floorDiv(%d, %d): expected %d, got %d", tt.a, tt.b, tt.want, got)
		}
	}
}
