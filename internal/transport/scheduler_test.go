package transport

import (
	"errors"
	"math"
	"testing"

	"github.com/choirless/rehearsal/internal/engine"
	"github.com/choirless/rehearsal/internal/events"
	"github.com/choirless/rehearsal/pkg/audio"
)

type fakeClock struct {
	now float64
}

func (c *fakeClock) Now() float64 { return c.now }

type fakeEngine struct {
	params *engine.Params
	cmds   []engine.Command
	full   bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{params: engine.NewParams(audio.DefaultSampleRate)}
}

func (e *fakeEngine) Send(cmd engine.Command) bool {
	if e.full {
		return false
	}
	e.cmds = append(e.cmds, cmd)
	return true
}

func (e *fakeEngine) Params() *engine.Params { return e.params }

func (e *fakeEngine) SampleRate() int { return audio.DefaultSampleRate }

// startedVoices returns the voices started for itemID.
func (e *fakeEngine) startedVoices(itemID string) []*engine.Voice {
	var out []*engine.Voice
	for _, cmd := range e.cmds {
		if sv, ok := cmd.(engine.StartVoice); ok && sv.Voice.ItemID == itemID {
			out = append(out, sv.Voice)
		}
	}
	return out
}

type fakeBus struct {
	events []events.Event
}

func (b *fakeBus) Publish(ev events.Event) {
	b.events = append(b.events, ev)
}

func (b *fakeBus) recordingStarts() int {
	n := 0
	for _, ev := range b.events {
		if sc, ok := ev.(events.TransportStateChangedEvent); ok && sc.Recording {
			n++
		}
	}
	return n
}

type harness struct {
	clock  *fakeClock
	engine *fakeEngine
	bus    *fakeBus
	s      *Scheduler
}

func newHarness() *harness {
	h := &harness{clock: &fakeClock{now: 10}, engine: newFakeEngine(), bus: &fakeBus{}}
	h.s = NewScheduler(h.clock, h.engine, h.bus, DefaultOptions())
	h.s.LoadBackingTrack(&Item{ID: "backing", Duration: 60, Samples: make([]float32, 16), Enabled: true})
	return h
}

// at moves the clock so the transport offset equals offset.
func (h *harness) at(offset float64) {
	h.clock.now = *h.s.State().TransportStartTime + offset
	h.s.Pass()
}

// near compares seconds within a microsecond.
func near(got, want float64) bool {
	return math.Abs(got-want) < 1e-6
}

func testItem(id, lane string, start float64) *Item {
	return &Item{
		ID:        id,
		LaneID:    lane,
		StartTime: start,
		Duration:  2,
		Samples:   make([]float32, 2*audio.DefaultSampleRate),
		Enabled:   true,
	}
}

func TestPlayRequiresBackingTrack(t *testing.T) {
	s := NewScheduler(&fakeClock{}, newFakeEngine(), nil, DefaultOptions())

	if s.Play(0) {
		t.Error("expected play to fail without a backing track")
	}
	if s.State().Playing {
		t.Error("expected transport to stay stopped")
	}
}

func TestPlaySetsTransportStart(t *testing.T) {
	h := newHarness()

	if !h.s.Play(3) {
		t.Fatal("expected play to succeed")
	}
	if h.s.Play(3) {
		t.Error("expected second play to fail while playing")
	}

	st := h.s.State()
	want := 10 + 0.05 - 3
	if st.TransportStartTime == nil {
		t.Fatal("expected transport start to be set")
	}
	if !near(*st.TransportStartTime, want) {
		t.Fatalf("expected transport start %v, got %v", want, *st.TransportStartTime)
	}

	voices := h.engine.startedVoices("backing")
	if len(voices) != 1 {
		t.Fatalf("expected backing voice, got %d", len(voices))
	}
	if voices[0].Offset != 3*audio.DefaultSampleRate {
		t.Errorf("expected backing offset %d, got %d", 3*audio.DefaultSampleRate, voices[0].Offset)
	}
	if voices[0].StartFrame != audio.SecondsToFrames(10.05, audio.DefaultSampleRate) {
		t.Errorf("expected backing to start after the preload, got frame %d", voices[0].StartFrame)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness()
	h.s.Play(0)

	for i := 0; i < 2; i++ {
		if !h.s.Stop() {
			t.Errorf("stop %d: expected success", i)
		}
		st := h.s.State()
		if st.Playing {
			t.Errorf("stop %d: expected playing false", i)
		}
		if st.TransportStartTime != nil {
			t.Errorf("stop %d: expected nil transport start", i)
		}
	}
}

func TestStopHaltsRecording(t *testing.T) {
	h := newHarness()
	h.s.Play(0)
	h.s.StartRecording()

	h.s.Stop()

	if h.engine.params.Recording() {
		t.Error("expected recording to stop with the transport")
	}
}

func TestLookaheadRespectsLanes(t *testing.T) {
	h := newHarness()
	h.s.Play(0)
	h.at(3)

	h.s.LoadItem(testItem("soprano", "sopranos", 3.5))
	h.s.LoadItem(testItem("alto", "altos", 3.5))
	h.s.LoadItem(testItem("later", "sopranos", 5))
	h.s.EnableLane("sopranos")

	h.at(3)

	if got := h.engine.startedVoices("soprano"); len(got) != 1 {
		t.Fatalf("expected soprano voice, got %d", len(got))
	}
	if got := h.engine.startedVoices("alto"); len(got) != 0 {
		t.Errorf("expected no voice on disabled lane, got %d", len(got))
	}
	if got := h.engine.startedVoices("later"); len(got) != 0 {
		t.Errorf("expected no voice beyond the lookahead, got %d", len(got))
	}

	voice := h.engine.startedVoices("soprano")[0]
	want := audio.SecondsToFrames(*h.s.State().TransportStartTime+3.5, audio.DefaultSampleRate)
	if voice.StartFrame != want || voice.Offset != 0 {
		t.Errorf("expected start frame %d offset 0, got %d offset %d", want, voice.StartFrame, voice.Offset)
	}

	h.s.EnableLane("altos")
	h.at(3.1)
	if got := h.engine.startedVoices("alto"); len(got) != 1 {
		t.Errorf("expected alto voice once the lane is enabled, got %d", len(got))
	}

	// Already voiced items are not scheduled twice
	h.at(3.2)
	if got := h.engine.startedVoices("soprano"); len(got) != 1 {
		t.Errorf("expected a single soprano voice, got %d", len(got))
	}
}

func TestLateItemJoinsMidBuffer(t *testing.T) {
	h := newHarness()
	h.s.Play(0)
	h.s.LoadItem(testItem("layer", "", 2))

	h.at(3)

	voices := h.engine.startedVoices("layer")
	if len(voices) != 1 {
		t.Fatalf("expected a voice for the item under the cursor, got %d", len(voices))
	}
	st := *h.s.State().TransportStartTime
	want := int(audio.SecondsToFrames((h.clock.now+0.01)-(st+2), audio.DefaultSampleRate))
	if voices[0].Offset != want {
		t.Errorf("expected offset %d, got %d", want, voices[0].Offset)
	}
}

func TestJoinInProgressDisabled(t *testing.T) {
	h := newHarness()
	opts := DefaultOptions()
	opts.JoinInProgress = false
	h.s = NewScheduler(h.clock, h.engine, h.bus, opts)
	h.s.LoadBackingTrack(&Item{ID: "backing", Duration: 60, Samples: make([]float32, 16)})
	h.s.Play(0)
	h.s.LoadItem(testItem("layer", "", 2))

	h.at(3)

	if got := h.engine.startedVoices("layer"); len(got) != 0 {
		t.Errorf("expected no voice for an item behind the cursor, got %d", len(got))
	}
}

func TestSeek(t *testing.T) {
	t.Run("stopped", func(t *testing.T) {
		h := newHarness()
		if !h.s.Seek(12) {
			t.Fatal("expected seek to succeed")
		}
		if h.s.State().CurrentOffset != 12 {
			t.Errorf("expected offset 12, got %v", h.s.State().CurrentOffset)
		}
	})

	t.Run("playing", func(t *testing.T) {
		h := newHarness()
		h.s.Play(0)
		h.clock.now = 11
		if !h.s.Seek(5) {
			t.Fatal("expected seek to succeed")
		}
		st := h.s.State()
		if !st.Playing {
			t.Fatal("expected transport to keep playing")
		}
		if want := 11 + 0.05 - 5; !near(*st.TransportStartTime, want) {
			t.Errorf("expected transport start %v, got %v", want, *st.TransportStartTime)
		}
	})

	t.Run("recording", func(t *testing.T) {
		h := newHarness()
		h.s.Play(0)
		h.at(1)
		h.s.StartRecording()
		before := h.s.State()

		if h.s.Seek(5) {
			t.Fatal("expected seek to fail while recording")
		}
		after := h.s.State()
		if after.Playing != before.Playing || after.CurrentOffset != before.CurrentOffset ||
			*after.TransportStartTime != *before.TransportStartTime {
			t.Errorf("expected state unchanged, got %+v", after)
		}
		if !h.engine.params.Recording() {
			t.Error("expected recording to continue")
		}
	})
}

func TestRecordingPreconditions(t *testing.T) {
	h := newHarness()

	if h.s.StartRecording() {
		t.Error("expected start recording to fail while stopped")
	}
	if h.s.StopRecording() {
		t.Error("expected stop recording to fail while not recording")
	}

	h.s.Play(0)
	if !h.s.StartRecording() {
		t.Error("expected start recording to succeed while playing")
	}
	if !h.s.StopRecording() {
		t.Error("expected stop recording to succeed while recording")
	}
}

func TestPunchInOut(t *testing.T) {
	h := newHarness()
	if err := h.s.SetPunchTimes(2, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.s.Play(0)

	for _, offset := range []float64{1, 1.9, 2.1, 2.5, 3} {
		h.at(offset)
	}
	if got := h.bus.recordingStarts(); got != 1 {
		t.Fatalf("expected exactly one punch in, got %d", got)
	}
	if !h.engine.params.Recording() {
		t.Fatal("expected recording after punch in")
	}

	h.at(5.1)
	if h.engine.params.Recording() {
		t.Fatal("expected punch out to stop recording")
	}
	h.at(5.5)
	if got := h.bus.recordingStarts(); got != 1 {
		t.Errorf("expected no further punch in, got %d", got)
	}

	// Seeking back re-arms the punch in
	if !h.s.Seek(1) {
		t.Fatal("expected seek to succeed")
	}
	h.at(1.5)
	h.at(2.2)
	if got := h.bus.recordingStarts(); got != 2 {
		t.Errorf("expected punch in to fire again after seek, got %d", got)
	}
}

func TestSetPunchTimesValidates(t *testing.T) {
	h := newHarness()

	if err := h.s.SetPunchTimes(5, 2); !errors.Is(err, ErrInvalidPunch) {
		t.Errorf("expected ErrInvalidPunch, got %v", err)
	}
	st := h.s.State()
	if st.PunchIn != nil || st.PunchOut != nil {
		t.Error("expected punch times to stay unset")
	}

	h.s.SetPunchTimes(1, 2)
	h.s.ClearPunchTimes()
	if h.s.State().PunchIn != nil {
		t.Error("expected punch times cleared")
	}
}

func TestStopsAtEndOfBackingTrack(t *testing.T) {
	h := newHarness()
	h.s.Play(0)

	h.at(60.01)

	if h.s.State().Playing {
		t.Error("expected transport to stop at the end of the backing track")
	}
	if h.s.State().CurrentOffset != 60 {
		t.Errorf("expected offset clamped to 60, got %v", h.s.State().CurrentOffset)
	}
}

func TestTimeObservers(t *testing.T) {
	h := newHarness()
	var got []float64
	remove := h.s.AddTimeObserver(func(offset float64) {
		got = append(got, offset)
	})

	h.s.Play(0)
	h.at(1)
	remove()
	h.at(2)

	if len(got) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(got))
	}
	if got[0] <= 0.99 || got[0] >= 1.01 {
		t.Errorf("expected offset near 1, got %v", got[0])
	}

	var updates int
	for _, ev := range h.bus.events {
		if _, ok := ev.(events.TransportTimeUpdatedEvent); ok {
			updates++
		}
	}
	if updates != 2 {
		t.Errorf("expected 2 time updates, got %d", updates)
	}
}

func TestItemOperations(t *testing.T) {
	h := newHarness()
	h.s.Play(0)
	h.s.LoadItem(testItem("a", "", 0.5))
	h.at(0.1)

	if err := h.s.SetItemEnabled("a", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stopped := false
	for _, cmd := range h.engine.cmds {
		if c, ok := cmd.(engine.StopItem); ok && c.ItemID == "a" {
			stopped = true
		}
	}
	if !stopped {
		t.Error("expected disabling to stop the voice")
	}

	h.s.SetItemEnabled("a", true)
	if err := h.s.MoveItem("a", 0.8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.at(0.2)
	voices := h.engine.startedVoices("a")
	if len(voices) != 2 {
		t.Fatalf("expected item rescheduled, got %d voices", len(voices))
	}

	if err := h.s.DeleteItem("missing"); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("expected ErrUnknownItem, got %v", err)
	}
	if err := h.s.DeleteItem("a"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(h.s.Items()) != 0 {
		t.Errorf("expected no items, got %d", len(h.s.Items()))
	}

	h.s.LoadItem(testItem("b", "", 10))
	h.s.ClearAll()
	if len(h.s.Items()) != 0 || h.s.BackingTrack() != nil || h.s.State().Playing {
		t.Error("expected clear all to reset the timeline")
	}
}

func TestDisableLaneStopsVoices(t *testing.T) {
	h := newHarness()
	h.s.EnableLane("tenors")
	h.s.Play(0)
	h.s.LoadItem(testItem("t", "tenors", 0.5))
	h.at(0.1)

	if err := h.s.DisableLane("tenors"); err != nil {
		t.Fatalf("expected disable to succeed, got %v", err)
	}

	last := h.engine.cmds[len(h.engine.cmds)-1]
	if c, ok := last.(engine.StopLane); !ok || c.LaneID != "tenors" {
		t.Errorf("expected StopLane for tenors, got %#v", last)
	}
	if len(h.s.Lanes()) != 0 {
		t.Errorf("expected no enabled lanes, got %v", h.s.Lanes())
	}
}

func TestLaneCommandsRejectInvalidLanes(t *testing.T) {
	h := newHarness()
	h.s.Play(0)

	tests := []struct {
		name string
		op   func() error
		want error
	}{
		{"enable empty", func() error { return h.s.EnableLane("") }, ErrInvalidLane},
		{"disable empty", func() error { return h.s.DisableLane("") }, ErrInvalidLane},
		{"disable backing", func() error { return h.s.DisableLane(backingLane) }, ErrInvalidLane},
		{"disable unknown", func() error { return h.s.DisableLane("basses") }, ErrLaneNotEnabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(h.engine.cmds)
			if err := tt.op(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if len(h.engine.cmds) != before {
				t.Errorf("expected no engine commands, got %#v", h.engine.cmds[before:])
			}
		})
	}
}

func TestBackingVoiceSurvivesLaneStop(t *testing.T) {
	h := newHarness()
	h.s.EnableLane("tenors")
	h.s.Play(0)

	voices := h.engine.startedVoices("backing")
	if len(voices) != 1 {
		t.Fatalf("expected backing voice, got %d", len(voices))
	}
	if voices[0].LaneID == "" || voices[0].LaneID == "tenors" {
		t.Errorf("expected backing voice on its own lane, got %q", voices[0].LaneID)
	}

	// The mixer keeps the backing voice when a real lane is stopped
	m := engine.NewMixer(4, nil, nil)
	m.Start(voices[0])
	m.StopLane("tenors")
	m.StopLane("")
	if m.Pending()+m.Active() != 1 {
		t.Errorf("expected backing voice to remain, got %d voices", m.Pending()+m.Active())
	}
}

func TestDroppedCommandsAreCounted(t *testing.T) {
	h := newHarness()
	h.engine.full = true

	h.s.Play(0)

	if h.s.Stats().CommandsDropped == 0 {
		t.Error("expected dropped commands to be counted")
	}
}
