// ABOUTME: Transport scheduler driving lookahead playback and punch recording
// ABOUTME: Converts timeline items into sample-accurate mixer voices
package transport

import (
	"log/slog"
	"sort"

	"github.com/choirless/rehearsal/internal/engine"
	"github.com/choirless/rehearsal/internal/events"
	"github.com/choirless/rehearsal/internal/logging"
	"github.com/choirless/rehearsal/pkg/audio"
)

// Clock reports audio clock time in seconds.
type Clock interface {
	Now() float64
}

// Engine is the part of the audio graph the scheduler drives.
type Engine interface {
	Send(cmd engine.Command) bool
	Params() *engine.Params
	SampleRate() int
}

// Publisher receives transport events.
type Publisher interface {
	Publish(ev events.Event)
}

// Options tune scheduling.
type Options struct {
	Preload   float64 // lead time before the backing track starts
	Lookahead float64 // how far ahead items get voices
	Guard     float64 // minimum lead for a voice starting now
	Epsilon   float64 // tolerance for items starting just behind the cursor

	// JoinInProgress starts items already under the cursor mid-buffer,
	// e.g. after a seek into a layer or enabling its lane while playing.
	JoinInProgress bool
}

// DefaultOptions returns the standard scheduling window.
func DefaultOptions() Options {
	return Options{
		Preload:        0.05,
		Lookahead:      1,
		Guard:          0.01,
		Epsilon:        0.001,
		JoinInProgress: true,
	}
}

// Stats count scheduling decisions.
type Stats struct {
	Passes          uint64
	VoicesScheduled uint64
	LateStarts      uint64
	CommandsDropped uint64
}

// Scheduler owns the transport state, the timeline items and the enabled
// lanes.
type Scheduler struct {
	clock  Clock
	engine Engine
	bus    Publisher
	opts   Options
	logger *slog.Logger

	state      State
	prevOffset float64

	backing *Item
	items   map[string]*Item
	order   []string
	lanes   map[string]bool
	voiced  map[string]bool

	observers  map[int]func(float64)
	observerID int

	stats Stats
}

// NewScheduler creates a stopped scheduler. bus may be nil.
func NewScheduler(clk Clock, eng Engine, bus Publisher, opts Options) *Scheduler {
	return &Scheduler{
		clock:     clk,
		engine:    eng,
		bus:       bus,
		opts:      opts,
		logger:    logging.GetLogger("transport"),
		items:     make(map[string]*Item),
		lanes:     make(map[string]bool),
		voiced:    make(map[string]bool),
		observers: make(map[int]func(float64)),
	}
}

// State returns a copy of the transport state.
func (s *Scheduler) State() State {
	return s.state.clone()
}

// Stats returns the scheduling counters.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

// Recording reports whether the recorder is capturing a take.
func (s *Scheduler) Recording() bool {
	return s.engine.Params().Recording()
}

// LoadBackingTrack installs the track that defines the piece's length.
func (s *Scheduler) LoadBackingTrack(track *Item) {
	if s.backing != nil && s.state.Playing {
		s.Stop()
	}
	s.backing = track
}

// BackingTrack returns the loaded backing track, or nil.
func (s *Scheduler) BackingTrack() *Item {
	return s.backing
}

// Play starts the transport startTime seconds into the piece.
func (s *Scheduler) Play(startTime float64) bool {
	if s.backing == nil {
		s.logger.Warn("Cannot play", "error", ErrNothingLoaded)
		return false
	}
	if s.state.Playing {
		s.logger.Warn("Cannot play", "error", ErrAlreadyPlaying)
		return false
	}
	if startTime < 0 {
		startTime = 0
	}

	now := s.clock.Now()
	startAt := now + s.opts.Preload
	transportStart := startAt - startTime

	s.state.Playing = true
	s.state.TransportStartTime = &transportStart
	s.state.CurrentOffset = startTime
	s.prevOffset = startTime
	s.engine.Params().SetStartTimeOffset(transportStart)

	// Voices left from the previous run are dropped before the backing track starts
	s.send(engine.ClearVoices{})
	clear(s.voiced)

	rate := s.engine.SampleRate()
	s.send(engine.StartVoice{Voice: &engine.Voice{
		ItemID:     s.backing.ID,
		LaneID:     backingLane,
		Samples:    s.backing.Samples,
		StartFrame: audio.SecondsToFrames(startAt, rate),
		Offset:     int(audio.SecondsToFrames(startTime, rate)),
		Gain:       1,
	}})

	s.logger.Info("Transport playing", "start_time", startTime, "transport_start", transportStart)
	s.publishState()
	s.Pass()
	return true
}

// Stop halts recording and every voice. Stopping a stopped transport
// succeeds.
func (s *Scheduler) Stop() bool {
	wasRecording := s.engine.Params().Recording()
	s.engine.Params().SetRecording(false)
	if !s.state.Playing && !wasRecording {
		return true
	}

	s.send(engine.ClearVoices{})
	clear(s.voiced)
	s.state.Playing = false
	s.state.TransportStartTime = nil

	s.logger.Info("Transport stopped", "offset", s.state.CurrentOffset)
	s.publishState()
	return true
}

// Seek moves the cursor. While playing it restarts from t; while recording
// it is refused because the take's time basis would jump.
func (s *Scheduler) Seek(t float64) bool {
	if t < 0 {
		t = 0
	}
	if !s.state.Playing {
		s.state.CurrentOffset = t
		s.prevOffset = t
		return true
	}
	if s.engine.Params().Recording() {
		s.logger.Warn("Cannot seek", "error", ErrRecording)
		return false
	}
	s.Stop()
	return s.Play(t)
}

// StartRecording arms the recorder. The transport must be playing.
func (s *Scheduler) StartRecording() bool {
	if !s.state.Playing {
		s.logger.Warn("Cannot start recording", "error", ErrNotPlaying)
		return false
	}
	if !s.engine.Params().Recording() {
		s.engine.Params().SetRecording(true)
		s.logger.Info("Recording started", "offset", s.state.CurrentOffset)
		s.publishState()
	}
	return true
}

// StopRecording disarms the recorder; the take finishes after its latency tail.
func (s *Scheduler) StopRecording() bool {
	if !s.engine.Params().Recording() {
		s.logger.Debug("Cannot stop recording", "error", ErrNotRecording)
		return false
	}
	s.engine.Params().SetRecording(false)
	s.logger.Info("Recording stopped", "offset", s.state.CurrentOffset)
	s.publishState()
	return true
}

// SetPunchTimes arms automatic recording between in and out.
func (s *Scheduler) SetPunchTimes(in, out float64) error {
	if !(in < out) {
		return ErrInvalidPunch
	}
	s.state.PunchIn = &in
	s.state.PunchOut = &out
	return nil
}

// ClearPunchTimes disarms automatic recording.
func (s *Scheduler) ClearPunchTimes() {
	s.state.PunchIn = nil
	s.state.PunchOut = nil
}

// EnableLane makes a lane's items eligible for playback.
func (s *Scheduler) EnableLane(laneID string) error {
	if laneID == "" || laneID == backingLane {
		return ErrInvalidLane
	}
	s.lanes[laneID] = true
	return nil
}

// DisableLane silences a lane, stopping any voices already sounding on it.
// Items without a lane and the backing track cannot be disabled.
func (s *Scheduler) DisableLane(laneID string) error {
	if laneID == "" || laneID == backingLane {
		return ErrInvalidLane
	}
	if !s.lanes[laneID] {
		return ErrLaneNotEnabled
	}
	delete(s.lanes, laneID)
	s.send(engine.StopLane{LaneID: laneID})
	for id, item := range s.items {
		if item.LaneID == laneID {
			delete(s.voiced, id)
		}
	}
	return nil
}

// LaneEnabled reports whether a lane is enabled. Items without a lane are
// always eligible.
func (s *Scheduler) LaneEnabled(laneID string) bool {
	return laneID == "" || s.lanes[laneID]
}

// Lanes returns the enabled lane ids in sorted order.
func (s *Scheduler) Lanes() []string {
	out := make([]string, 0, len(s.lanes))
	for id := range s.lanes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadItem adds an item, replacing one with the same id.
func (s *Scheduler) LoadItem(item *Item) {
	if _, ok := s.items[item.ID]; ok {
		s.silence(item.ID)
	} else {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item
}

// Item returns an item by id.
func (s *Scheduler) Item(id string) (*Item, bool) {
	item, ok := s.items[id]
	return item, ok
}

// Items returns the items in load order.
func (s *Scheduler) Items() []*Item {
	out := make([]*Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// DeleteItem removes an item and silences it.
func (s *Scheduler) DeleteItem(id string) error {
	if _, ok := s.items[id]; !ok {
		return ErrUnknownItem
	}
	s.silence(id)
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetItemEnabled mutes or unmutes an item.
func (s *Scheduler) SetItemEnabled(id string, enabled bool) error {
	item, ok := s.items[id]
	if !ok {
		return ErrUnknownItem
	}
	item.Enabled = enabled
	if !enabled {
		s.silence(id)
	}
	return nil
}

// MoveItem changes an item's start time. A sounding voice is stopped and
// the item is rescheduled at its new position.
func (s *Scheduler) MoveItem(id string, startTime float64) error {
	item, ok := s.items[id]
	if !ok {
		return ErrUnknownItem
	}
	item.StartTime = startTime
	s.silence(id)
	return nil
}

// ClearAll stops the transport and forgets every item and the backing track.
func (s *Scheduler) ClearAll() {
	s.Stop()
	clear(s.items)
	s.order = s.order[:0]
	s.backing = nil
}

// AddTimeObserver registers fn to receive the transport offset after each
// pass. The returned function removes it.
func (s *Scheduler) AddTimeObserver(fn func(offset float64)) func() {
	s.observerID++
	id := s.observerID
	s.observers[id] = fn
	return func() {
		delete(s.observers, id)
	}
}

// Pass runs one scheduling round. It is called every few milliseconds from
// the cooperative loop.
func (s *Scheduler) Pass() {
	if !s.state.Playing {
		return
	}
	s.stats.Passes++

	now := s.clock.Now()
	transportStart := *s.state.TransportStartTime
	offset := now - transportStart

	if s.backing != nil && offset >= s.backing.Duration {
		s.logger.Info("Reached end of backing track", "duration", s.backing.Duration)
		s.state.CurrentOffset = s.backing.Duration
		s.Stop()
		return
	}

	for _, id := range s.order {
		item := s.items[id]
		if s.voiced[id] || !item.Enabled || !s.LaneEnabled(item.LaneID) || !s.eligible(item, offset) {
			continue
		}
		s.schedule(item, now, transportStart)
	}

	s.punch(offset)
	s.prevOffset = offset
	s.state.CurrentOffset = offset

	if offset > 0 {
		for _, fn := range s.observers {
			fn(offset)
		}
		if s.bus != nil {
			s.bus.Publish(events.TransportTimeUpdatedEvent{OffsetSeconds: offset})
		}
	}
}

func (s *Scheduler) eligible(item *Item, offset float64) bool {
	windowStart := offset - s.opts.Epsilon
	windowEnd := offset + s.opts.Lookahead
	if item.StartTime >= windowStart && item.StartTime < windowEnd {
		return true
	}
	return s.opts.JoinInProgress && item.StartTime < windowStart && item.End() > offset
}

func (s *Scheduler) schedule(item *Item, now, transportStart float64) {
	rate := s.engine.SampleRate()
	shouldStartAt := transportStart + item.StartTime
	startAt := max(now+s.opts.Guard, shouldStartAt)

	offset := 0
	if startAt > shouldStartAt {
		offset = int(audio.SecondsToFrames(startAt-shouldStartAt, rate))
		s.stats.LateStarts++
	}
	if offset >= len(item.Samples) {
		return
	}

	ok := s.send(engine.StartVoice{Voice: &engine.Voice{
		ItemID:     item.ID,
		LaneID:     item.LaneID,
		Samples:    item.Samples,
		StartFrame: audio.SecondsToFrames(startAt, rate),
		Offset:     offset,
		Gain:       1,
	}})
	if !ok {
		return
	}
	s.voiced[item.ID] = true
	s.stats.VoicesScheduled++
	s.logger.Debug("Scheduled item", "item", item.ID, "lane", item.LaneID, "start_at", startAt, "offset", offset)
}

// punch toggles recording when the cursor crosses a punch bound during the
// last pass. Every engine with punch times set records, not only the one
// whose performer armed them.
func (s *Scheduler) punch(offset float64) {
	in, out := s.state.PunchIn, s.state.PunchOut
	if in == nil || out == nil || !(*in < *out) {
		return
	}
	crossed := func(t float64) bool {
		return s.prevOffset <= t && t < offset
	}
	if crossed(*in) && !s.engine.Params().Recording() {
		s.logger.Info("Punch in", "at", *in)
		s.StartRecording()
	}
	if crossed(*out) && s.engine.Params().Recording() {
		s.logger.Info("Punch out", "at", *out)
		s.StopRecording()
	}
}

func (s *Scheduler) silence(id string) {
	if s.voiced[id] {
		s.send(engine.StopItem{ItemID: id})
		delete(s.voiced, id)
	}
}

func (s *Scheduler) send(cmd engine.Command) bool {
	if s.engine.Send(cmd) {
		return true
	}
	s.stats.CommandsDropped++
	s.logger.Warn("Engine command queue full", "command", cmd)
	return false
}

func (s *Scheduler) publishState() {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.TransportStateChangedEvent{
		Playing:   s.state.Playing,
		Recording: s.engine.Params().Recording(),
		Offset:    s.state.CurrentOffset,
	})
}
