// ABOUTME: Sample-accurate voice mixer for backing tracks and layers
// ABOUTME: Pending voices wait in a start-frame heap until their quantum arrives
package engine

import (
	"container/heap"

	"github.com/choirless/rehearsal/pkg/audio"
)

// Voice is one buffer scheduled to sound from StartFrame, beginning Offset
// samples into Samples. Samples is shared and never written.
type Voice struct {
	ItemID     string
	LaneID     string
	Samples    []float32
	StartFrame int64
	Offset     int
	Gain       float32

	pos   int
	index int
}

// Position returns the next sample index the voice will play.
func (v *Voice) Position() int {
	return v.pos
}

// Mixer sums active voices into the stereo bus.
type Mixer struct {
	pending voiceQueue
	active  []*Voice
	notify  func(Notification)
	stats   *Stats
}

// NewMixer creates a mixer with room for capacity voices before it grows.
func NewMixer(capacity int, notify func(Notification), stats *Stats) *Mixer {
	if stats == nil {
		stats = &Stats{}
	}
	m := &Mixer{
		pending: voiceQueue{items: make([]*Voice, 0, capacity)},
		active:  make([]*Voice, 0, capacity),
		notify:  notify,
		stats:   stats,
	}
	heap.Init(&m.pending)
	return m
}

// Start schedules a voice.
func (m *Mixer) Start(v *Voice) {
	if v == nil || len(v.Samples) == 0 {
		return
	}
	v.pos = max(v.Offset, 0)
	heap.Push(&m.pending, v)
	m.stats.VoicesStarted.Add(1)
	m.updateGauges()
}

// Stop removes every voice playing itemID.
func (m *Mixer) Stop(itemID string) {
	m.removeWhere(func(v *Voice) bool { return v.ItemID == itemID })
}

// StopLane removes every voice on laneID.
func (m *Mixer) StopLane(laneID string) {
	m.removeWhere(func(v *Voice) bool { return v.LaneID == laneID })
}

// Clear removes every voice.
func (m *Mixer) Clear() {
	clear(m.active)
	m.active = m.active[:0]
	clear(m.pending.items)
	m.pending.items = m.pending.items[:0]
	m.updateGauges()
}

// Active returns the number of sounding voices.
func (m *Mixer) Active() int {
	return len(m.active)
}

// Pending returns the number of voices waiting for their start frame.
func (m *Mixer) Pending() int {
	return m.pending.Len()
}

// Process mixes the quantum starting at frame into left and right.
func (m *Mixer) Process(frame int64, left, right *audio.Quantum) {
	end := frame + audio.QuantumSize
	for m.pending.Len() > 0 && m.pending.Peek().StartFrame < end {
		v := heap.Pop(&m.pending).(*Voice)
		if v.StartFrame < frame {
			// Late start: skip what should already have played
			v.pos += int(frame - v.StartFrame)
		}
		m.active = append(m.active, v)
	}

	kept := m.active[:0]
	for _, v := range m.active {
		from := 0
		if v.StartFrame > frame {
			from = int(v.StartFrame - frame)
		}
		for i := from; i < audio.QuantumSize && v.pos < len(v.Samples); i++ {
			s := v.Samples[v.pos] * v.Gain
			left[i] += s
			right[i] += s
			v.pos++
		}
		if v.pos >= len(v.Samples) {
			if m.notify != nil {
				m.notify(Notification{Kind: NotifyVoiceEnded, Frame: frame, ItemID: v.ItemID})
			}
			continue
		}
		kept = append(kept, v)
	}
	clear(m.active[len(kept):])
	m.active = kept
	m.updateGauges()
}

func (m *Mixer) removeWhere(match func(*Voice) bool) {
	kept := m.active[:0]
	for _, v := range m.active {
		if !match(v) {
			kept = append(kept, v)
		}
	}
	clear(m.active[len(kept):])
	m.active = kept

	pending := m.pending.items[:0]
	for _, v := range m.pending.items {
		if !match(v) {
			pending = append(pending, v)
		}
	}
	clear(m.pending.items[len(pending):])
	m.pending.items = pending
	for i, v := range m.pending.items {
		v.index = i
	}
	heap.Init(&m.pending)
	m.updateGauges()
}

func (m *Mixer) updateGauges() {
	m.stats.ActiveVoices.Store(int64(len(m.active)))
	m.stats.PendingVoices.Store(int64(m.pending.Len()))
}

// voiceQueue is a min-heap of voices ordered by start frame.
type voiceQueue struct {
	items []*Voice
}

func (q *voiceQueue) Len() int { return len(q.items) }

func (q *voiceQueue) Less(i, j int) bool {
	return q.items[i].StartFrame < q.items[j].StartFrame
}

func (q *voiceQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *voiceQueue) Push(x any) {
	v := x.(*Voice)
	v.index = len(q.items)
	q.items = append(q.items, v)
}

func (q *voiceQueue) Pop() any {
	n := len(q.items)
	v := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	v.index = -1
	return v
}

func (q *voiceQueue) Peek() *Voice {
	return q.items[0]
}
