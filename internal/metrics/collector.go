// ABOUTME: Prometheus collector over session status
// ABOUTME: Exports engine, scheduler and clock figures
// Package metrics exports engine and scheduler counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/choirless/rehearsal/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rehearsal"

// Source provides the values exported on each scrape.
type Source interface {
	Status() session.Status
}

// Collector reads a fresh session status on every scrape.
type Collector struct {
	src Source

	up                   *prometheus.Desc
	quanta               *prometheus.Desc
	commands             *prometheus.Desc
	notificationsDropped *prometheus.Desc
	allocFallbacks       *prometheus.Desc
	takes                *prometheus.Desc
	voicesStarted        *prometheus.Desc
	underrunFrames       *prometheus.Desc
	overrunFrames        *prometheus.Desc
	activeVoices         *prometheus.Desc
	pendingVoices        *prometheus.Desc
	passes               *prometheus.Desc
	lateStarts           *prometheus.Desc
	commandsDropped      *prometheus.Desc
	latency              *prometheus.Desc
	playing              *prometheus.Desc
	recording            *prometheus.Desc
	offset               *prometheus.Desc
	clockDrift           *prometheus.Desc
	clockQuality         *prometheus.Desc
}

// NewCollector creates a collector over src.
func NewCollector(src Source) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		src:                  src,
		up:                   desc("session_up", "Whether an audio session is open"),
		quanta:               desc("engine_quanta_total", "Quanta processed by the audio callback"),
		commands:             desc("engine_commands_total", "Commands applied at quantum boundaries"),
		notificationsDropped: desc("engine_notifications_dropped_total", "Notifications dropped because the queue was full"),
		allocFallbacks:       desc("engine_capture_alloc_fallbacks_total", "Capture blocks allocated on the audio thread"),
		takes:                desc("engine_takes_total", "Recordings finished"),
		voicesStarted:        desc("engine_voices_started_total", "Voices started by the mixer"),
		underrunFrames:       desc("engine_underrun_frames_total", "Output frames rendered as silence by the period adapter"),
		overrunFrames:        desc("engine_overrun_frames_total", "Input frames dropped by the period adapter"),
		activeVoices:         desc("engine_active_voices", "Voices currently sounding"),
		pendingVoices:        desc("engine_pending_voices", "Voices waiting for their start frame"),
		passes:               desc("scheduler_passes_total", "Scheduling passes run"),
		lateStarts:           desc("scheduler_late_starts_total", "Voices started after their due time"),
		commandsDropped:      desc("scheduler_commands_dropped_total", "Commands refused by a full engine queue"),
		latency:              desc("latency_seconds", "Round trip latency applied to recordings"),
		playing:              desc("transport_playing", "Whether the transport is playing"),
		recording:            desc("transport_recording", "Whether a take is being recorded"),
		offset:               desc("transport_offset_seconds", "Transport position"),
		clockDrift:           desc("clock_drift_ratio", "Estimated audio clock drift against the wall clock"),
		clockQuality:         desc("clock_quality", "Audio clock quality", "quality"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.up, c.quanta, c.commands, c.notificationsDropped, c.allocFallbacks,
		c.takes, c.voicesStarted, c.underrunFrames, c.overrunFrames,
		c.activeVoices, c.pendingVoices, c.passes, c.lateStarts,
		c.commandsDropped, c.latency, c.playing, c.recording, c.offset,
		c.clockDrift, c.clockQuality,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Status()
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, boolValue(st.Initialised))
	if !st.Initialised {
		return
	}

	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	counter(c.quanta, st.Engine.QuantaProcessed)
	counter(c.commands, st.Engine.CommandsApplied)
	counter(c.notificationsDropped, st.Engine.NotificationsDropped)
	counter(c.allocFallbacks, st.Engine.CaptureAllocFallbacks)
	counter(c.takes, st.Engine.TakesFinished)
	counter(c.voicesStarted, st.Engine.VoicesStarted)
	counter(c.underrunFrames, st.Engine.UnderrunFrames)
	counter(c.overrunFrames, st.Engine.OverrunFrames)
	gauge(c.activeVoices, float64(st.Engine.ActiveVoices))
	gauge(c.pendingVoices, float64(st.Engine.PendingVoices))

	counter(c.passes, st.Scheduler.Passes)
	counter(c.lateStarts, st.Scheduler.LateStarts)
	counter(c.commandsDropped, st.Scheduler.CommandsDropped)

	gauge(c.latency, st.Latency)
	gauge(c.playing, boolValue(st.Playing))
	gauge(c.recording, boolValue(st.Recording))
	gauge(c.offset, st.Offset)
	gauge(c.clockDrift, st.ClockDrift)
	gauge(c.clockQuality, 1, st.ClockQuality)
}

// NewRegistry returns a registry holding the session collector and the Go
// runtime collectors.
func NewRegistry(src Source) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(src),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
