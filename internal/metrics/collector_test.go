package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/choirless/rehearsal/internal/engine"
	"github.com/choirless/rehearsal/internal/session"
	"github.com/choirless/rehearsal/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
)

type staticSource struct {
	status session.Status
}

func (s staticSource) Status() session.Status {
	return s.status
}

func gather(t *testing.T, src Source) map[string]float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(src))
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	return values
}

func TestCollectorWithoutSession(t *testing.T) {
	values := gather(t, staticSource{})
	if len(values) != 1 {
		t.Errorf("expected only the up metric, got %v", values)
	}
	if values["rehearsal_session_up"] != 0 {
		t.Errorf("expected session_up 0, got %v", values["rehearsal_session_up"])
	}
}

func TestCollectorExportsStatus(t *testing.T) {
	src := staticSource{status: session.Status{
		Initialised:  true,
		Latency:      0.21,
		Playing:      true,
		Offset:       12.5,
		ClockQuality: "good",
		Engine: engine.StatsSnapshot{
			QuantaProcessed:      1000,
			NotificationsDropped: 2,
			ActiveVoices:         3,
		},
		Scheduler: transport.Stats{Passes: 40, LateStarts: 1},
	}}

	values := gather(t, src)
	tests := []struct {
		name string
		want float64
	}{
		{"rehearsal_session_up", 1},
		{"rehearsal_engine_quanta_total", 1000},
		{"rehearsal_engine_notifications_dropped_total", 2},
		{"rehearsal_engine_active_voices", 3},
		{"rehearsal_scheduler_passes_total", 40},
		{"rehearsal_scheduler_late_starts_total", 1},
		{"rehearsal_latency_seconds", 0.21},
		{"rehearsal_transport_playing", 1},
		{"rehearsal_transport_recording", 0},
		{"rehearsal_transport_offset_seconds", 12.5},
		{"rehearsal_clock_quality", 1},
	}
	for _, tt := range tests {
		got, ok := values[tt.name]
		if !ok {
			t.Errorf("expected metric %s", tt.name)
			continue
		}
		if got != tt.want {
			t.Errorf("expected %s = %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestHandlerServesText(t *testing.T) {
	reg := NewRegistry(staticSource{})
	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "rehearsal_session_up 0") {
		t.Errorf("expected session_up in scrape, got:\n%s", body)
	}
}
