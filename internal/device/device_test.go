package device

import (
	"context"
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		in          []Info
		wantIDs     []string
		wantDefault string
	}{
		{
			name: "drops aliases and matches default by label",
			in: []Info{
				{ID: "default", Name: "Default - USB Mic"},
				{ID: "communications", Name: "Communications - Headset"},
				{ID: "a1", Name: "Headset"},
				{ID: "b2", Name: "USB Mic"},
			},
			wantIDs:     []string{"a1", "b2"},
			wantDefault: "b2",
		},
		{
			name: "keeps driver flagged default",
			in: []Info{
				{ID: "default", Name: "Default - Headset"},
				{ID: "a1", Name: "Headset"},
				{ID: "b2", Name: "USB Mic", IsDefault: true},
			},
			wantIDs:     []string{"a1", "b2"},
			wantDefault: "b2",
		},
		{
			name:        "names unnamed devices by id prefix",
			in:          []Info{{ID: "0123456789"}},
			wantIDs:     []string{"0123456789"},
			wantDefault: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("expected %d devices, got %d", len(tt.wantIDs), len(got))
			}
			def := ""
			for i, d := range got {
				if d.ID != tt.wantIDs[i] {
					t.Errorf("expected id %s at %d, got %s", tt.wantIDs[i], i, d.ID)
				}
				if d.Name == "" {
					t.Errorf("expected a name for %s", d.ID)
				}
				if d.IsDefault {
					def = d.ID
				}
			}
			if def != tt.wantDefault {
				t.Errorf("expected default %q, got %q", tt.wantDefault, def)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	list := []Info{{ID: "a"}, {ID: "b", IsDefault: true}, {ID: "c"}}

	tests := []struct {
		preferred string
		want      string
	}{
		{"c", "c"},
		{"missing", "b"},
		{"", "b"},
	}
	for _, tt := range tests {
		if got := Select(list, tt.preferred); got != tt.want {
			t.Errorf("preferred %q: expected %s, got %s", tt.preferred, tt.want, got)
		}
	}

	if got := Select([]Info{{ID: "x"}, {ID: "y"}}, ""); got != "x" {
		t.Errorf("expected first device without default, got %s", got)
	}
	if got := Select(nil, "x"); got != "" {
		t.Errorf("expected empty selection, got %s", got)
	}
}

func TestNullStreamPump(t *testing.T) {
	d := &Null{Manual: true, Input: func(in []float32) {
		for i := range in {
			in[i] = 0.5
		}
	}}

	var calls, frames int
	s, err := d.Open(context.Background(), StreamConfig{
		SampleRate:   44100,
		PeriodFrames: 64,
		Callback: func(out, in []float32, n int) {
			calls++
			frames += n
			for i := 0; i < n; i++ {
				out[2*i] = in[i]
				out[2*i+1] = -in[i]
			}
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ns := s.(*NullStream)

	if !ns.Pump(3) {
		t.Fatal("expected pump to succeed")
	}
	if calls != 3 || frames != 192 {
		t.Errorf("expected 3 calls and 192 frames, got %d and %d", calls, frames)
	}
	if ns.Frames() != 192 {
		t.Errorf("expected 192 frames rendered, got %d", ns.Frames())
	}
	out := ns.Output()
	if out[0] != 0.5 || out[1] != -0.5 {
		t.Errorf("expected callback output, got %v %v", out[0], out[1])
	}

	d.Close()
	if ns.Pump(1) {
		t.Error("expected pump to fail after close")
	}
	if calls != 3 {
		t.Errorf("expected no callbacks after close, got %d", calls)
	}
}

func TestNullSampleRateMismatch(t *testing.T) {
	d := &Null{Manual: true, Rate: 48000}

	_, err := d.Open(context.Background(), StreamConfig{SampleRate: 44100})
	if !errors.Is(err, ErrSampleRateMismatch) {
		t.Errorf("expected ErrSampleRateMismatch, got %v", err)
	}
}

func TestNullDevices(t *testing.T) {
	inputs, outputs, err := NewNull().Devices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		t.Fatalf("expected one input and one output, got %d and %d", len(inputs), len(outputs))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := NewNull().Devices(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestNewDriver(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"malgo", "malgo"},
		{"oto", "oto"},
		{"null", "null"},
		{"", "null"},
	}
	for _, tt := range tests {
		if got := New(tt.name).Name(); got != tt.want {
			t.Errorf("driver %q: expected %s, got %s", tt.name, tt.want, got)
		}
	}
}
