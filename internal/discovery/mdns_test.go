// ABOUTME: Tests for mDNS discovery
// ABOUTME: Covers TXT records and service entry conversion
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Alto Desk", Port: 8928})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	txt := mgr.TXT()
	if len(txt) != 1 || txt[0] != "path=/control" {
		t.Errorf("expected default path record, got %v", txt)
	}
	mgr.Stop()
}

func TestTXTIncludesVersion(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Tenor", Port: 1, Path: "/ws", Version: "1.2.0"})
	txt := mgr.TXT()
	if len(txt) != 2 || txt[0] != "path=/ws" || txt[1] != "version=1.2.0" {
		t.Errorf("expected path and version records, got %v", txt)
	}
}

func TestEntryInfo(t *testing.T) {
	tests := []struct {
		name  string
		entry *mdns.ServiceEntry
		want  ServerInfo
		ok    bool
	}{
		{
			name: "ipv4 with txt",
			entry: &mdns.ServiceEntry{
				Name:       "Alto Desk._rehearsal._tcp.local.",
				AddrV4:     net.IPv4(192, 168, 1, 20),
				Port:       8928,
				InfoFields: []string{"path=/ws", "version=1.0.0", "junk"},
			},
			want: ServerInfo{Name: "Alto Desk", Host: "192.168.1.20", Port: 8928, Path: "/ws", Version: "1.0.0"},
			ok:   true,
		},
		{
			name: "host fallback",
			entry: &mdns.ServiceEntry{
				Name: "Bass._rehearsal._tcp.local.",
				Host: "bass.local.",
				Port: 9000,
			},
			want: ServerInfo{Name: "Bass", Host: "bass.local", Port: 9000, Path: "/control"},
			ok:   true,
		},
		{
			name:  "other service",
			entry: &mdns.ServiceEntry{Name: "printer._ipp._tcp.local."},
			ok:    false,
		},
		{
			name: "nil entry",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := entryInfo(tt.entry)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestServerInfoURL(t *testing.T) {
	info := ServerInfo{Host: "10.0.0.5", Port: 8928, Path: "/control"}
	if got := info.URL(); got != "ws://10.0.0.5:8928/control" {
		t.Errorf("expected ws://10.0.0.5:8928/control, got %s", got)
	}
}
