// ABOUTME: mDNS advertisement and lookup of rehearsal control endpoints
// ABOUTME: Lets the rehearsal UI find the engine on the local network
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/choirless/rehearsal/internal/logging"
	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the DNS-SD type advertised by the control server.
	ServiceType = "_rehearsal._tcp"

	defaultLookupTimeout = 3 * time.Second
)

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Path        string // WebSocket path advertised in the TXT record
	Version     string
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// ServerInfo describes a discovered engine
type ServerInfo struct {
	Name    string
	Host    string
	Port    int
	Path    string
	Version string
}

// URL returns the WebSocket URL of the control endpoint.
func (s ServerInfo) URL() string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(s.Host, fmt.Sprint(s.Port)), s.Path)
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	if config.Path == "" {
		config.Path = "/control"
	}

	return &Manager{
		config: config,
		logger: logging.GetLogger("discovery"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// TXT returns the TXT records advertised for the service.
func (m *Manager) TXT() []string {
	txt := []string{"path=" + m.config.Path}
	if m.config.Version != "" {
		txt = append(txt, "version="+m.config.Version)
	}
	return txt
}

// Advertise announces the control endpoint until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.TXT(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.logger.Info("Advertising mDNS service", "name", m.config.ServiceName, "port", m.config.Port, "type", ServiceType)

	go func() {
		<-m.ctx.Done()
		if err := server.Shutdown(); err != nil {
			m.logger.Warn("mDNS shutdown failed", "error", err)
		}
	}()

	return nil
}

// Stop withdraws the advertisement
func (m *Manager) Stop() {
	m.cancel()
}

// Lookup queries the network once for rehearsal engines. A zero timeout
// uses three seconds.
func Lookup(ctx context.Context, timeout time.Duration) ([]ServerInfo, error) {
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	var found []ServerInfo
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if info, ok := entryInfo(entry); ok {
				found = append(found, info)
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Domain = "local"
	params.Timeout = timeout
	params.Entries = entries
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return found, fmt.Errorf("mdns query failed: %w", err)
	}
	return found, ctx.Err()
}

// entryInfo converts a service entry, skipping unrelated services that
// answered the query.
func entryInfo(entry *mdns.ServiceEntry) (ServerInfo, bool) {
	if entry == nil || !strings.Contains(entry.Name, ServiceType) {
		return ServerInfo{}, false
	}
	info := ServerInfo{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Port: entry.Port,
		Path: "/control",
	}
	if entry.AddrV4 != nil {
		info.Host = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		info.Host = entry.AddrV6.String()
	} else {
		info.Host = strings.TrimSuffix(entry.Host, ".")
	}
	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "path":
			info.Path = value
		case "version":
			info.Version = value
		}
	}
	return info, true
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
