// ABOUTME: Tests for mDNS discovery
// ABOUTME: Tests manager creation and service entry conversion
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	config := Config{
		ServiceName: "Test Head Unit",
		Port:        12000,
	}

	mgr := NewManager(config)
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	mgr.Stop()
}

func TestEntryInfo(t *testing.T) {
	tests := []struct {
		name     string
		entry    *mdns.ServiceEntry
		expected *HeadUnitInfo
	}{
		{
			name: "with path",
			entry: &mdns.ServiceEntry{
				Name:       "Dash._headunit._tcp.local.",
				AddrV4:     net.IPv4(192, 168, 1, 20),
				Port:       12000,
				InfoFields: []string{"path=/hu"},
			},
			expected: &HeadUnitInfo{Name: "Dash", Host: "192.168.1.20", Port: 12000, Path: "/hu"},
		},
		{
			name: "default path",
			entry: &mdns.ServiceEntry{
				Name:   "Dash._headunit._tcp.local.",
				AddrV4: net.IPv4(10, 0, 0, 2),
				Port:   12001,
			},
			expected: &HeadUnitInfo{Name: "Dash", Host: "10.0.0.2", Port: 12001, Path: "/headunit"},
		},
		{
			name:     "no ipv4",
			entry:    &mdns.ServiceEntry{Name: "v6only", Port: 12000},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := entryInfo(tt.entry)
			if tt.expected == nil {
				if got != nil {
					t.Errorf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil || *got != *tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestHeadUnitAddr(t *testing.T) {
	info := &HeadUnitInfo{Host: "192.168.1.20", Port: 12000}
	if got := info.Addr(); got != "192.168.1.20:12000" {
		t.Errorf("expected 192.168.1.20:12000, got %s", got)
	}
}
