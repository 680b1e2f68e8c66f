// ABOUTME: Tests for version constants
// ABOUTME: Ensures identification sent to head units is usable
package version

import (
	"strings"
	"testing"
)

func TestIdentification(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"version", Version},
		{"product", Product},
		{"manufacturer", Manufacturer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value == "" {
				t.Fatal("must not be empty")
			}
			if len(tt.value) > 100 {
				t.Error("unreasonably long")
			}
			if strings.TrimSpace(tt.value) != tt.value {
				t.Errorf("%q has surrounding whitespace", tt.value)
			}
		})
	}
}

func TestVersionFormat(t *testing.T) {
	parts := strings.Split(Version, ".")
	if len(parts) != 3 {
		t.Errorf("expected major.minor.patch, got %s", Version)
	}
}
