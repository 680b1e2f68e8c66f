// ABOUTME: Tests for the engine registry
// ABOUTME: Tests extension lookup, magic sniffing and fallback
package decode

import (
	"errors"
	"testing"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name     string
		header   []byte
		expected string
	}{
		{"wav", []byte("RIFF\x00\x00\x00\x00WAVE"), "wav"},
		{"flac", []byte("fLaC\x00\x00"), "flac"},
		{"ogg", []byte("OggS\x00"), "ogg"},
		{"opus stream", []byte("OPUS\x00\x00\xbb\x80\x02"), "opus"},
		{"id3", []byte("ID3\x04"), "mp3"},
		{"mpeg sync", []byte{0xFF, 0xFB, 0x90}, "mp3"},
		{"unknown", []byte("hello"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.header); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	r := testRegistry()

	tests := []struct {
		name     string
		source   string
		header   []byte
		expected string
	}{
		{"extension", "song.FLAC", nil, "flac"},
		{"alias", "track.oga", nil, "ogg"},
		{"url with query", "http://host/a.mp3?token=1", nil, "mp3"},
		{"sniffed", "http://host/stream", []byte("OggS"), "ogg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, kind, err := r.Lookup(tt.source, tt.header)
			if err != nil {
				t.Fatalf("lookup failed: %v", err)
			}
			if engine == nil {
				t.Fatal("expected engine")
			}
			if kind != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, kind)
			}
		})
	}
}

func TestRegistryNoEngine(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Lookup("clip.xyz", []byte("junk"))
	if !errors.Is(err, ErrNoEngine) {
		t.Errorf("expected ErrNoEngine, got %v", err)
	}

	r.SetFallback(NewPCMEngine)
	if _, kind, err := r.Lookup("clip.xyz", nil); err != nil || kind != "ffmpeg" {
		t.Errorf("expected fallback, got %q, %v", kind, err)
	}
}

func TestRegistryKinds(t *testing.T) {
	kinds := testRegistry().Kinds()
	expected := []string{"flac", "mp3", "ogg", "opus", "wav"}
	if len(kinds) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, kinds)
	}
	for i := range expected {
		if kinds[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, kinds)
		}
	}
}
