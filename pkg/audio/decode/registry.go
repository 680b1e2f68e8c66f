// ABOUTME: Registry mapping source kinds to decode engines
// ABOUTME: Selects an engine by file extension or sniffed magic bytes
package decode

import (
	"bytes"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// EngineFactory creates a fresh engine for one stream
type EngineFactory func() Engine

// Registry holds the available engines keyed by kind ("wav", "mp3", ...)
type Registry struct {
	mu       sync.RWMutex
	engines  map[string]EngineFactory
	fallback EngineFactory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]EngineFactory)}
}

// DefaultRegistry returns a registry with every built-in engine.
// ffmpeg is the fallback when it is installed.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("wav", NewWAVEngine)
	r.Register("mp3", NewMP3Engine)
	r.Register("flac", NewFLACEngine)
	r.Register("ogg", NewVorbisEngine)
	r.Register("opus", NewOpusEngine)
	r.Register("pcm", NewPCMEngine)
	if FFmpegAvailable() {
		r.SetFallback(NewFFmpegEngine)
	}
	return r
}

// Register adds or replaces the engine for kind
func (r *Registry) Register(kind string, f EngineFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[strings.ToLower(kind)] = f
}

// SetFallback sets the engine used when nothing else matches
func (r *Registry) SetFallback(f EngineFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = f
}

// Kinds returns the registered kinds in sorted order
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.engines))
	for k := range r.engines {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Lookup returns a new engine for a source name and its first bytes
func (r *Registry) Lookup(name string, header []byte) (Engine, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, kind := range []string{kindFromName(name), Sniff(header)} {
		if f, ok := r.engines[kind]; ok && kind != "" {
			return f(), kind, nil
		}
	}
	if r.fallback != nil {
		return r.fallback(), "ffmpeg", nil
	}
	return nil, "", fmt.Errorf("%w: %s", ErrNoEngine, name)
}

var extAliases = map[string]string{
	"oga":  "ogg",
	"wave": "wav",
	"raw":  "pcm",
}

func kindFromName(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if alias, ok := extAliases[ext]; ok {
		return alias
	}
	return ext
}

// Sniff identifies a container from its leading bytes
func Sniff(header []byte) string {
	switch {
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(header, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(header, []byte("OggS")):
		return "ogg"
	case bytes.HasPrefix(header, []byte(OpusStreamMagic)):
		return "opus"
	case bytes.HasPrefix(header, []byte("ID3")):
		return "mp3"
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return "mp3"
	default:
		return ""
	}
}
