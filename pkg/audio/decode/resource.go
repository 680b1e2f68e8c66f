// ABOUTME: Opaque source resource handles for the decoder
// ABOUTME: Files, in-memory bytes, raw PCM and HTTP streams
package decode

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
)

// Resource is an audio source the decoder can open
type Resource interface {
	// Name identifies the resource; its extension selects an engine
	Name() string
	// Open returns a fresh stream positioned at the start
	Open() (io.ReadCloser, error)
}

// RawResource is a resource of headerless PCM in a known format
type RawResource interface {
	Resource
	RawFormat() audio.Format
}

// FileResource is a local audio file
type FileResource struct {
	Path string
}

func (f FileResource) Name() string { return filepath.Base(f.Path) }

func (f FileResource) Open() (io.ReadCloser, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Path, err)
	}
	return file, nil
}

// BytesResource is an encoded file held in memory
type BytesResource struct {
	Label string // e.g. "tone.wav"
	Data  []byte
}

func (b BytesResource) Name() string { return b.Label }

func (b BytesResource) Open() (io.ReadCloser, error) {
	return nopSeekCloser{bytes.NewReader(b.Data)}, nil
}

// PCMResource is headerless little-endian PCM held in memory
type PCMResource struct {
	Label  string
	Data   []byte
	Format audio.Format
}

func (p PCMResource) Name() string { return p.Label }

func (p PCMResource) Open() (io.ReadCloser, error) {
	return nopSeekCloser{bytes.NewReader(p.Data)}, nil
}

func (p PCMResource) RawFormat() audio.Format { return p.Format }

// HTTPResource streams a remote file
type HTTPResource struct {
	URL    string
	Client *http.Client
}

func (h HTTPResource) Name() string { return h.URL }

func (h HTTPResource) Open() (io.ReadCloser, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Get(h.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTTP stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}
	return resp.Body, nil
}

// nopSeekCloser keeps Seek visible for engines that need it
type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }
