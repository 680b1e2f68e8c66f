// ABOUTME: Records received audio to disk
// ABOUTME: Writes an Opus packet stream readable by the opus decode engine
package headunit

import (
	"errors"
	"fmt"
	"os"

	"github.com/Resonate-Protocol/headunit-go/pkg/audio/encode"
)

type recorder struct {
	file   *os.File
	writer *encode.OpusWriter
}

func openRecorder(path string, sampleRate, channels int) (*recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}
	w, err := encode.NewOpusWriter(f, sampleRate, channels)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &recorder{file: f, writer: w}, nil
}

func (r *recorder) write(samples []int16) error {
	return r.writer.WriteSamples(samples)
}

func (r *recorder) close() error {
	return errors.Join(r.writer.Close(), r.file.Close())
}
