// ABOUTME: Audio decode pipeline driving an engine on its own goroutine
// ABOUTME: Tracks the engine output format and resamples to the target format
package decode

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
	"github.com/Resonate-Protocol/headunit-go/pkg/audio/resample"
)

// FrameFunc receives resampled output frames on the decode goroutine.
// It must hand the block off without blocking for long.
type FrameFunc func(block audio.Block)

// CompleteFunc is called exactly once when decoding ends
type CompleteFunc func(success bool, err error)

// Config configures a Decoder
type Config struct {
	// Registry selects engines (default: DefaultRegistry)
	Registry *Registry

	// EngineLevel is the platform level of the decode engines (default: PCMEncodingLevel)
	EngineLevel int

	// PTSOffsetUs is added to every output timestamp
	PTSOffsetUs int64
}

// Decoder converts one source resource to output blocks
type Decoder struct {
	config Config

	mu           sync.RWMutex
	output       audio.Format
	engineFormat MediaFormat

	alive    atomic.Bool
	started  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewDecoder creates a decoder
func NewDecoder(config Config) *Decoder {
	if config.Registry == nil {
		config.Registry = DefaultRegistry()
	}
	if config.EngineLevel == 0 {
		config.EngineLevel = PCMEncodingLevel
	}
	return &Decoder{
		config:   config,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start decodes res asynchronously. Every failure, including an unusable
// target format, is reported through onComplete.
func (d *Decoder) Start(res Resource, target audio.Format, onFrame FrameFunc, onComplete CompleteFunc) {
	if !d.started.CompareAndSwap(false, true) {
		onComplete(false, ErrAlreadyStarted)
		return
	}
	d.alive.Store(true)

	go func() {
		defer close(d.done)
		err := d.run(res, target, onFrame)
		d.alive.Store(false)

		if err != nil {
			log.Printf("Decode of %s failed: %v", res.Name(), err)
			onComplete(false, err)
			return
		}
		onComplete(true, nil)
	}()
}

// Stop ends decoding. Frames produced after Stop are discarded.
func (d *Decoder) Stop() {
	d.alive.Store(false)
	d.stopOnce.Do(func() {
		close(d.stopChan)
	})
}

// Done is closed once the decode goroutine has exited
func (d *Decoder) Done() <-chan struct{} {
	return d.done
}

// OutputFormat returns the format of decoded engine buffers
func (d *Decoder) OutputFormat() audio.Format {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.output
}

// OnOutputFormatChanged re-derives the decoder output format from the
// format an engine reports. Engines below PCMEncodingLevel cannot report an
// encoding and always produce Signed16.
func (d *Decoder) OnOutputFormatChanged(format MediaFormat) {
	st := audio.Signed16
	if d.config.EngineLevel >= PCMEncodingLevel {
		st = sampleTypeFor(format.Encoding)
	}

	d.mu.Lock()
	d.engineFormat = format
	d.output = audio.Format{
		Channels:   format.Channels,
		SampleRate: format.SampleRate,
		SampleType: st,
	}
	d.mu.Unlock()
}

func (d *Decoder) run(res Resource, target audio.Format, onFrame FrameFunc) error {
	if err := target.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	rc, err := res.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer rc.Close()

	engine, opts, r, err := d.engineFor(res, rc)
	if err != nil {
		return err
	}
	defer engine.Close()

	format, err := engine.Open(r, opts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if format.Channels < 1 || format.SampleRate < 1 {
		return fmt.Errorf("%w: source reports %v", ErrUnsupportedFormat, format)
	}
	d.OnOutputFormatChanged(format)

	log.Printf("Decoding %s: %v -> %v", res.Name(), format, target)

	rs := resample.New(target)
	for {
		select {
		case <-d.stopChan:
			return ErrStopped
		default:
		}

		raw, err := engine.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}

		if raw.Format != nil && *raw.Format != d.currentEngineFormat() {
			d.OnOutputFormatChanged(*raw.Format)
		}

		buf, err := audio.WrapFormat(raw.Data, d.OutputFormat(), binary.LittleEndian, raw.PresentationTimeUs+d.config.PTSOffsetUs)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}

		block, err := rs.Process(buf, d.OutputFormat().SampleRate)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if block.Frames() == 0 {
			continue
		}

		if !d.alive.Load() {
			return ErrStopped
		}
		onFrame(block)
	}
}

func (d *Decoder) currentEngineFormat() MediaFormat {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.engineFormat
}

// engineFor picks an engine for res, peeking at the stream when needed
func (d *Decoder) engineFor(res Resource, rc io.Reader) (Engine, EngineOptions, io.Reader, error) {
	opts := EngineOptions{Legacy: d.config.EngineLevel < PCMEncodingLevel}

	if raw, ok := res.(RawResource); ok {
		f := raw.RawFormat()
		opts.Raw = &f
		return NewPCMEngine(), opts, rc, nil
	}

	br := bufio.NewReader(rc)
	header, err := br.Peek(12)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, opts, nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(header) == 0 {
		return nil, opts, nil, fmt.Errorf("%w: %s is empty", ErrDecode, res.Name())
	}

	engine, kind, err := d.config.Registry.Lookup(res.Name(), header)
	if err != nil {
		return nil, opts, nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if kind == "pcm" {
		return nil, opts, nil, fmt.Errorf("%w: raw pcm source %s has no format", ErrUnsupportedFormat, res.Name())
	}
	return engine, opts, br, nil
}
