// ABOUTME: ffmpeg subprocess decode engine
// ABOUTME: Decodes any format ffmpeg understands to 48kHz stereo 16-bit PCM
package decode

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os/exec"
)

// Fixed output format for consistency
const (
	ffmpegSampleRate  = 48000
	ffmpegChannels    = 2
	ffmpegChunkFrames = 960 // 20ms
)

// FFmpegEngine pipes the source through an ffmpeg process
type FFmpegEngine struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	format MediaFormat
	frames int64
}

// FFmpegAvailable reports whether ffmpeg is on PATH
func FFmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// NewFFmpegEngine creates an ffmpeg engine
func NewFFmpegEngine() Engine {
	return &FFmpegEngine{}
}

// Open starts ffmpeg reading the source from stdin
func (e *FFmpegEngine) Open(r io.Reader, opts EngineOptions) (MediaFormat, error) {
	if !FFmpegAvailable() {
		return MediaFormat{}, fmt.Errorf("ffmpeg not found in PATH")
	}

	// -f s16le: signed 16-bit little-endian PCM on stdout
	cmd := exec.Command("ffmpeg",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", fmt.Sprint(ffmpegSampleRate),
		"-ac", fmt.Sprint(ffmpegChannels),
		"-",
	)
	cmd.Stdin = r

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return MediaFormat{}, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return MediaFormat{}, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	log.Printf("Started ffmpeg decoder (pid %d)", cmd.Process.Pid)

	e.cmd = cmd
	e.stdout = stdout
	e.reader = bufio.NewReaderSize(stdout, 64*1024)
	e.format = MediaFormat{
		Channels:   ffmpegChannels,
		SampleRate: ffmpegSampleRate,
		Encoding:   encodingForBits(16, opts.Legacy),
	}
	return e.format, nil
}

// Next reads the next 20ms of PCM
func (e *FFmpegEngine) Next() (RawBuffer, error) {
	frameSize := ffmpegChannels * 2
	buf := make([]byte, ffmpegChunkFrames*frameSize)

	n, err := io.ReadFull(e.reader, buf)
	n -= n % frameSize
	if n == 0 {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return RawBuffer{}, io.EOF
		}
		return RawBuffer{}, fmt.Errorf("ffmpeg read error: %w", err)
	}

	out := RawBuffer{Data: buf[:n], PresentationTimeUs: framesToUs(e.frames, ffmpegSampleRate)}
	e.frames += int64(n / frameSize)
	return out, nil
}

// Close stops the ffmpeg process
func (e *FFmpegEngine) Close() error {
	if e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	e.stdout.Close()
	e.cmd.Process.Kill()
	e.cmd.Wait()
	return nil
}
