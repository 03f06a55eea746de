package waveform

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/faiface/beep/wav"
)

// streamChunk is how many frames are pulled from the decoder at a time.
const streamChunk = 4096

// Decoded is a mono rendition of an audio file.
type Decoded struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the length in seconds.
func (d Decoded) Duration() float64 {
	if d.SampleRate <= 0 {
		return 0
	}
	return float64(len(d.Samples)) / float64(d.SampleRate)
}

// DecodeWAV reads a WAV file and downmixes it to mono.
func DecodeWAV(path string) (Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return Decoded{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return Decoded{}, fmt.Errorf("decode %s: %w", path, err)
	}
	defer streamer.Close()

	out := Decoded{
		Samples:    make([]float32, 0, max(0, streamer.Len())),
		SampleRate: int(format.SampleRate),
	}
	buf := make([][2]float64, streamChunk)
	for {
		n, ok := streamer.Stream(buf)
		for _, frame := range buf[:n] {
			out.Samples = append(out.Samples, float32((frame[0]+frame[1])/2))
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return Decoded{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

// WAVSource resolves audio source names to WAV files under Dir and keeps
// the decoded samples.
type WAVSource struct {
	Dir string

	mu      sync.Mutex
	decoded map[string]Decoded
}

// NewWAVSource creates a source rooted at dir.
func NewWAVSource(dir string) *WAVSource {
	return &WAVSource{Dir: dir, decoded: make(map[string]Decoded)}
}

// Samples returns the mono samples of source.
func (s *WAVSource) Samples(source string) ([]float32, error) {
	d, err := s.Decode(source)
	if err != nil {
		return nil, err
	}
	return d.Samples, nil
}

// Decode returns the decoded file for source, decoding it on first use.
func (s *WAVSource) Decode(source string) (Decoded, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.decoded[source]; ok {
		return d, nil
	}
	path := source
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.Dir, path)
	}
	d, err := DecodeWAV(path)
	if err != nil {
		return Decoded{}, err
	}
	s.decoded[source] = d
	return d, nil
}
