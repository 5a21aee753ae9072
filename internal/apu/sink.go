package apu

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/gordonklaus/portaudio"
)

// PortAudioSink streams the APU's mixed output through the host's
// default audio device. The APU runs ahead of playback and buffers
// samples in a channel; the portaudio callback drains whatever is
// available and pads with silence rather than blocking, so a slow
// consumer never stalls the emulator.
type PortAudioSink struct {
	stream  *portaudio.Stream
	samples chan float32
}

// NewPortAudioSink opens a stereo output stream at the given sample
// rate. Both channels play the same mono mix; the NES has no stereo
// audio.
func NewPortAudioSink(sampleRate int) (*PortAudioSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("apu: portaudio init: %w", err)
	}

	sink := &PortAudioSink{samples: make(chan float32, sampleRate)}
	callback := func(out [][]float32) {
		for i := range out[0] {
			select {
			case s := <-sink.samples:
				out[0][i] = s
				out[1][i] = s
			default:
				out[0][i] = 0
				out[1][i] = 0
			}
		}
	}

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), 0, callback)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("apu: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("apu: start stream: %w", err)
	}
	sink.stream = stream
	return sink, nil
}

// Push enqueues freshly generated samples, dropping the oldest ones
// still queued if the host is consuming slower than the emulator runs.
func (s *PortAudioSink) Push(samples []float32) {
	for _, sample := range samples {
		select {
		case s.samples <- sample:
		default:
			select {
			case <-s.samples:
			default:
			}
			s.samples <- sample
		}
	}
}

// Close stops playback and releases the portaudio stream.
func (s *PortAudioSink) Close() {
	if err := s.stream.Stop(); err != nil {
		glog.Warningf("apu: stream stop: %v", err)
	}
	if err := s.stream.Close(); err != nil {
		glog.Warningf("apu: stream close: %v", err)
	}
	portaudio.Terminate()
}
