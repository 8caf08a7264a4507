package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"sharecast/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/io/audio"
	"github.com/pion/mediadevices/pkg/wave"
	"go.uber.org/zap"
)

// Mixer sums two audio tracks into one composed mediadevices track.
type Mixer struct {
	codecs *mediadevices.CodecSelector
	logger *zap.SugaredLogger
}

func NewMixer(codecs *mediadevices.CodecSelector, logger *zap.SugaredLogger) *Mixer {
	return &Mixer{codecs: codecs, logger: logger}
}

// Combine consumes a and b. Releasing the returned mix stops the composed
// track and both sources once.
func (m *Mixer) Combine(ctx context.Context, a, b *domain.LocalTrack) (*domain.MixResult, error) {
	if a.Kind() != domain.MediaKindAudio || b.Kind() != domain.MediaKindAudio {
		return nil, domain.NewMixError(domain.MixWrongKind, fmt.Errorf("cannot mix %s with %s", a.Kind(), b.Kind()))
	}
	if m.codecs == nil {
		return nil, domain.NewMixError(domain.MixEngineUnavailable, ErrCodecsUnavailable)
	}

	readerA, okA := audioReader(a)
	readerB, okB := audioReader(b)
	if !okA || !okB {
		return nil, domain.NewMixError(domain.MixEngineUnavailable, errors.New("track has no raw audio reader"))
	}
	if err := domain.ConsumePair(a, b); err != nil {
		return nil, domain.NewMixError(domain.MixEngineUnavailable, err)
	}

	source := newMixSource("mix-"+uuid.NewString(), readerA, readerB, m.logger)
	composed := NewLocalTrack(mediadevices.NewAudioTrack(source, m.codecs), domain.OriginMix)

	teardown := func() error {
		return errors.Join(composed.Stop(), source.Close(), a.ReleaseConsumed(), b.ReleaseConsumed())
	}
	m.logger.Infow("audio mix created", "mix_id", source.ID(), "a", a.ID(), "b", b.ID())
	return domain.NewMixResult(composed, a, b, teardown), nil
}

// mixSource pulls one chunk from each input per Read and emits their sum.
// When one input ends the other passes through alone.
type mixSource struct {
	id      string
	readers [2]audio.Reader
	done    [2]bool
	warned  [2]bool

	mu     sync.Mutex
	closed bool

	logger *zap.SugaredLogger
}

func newMixSource(id string, a, b audio.Reader, logger *zap.SugaredLogger) *mixSource {
	return &mixSource{id: id, readers: [2]audio.Reader{a, b}, logger: logger}
}

func (s *mixSource) ID() string {
	return s.id
}

func (s *mixSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *mixSource) Read() (wave.Audio, func(), error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, func() {}, io.EOF
	}

	var (
		samples [2][]int16
		info    wave.ChunkInfo
		haveAny bool
	)
	for i, reader := range s.readers {
		if s.done[i] {
			continue
		}
		chunk, release, err := reader.Read()
		if err != nil {
			s.done[i] = true
			s.logger.Debugw("mix input ended", "mix_id", s.id, "input", i, "error", err)
			continue
		}
		data, chunkInfo, err := int16Samples(chunk)
		if release != nil {
			release()
		}
		if err != nil {
			return nil, func() {}, err
		}
		if !haveAny {
			info = chunkInfo
			haveAny = true
		} else {
			if chunkInfo.SamplingRate != info.SamplingRate {
				if !s.warned[i] {
					s.warned[i] = true
					s.logger.Warnw("mix input sample rate differs, input dropped from mix",
						"mix_id", s.id, "input", i, "rate", chunkInfo.SamplingRate, "want", info.SamplingRate)
				}
				continue
			}
			if chunkInfo.Channels != info.Channels {
				data = remixChannels(data, chunkInfo.Channels, info.Channels)
			}
		}
		samples[i] = data
	}
	if !haveAny {
		return nil, func() {}, io.EOF
	}
	if info.Channels == 0 {
		info.Channels = 1
	}

	if n := len(samples[0]); n > info.Len*info.Channels {
		info.Len = n / info.Channels
	}
	if n := len(samples[1]); n > info.Len*info.Channels {
		info.Len = n / info.Channels
	}

	out := wave.NewInt16Interleaved(info)
	mixSamples(out.Data, samples[0], samples[1])
	return out, func() {}, nil
}

func int16Samples(chunk wave.Audio) ([]int16, wave.ChunkInfo, error) {
	switch c := chunk.(type) {
	case *wave.Int16Interleaved:
		out := make([]int16, len(c.Data))
		copy(out, c.Data)
		return out, c.Size, nil
	case *wave.Float32Interleaved:
		out := make([]int16, len(c.Data))
		float32ToInt16(out, c.Data)
		return out, c.Size, nil
	default:
		return nil, wave.ChunkInfo{}, fmt.Errorf("unsupported sample format %T", chunk)
	}
}
