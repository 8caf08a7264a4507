package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
)

var errNoDisplay = errors.New("no display found")

// screenSource is a mediadevices video source that grabs frames with
// screenshot at a fixed rate.
type screenSource struct {
	id           string
	displayIndex int
	bounds       image.Rectangle
	fps          float64
	interval     time.Duration
	last         time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func newScreenSource(displayIndex int, fps float64) (*screenSource, error) {
	if n := screenshot.NumActiveDisplays(); n == 0 {
		return nil, errNoDisplay
	} else if displayIndex >= n {
		return nil, fmt.Errorf("display %d not found (%d active): %w", displayIndex, n, errNoDisplay)
	}
	if fps <= 0 {
		fps = 15
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &screenSource{
		id:           fmt.Sprintf("screenshot-%d", displayIndex),
		displayIndex: displayIndex,
		bounds:       screenshot.GetDisplayBounds(displayIndex),
		fps:          fps,
		interval:     time.Duration(float64(time.Second) / fps),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

func (s *screenSource) Read() (image.Image, func(), error) {
	if wait := s.interval - time.Since(s.last); wait > 0 {
		select {
		case <-s.ctx.Done():
			return nil, func() {}, s.ctx.Err()
		case <-time.After(wait):
		}
	}
	if err := s.ctx.Err(); err != nil {
		return nil, func() {}, err
	}

	img, err := screenshot.CaptureDisplay(s.displayIndex)
	if err != nil {
		return nil, func() {}, err
	}
	s.last = time.Now()
	return img, func() {}, nil
}

func (s *screenSource) Close() error {
	s.cancel()
	return nil
}

func (s *screenSource) ID() string {
	return s.id
}

func (s *screenSource) Properties() []prop.Media {
	return []prop.Media{{
		Video: prop.Video{
			Width:       s.bounds.Dx(),
			Height:      s.bounds.Dy(),
			FrameFormat: frame.FormatRGBA,
			FrameRate:   float32(s.fps),
		},
	}}
}
