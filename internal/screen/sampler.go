package screen

import (
	"context"
	"image"
	"time"

	"github.com/kbinani/screenshot"
	"go.uber.org/zap"

	"github.com/scheerer/keypad-lights/internal/colorspace"
	"github.com/scheerer/keypad-lights/internal/logging"
)

var logger = logging.New("screen")

// Sampler captures a display and reduces it to a single colour.
type Sampler struct {
	screenNumber  int
	pixelGridSize int
	algo          Algorithm
	capture       func(display int) (*image.RGBA, error)
}

func NewSampler(screenNumber, pixelGridSize int, algo Algorithm) *Sampler {
	return &Sampler{
		screenNumber:  screenNumber,
		pixelGridSize: pixelGridSize,
		algo:          algo,
		capture:       screenshot.CaptureDisplay,
	}
}

func (s *Sampler) Sample() (colorspace.RGB, error) {
	img, err := s.capture(s.screenNumber)
	if err != nil {
		return colorspace.RGB{}, err
	}
	return s.algo(img, s.pixelGridSize), nil
}

// Follow samples every interval and hands the colour to fn until ctx is done.
// Slow captures are reported at most every ten seconds.
func (s *Sampler) Follow(ctx context.Context, interval time.Duration, fn func(colorspace.RGB)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastWarning time.Time
	for {
		start := time.Now()
		c, err := s.Sample()
		if err != nil {
			logger.With(zap.Error(err)).Error("Failed to capture screen")
		} else {
			fn(c)
		}

		if took := time.Since(start); took > interval && time.Since(lastWarning) > 10*time.Second {
			logger.With(zap.Stringer("took", took), zap.Stringer("interval", interval)).
				Warn("Cannot keep up with CAPTURE_INTERVAL. Consider increasing PIXEL_GRID_SIZE or CAPTURE_INTERVAL.")
			lastWarning = time.Now()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
