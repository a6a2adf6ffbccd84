package lights

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/keypad-lights/internal/colorspace"
	"github.com/scheerer/keypad-lights/internal/logging"
)

var logger = logging.New("lights")

// LightService is a room light that can follow the keypad.
type LightService interface {
	Start(ctx context.Context)
	LightCount() int
	SetColorWithDuration(ctx context.Context, color colorspace.RGB, duration time.Duration)
}

// Mirror sends the average colour of the keys to a light service.
type Mirror struct {
	service  LightService
	interval time.Duration

	last colorspace.RGB
	sent bool
}

func NewMirror(service LightService, interval time.Duration) *Mirror {
	return &Mirror{service: service, interval: interval}
}

// Update averages colors and forwards the result when it differs from the
// last colour sent. It reports whether anything was sent.
func (m *Mirror) Update(ctx context.Context, colors []colorspace.RGB) bool {
	if len(colors) == 0 || m.service.LightCount() == 0 {
		return false
	}
	avg := colorspace.Average(colors)
	if m.sent && avg == m.last {
		return false
	}
	m.service.SetColorWithDuration(ctx, avg, m.interval)
	m.last = avg
	m.sent = true
	return true
}

// Run calls Update with the colours from source every interval until ctx is
// done.
func (m *Mirror) Run(ctx context.Context, source func() []colorspace.RGB) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	logger.With(zap.Stringer("interval", m.interval)).Info("Mirroring key colours to lights")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Update(ctx, source())
		}
	}
}
