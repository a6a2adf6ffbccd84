package lifx

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pdf/golifx"
	"github.com/pdf/golifx/common"
	"github.com/pdf/golifx/protocol"
	"go.uber.org/zap"

	"github.com/scheerer/keypad-lights/internal/colorspace"
	"github.com/scheerer/keypad-lights/internal/lights"
	"github.com/scheerer/keypad-lights/internal/logging"
)

var logger = logging.New("lifx")

const kelvin = 3500

type LifxLights struct {
	config Config
	client *golifx.Client

	groupMu sync.RWMutex
	group   common.Group
}

var _ lights.LightService = (*LifxLights)(nil)

type Config struct {
	GroupName         string
	MaxBrightness     float64
	MinBrightness     float64
	DiscoveryInterval time.Duration
}

func NewLifx(ctx context.Context, config Config) (*LifxLights, error) {
	client, err := golifx.NewClient(&protocol.V2{})
	if err != nil {
		return nil, err
	}
	if config.DiscoveryInterval <= 0 {
		config.DiscoveryInterval = 15 * time.Second
	}

	l := &LifxLights{
		config: config,
		client: client,
	}
	go l.Start(ctx)
	return l, nil
}

// Start looks the group up immediately and again every discovery interval.
func (l *LifxLights) Start(ctx context.Context) {
	ticker := time.NewTicker(l.config.DiscoveryInterval)
	defer ticker.Stop()

	l.client.SetDiscoveryInterval(l.config.DiscoveryInterval)

	for {
		l.discover(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (l *LifxLights) discover(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	type result struct {
		group common.Group
		err   error
	}
	completed := make(chan result, 1)
	go func() {
		g, err := l.client.GetGroupByLabel(l.config.GroupName)
		completed <- result{g, err}
	}()

	select {
	case <-ctx.Done():
		logger.With(zap.String("group", l.config.GroupName), zap.Error(ctx.Err())).Warn("LIFX discovery timed out")
	case r := <-completed:
		if r.err != nil || r.group == nil {
			logger.With(zap.String("group", l.config.GroupName), zap.Error(r.err)).Warn("Couldn't discover LIFX group")
			return
		}
		l.groupMu.Lock()
		l.group = r.group
		l.groupMu.Unlock()
		logger.With(zap.String("group", r.group.GetLabel())).Debug("LIFX group found")
	}
}

func (l *LifxLights) LightCount() int {
	l.groupMu.RLock()
	defer l.groupMu.RUnlock()
	if l.group == nil {
		return 0
	}
	return len(l.group.Lights())
}

func (l *LifxLights) SetColorWithDuration(_ context.Context, color colorspace.RGB, duration time.Duration) {
	l.groupMu.RLock()
	g := l.group
	l.groupMu.RUnlock()
	if g == nil {
		return
	}

	lifxColor := adjustColor(newLifxColor(color), l.config)
	logger.With(zap.Stringer("color", color),
		zap.Any("lifxColor", lifxColor)).
		Debug("Setting LIFX group color")

	if err := g.SetColor(lifxColor, duration); err != nil {
		logger.With(zap.Error(err)).Warn("Failed to set color for LIFX group")
	}
}

// newLifxColor maps an RGB colour to LIFX's 16 bit HSB.
func newLifxColor(c colorspace.RGB) common.Color {
	h, s, v := colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hsv()

	return common.Color{
		Hue:        uint16(math.Round(h / 360 * 0xFFFF)),
		Saturation: uint16(math.Round(s * 0xFFFF)),
		Brightness: uint16(math.Round(v * 0xFFFF)),
		Kelvin:     kelvin,
	}
}

func adjustColor(color common.Color, config Config) common.Color {
	blackThreshold := 0.015 * 0xFFFF
	if color.Brightness <= uint16(blackThreshold) && color.Saturation <= uint16(blackThreshold) {
		// blackish, turn the light off
		return common.Color{Kelvin: kelvin}
	}

	color.Brightness = uint16(math.Min(config.MaxBrightness*0xFFFF, math.Max(config.MinBrightness*0xFFFF, float64(color.Brightness))))
	return color
}
