// Package sim emulates the numpad firmware so lighting reports can be
// exercised without hardware.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"

	"github.com/scheerer/keypad-lights/internal/colorspace"
	"github.com/scheerer/keypad-lights/internal/device"
	"github.com/scheerer/keypad-lights/internal/logging"
	"github.com/scheerer/keypad-lights/internal/report"
)

var logger = logging.New("sim")

const (
	VendorID  = 0xCAFE
	ProductID = 0x1337
	// Interface is the HID interface that accepts lighting reports.
	Interface = 1
	LEDCount  = 26

	speedMultiplier = 20
	wheelSteps      = 1530
)

var ErrClosed = errors.New("transport closed")

// ledMatrix maps switch matrix positions to LED strip indices; -1 marks
// positions without a key.
var ledMatrix = [6][5]int{
	{0, 10, 11, 20, -1},
	{1, 9, 12, 19, 21},
	{2, 8, 13, 18, 22},
	{3, 7, 14, -1, 23},
	{4, 6, 15, 17, 24},
	{5, -1, 16, -1, 25},
}

// stripOrder lists strip indices in the order key records arrive.
var stripOrder = func() []int {
	order := make([]int, 0, LEDCount)
	for _, row := range ledMatrix {
		for _, idx := range row {
			if idx >= 0 {
				order = append(order, idx)
			}
		}
	}
	return order
}()

type led struct {
	record  report.KeyRecord
	current colorspace.RGB
	// pos is the wheel position behind current, kept unrounded so small
	// steps accumulate.
	pos float64
}

// Numpad is an in-memory numpad. It enumerates itself as a single device and
// opens transports that feed its report decoder.
type Numpad struct {
	mu      sync.Mutex
	decoder *report.Decoder
	leds    [LEDCount]led
	applied int
}

var (
	_ device.Opener     = (*Numpad)(nil)
	_ device.Enumerator = (*Numpad)(nil)
)

func New() *Numpad {
	return &Numpad{decoder: report.NewDecoder(LEDCount)}
}

func (n *Numpad) USBDevice() device.USBDevice {
	return device.USBDevice{
		VendorID:     VendorID,
		ProductID:    ProductID,
		Interface:    Interface,
		Manufacturer: "sim",
		Product:      "Numpad V2 (simulated)",
		Path:         "sim:numpad",
	}
}

func (n *Numpad) Devices() ([]device.USBDevice, error) {
	return []device.USBDevice{n.USBDevice()}, nil
}

func (n *Numpad) Open(id device.ID) (device.Transport, error) {
	if id != n.USBDevice().ID() {
		return nil, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, id)
	}
	return &transport{numpad: n}, nil
}

// Applied counts the complete record sets received so far.
func (n *Numpad) Applied() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.applied
}

func (n *Numpad) feed(frame []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	records, err := n.decoder.Feed(frame)
	if err != nil {
		n.decoder.Reset()
		return err
	}
	if records == nil {
		return nil
	}
	for i, r := range records {
		n.leds[stripOrder[i]] = led{record: r, current: r.Color, pos: wheelPos(r.Color)}
	}
	n.applied++
	logger.With(zap.Int("keys", len(records))).Debug("Applied lighting settings")
	return nil
}

// Step advances animated LEDs by dt.
func (n *Numpad) Step(dt time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()

	secs := dt.Seconds()
	for i := range n.leds {
		l := &n.leds[i]
		if !l.record.Animated {
			continue
		}
		l.pos = advance(l.pos, float64(l.record.Speed)*secs*speedMultiplier)
		l.current = wheelColor(l.pos)
	}
}

// Run steps the LEDs every period until ctx is done, standing in for the
// firmware's main loop.
func (n *Numpad) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n.Step(now.Sub(last))
			last = now
		}
	}
}

// Pixels returns the emitted colour of every LED, indexed by strip position.
func (n *Numpad) Pixels() []colorspace.RGB {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]colorspace.RGB, LEDCount)
	for i, l := range n.leds {
		out[i] = scale(l.current, l.record.Brightness)
	}
	return out
}

// Records returns the last applied record for each LED, indexed by strip
// position.
func (n *Numpad) Records() []report.KeyRecord {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]report.KeyRecord, LEDCount)
	for i, l := range n.leds {
		out[i] = l.record
	}
	return out
}

func scale(c colorspace.RGB, brightness uint8) colorspace.RGB {
	f := float64(brightness) / 10
	return colorspace.RGB{
		R: uint8(math.Min(255, float64(c.R)*f)),
		G: uint8(math.Min(255, float64(c.G)*f)),
		B: uint8(math.Min(255, float64(c.B)*f)),
	}
}

// wheelPos is the wheel position of c's hue. Greys start at red.
func wheelPos(c colorspace.RGB) float64 {
	if c.R == c.G && c.G == c.B {
		return 0
	}
	h, _, _ := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Hsv()
	return h / 360 * wheelSteps
}

// advance moves pos by step degrees, wrapping around the wheel.
func advance(pos, step float64) float64 {
	pos = math.Mod(pos+step*wheelSteps/360, wheelSteps)
	if pos < 0 {
		pos += wheelSteps
	}
	return pos
}

// wheelColor is the colour at pos on the fully saturated wheel. The wheel
// has 1530 positions, six ramps of 255, so one channel is always 255 and one
// is 0.
func wheelColor(pos float64) colorspace.RGB {
	frac := math.Mod(pos, 255)
	var r, g, b float64
	switch int(pos / 255) {
	case 0:
		r, g, b = 255, frac, 0
	case 1:
		r, g, b = 255-frac, 255, 0
	case 2:
		r, g, b = 0, 255, frac
	case 3:
		r, g, b = 0, 255-frac, 255
	case 4:
		r, g, b = frac, 0, 255
	default:
		r, g, b = 255, 0, 255-frac
	}
	return colorspace.RGB{R: round(r), G: round(g), B: round(b)}
}

func round(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

type transport struct {
	numpad *Numpad
	mu     sync.Mutex
	closed bool
}

func (t *transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrClosed
	}
	if err := t.numpad.feed(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}
