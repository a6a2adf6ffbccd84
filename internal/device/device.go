package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/scheerer/keypad-lights/internal/logging"
)

var logger = logging.New("device")

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrPushInFlight   = errors.New("push already in progress for device")
)

// USBDevice is a connected device as reported by the host.
type USBDevice struct {
	VendorID     uint16
	ProductID    uint16
	Interface    int
	Manufacturer string
	Product      string
	Serial       string
	Path         string
}

func (d USBDevice) ID() ID {
	return ID{VID: d.VendorID, PID: d.ProductID, Interface: d.Interface}
}

// ID addresses one interface of a device.
type ID struct {
	VID       uint16
	PID       uint16
	Interface int
}

func (id ID) String() string {
	return fmt.Sprintf("%04x:%04x#%d", id.VID, id.PID, id.Interface)
}

// Transport writes raw frames to an opened device interface.
type Transport interface {
	io.WriteCloser
}

type Opener interface {
	Open(id ID) (Transport, error)
}

type Enumerator interface {
	Devices() ([]USBDevice, error)
}

// Pusher sends frame sequences to devices, never running two sequences for
// the same device at once.
type Pusher struct {
	opener Opener

	mu       sync.Mutex
	inFlight map[ID]bool
}

func NewPusher(opener Opener) *Pusher {
	return &Pusher{
		opener:   opener,
		inFlight: make(map[ID]bool),
	}
}

func (p *Pusher) acquire(id ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[id] {
		return false
	}
	p.inFlight[id] = true
	return true
}

func (p *Pusher) release(id ID) {
	p.mu.Lock()
	delete(p.inFlight, id)
	p.mu.Unlock()
}

// Push writes frames to the device in order, one write per frame. The first
// failing write aborts the sequence; nothing is retried.
func (p *Pusher) Push(ctx context.Context, id ID, frames [][]byte) error {
	if !p.acquire(id) {
		return fmt.Errorf("%w: %s", ErrPushInFlight, id)
	}
	defer p.release(id)

	t, err := p.opener.Open(id)
	if err != nil {
		return fmt.Errorf("open %s: %w", id, err)
	}
	defer t.Close()

	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.Write(frame); err != nil {
			logger.With(zap.Stringer("device", id),
				zap.Int("frame", i),
				zap.Int("frames", len(frames)),
				zap.Error(err)).
				Warn("Failed to write report, abandoning sequence")
			return fmt.Errorf("write frame %d/%d to %s: %w", i+1, len(frames), id, err)
		}
	}

	logger.With(zap.Stringer("device", id), zap.Int("frames", len(frames))).Debug("Pushed lighting reports")
	return nil
}
