package device

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu      sync.Mutex
	written [][]byte
	failAt  int
	closed  bool
	block   chan struct{}
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt >= 0 && len(f.written) == f.failAt {
		return 0, errors.New("pipe broken")
	}
	f.written = append(f.written, bytes.Clone(p))
	return len(p), nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

type fakeOpener struct {
	transports map[ID]*fakeTransport
}

func (o *fakeOpener) Open(id ID) (Transport, error) {
	t, ok := o.transports[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return t, nil
}

var numpad = ID{VID: 0x1209, PID: 0x0001, Interface: 1}

func frames(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{0, 1, byte(i)}
	}
	return out
}

func TestPushWritesFramesInOrder(t *testing.T) {
	tr := &fakeTransport{failAt: -1}
	p := NewPusher(&fakeOpener{transports: map[ID]*fakeTransport{numpad: tr}})

	require.NoError(t, p.Push(context.Background(), numpad, frames(3)))
	assert.Equal(t, frames(3), tr.written)
	assert.True(t, tr.closed)
}

func TestPushStopsAtFirstFailure(t *testing.T) {
	tr := &fakeTransport{failAt: 1}
	p := NewPusher(&fakeOpener{transports: map[ID]*fakeTransport{numpad: tr}})

	err := p.Push(context.Background(), numpad, frames(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame 2/3")
	assert.Len(t, tr.written, 1)
	assert.True(t, tr.closed)
}

func TestPushUnknownDevice(t *testing.T) {
	p := NewPusher(&fakeOpener{})
	err := p.Push(context.Background(), numpad, frames(1))
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestPushRejectsConcurrentPushToSameDevice(t *testing.T) {
	tr := &fakeTransport{failAt: -1, block: make(chan struct{})}
	p := NewPusher(&fakeOpener{transports: map[ID]*fakeTransport{numpad: tr}})

	done := make(chan error, 1)
	go func() { done <- p.Push(context.Background(), numpad, frames(2)) }()

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.inFlight[numpad]
	}, time.Second, time.Millisecond)

	err := p.Push(context.Background(), numpad, frames(1))
	assert.ErrorIs(t, err, ErrPushInFlight)

	close(tr.block)
	require.NoError(t, <-done)
	assert.Len(t, tr.written, 2)

	// released after completion
	require.NoError(t, p.Push(context.Background(), numpad, frames(1)))
}

func TestPushHonoursCancellation(t *testing.T) {
	tr := &fakeTransport{failAt: -1}
	p := NewPusher(&fakeOpener{transports: map[ID]*fakeTransport{numpad: tr}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Push(ctx, numpad, frames(2)), context.Canceled)
	assert.Empty(t, tr.written)
}

func fakeSysfs(t *testing.T) *HIDRaw {
	t.Helper()
	root := t.TempDir()
	sys := filepath.Join(root, "sys")
	dev := filepath.Join(root, "dev")
	require.NoError(t, os.MkdirAll(dev, 0o755))

	add := func(node, iface, uevent string) {
		hid := filepath.Join(sys, "devices", "usb1", "1-1", iface, "0003:1209:0001."+node)
		require.NoError(t, os.MkdirAll(hid, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(hid, "uevent"), []byte(uevent), 0o644))

		class := filepath.Join(sys, "class", "hidraw", node)
		require.NoError(t, os.MkdirAll(class, 0o755))
		require.NoError(t, os.Symlink(hid, filepath.Join(class, "device")))
		require.NoError(t, os.WriteFile(filepath.Join(dev, node), nil, 0o644))
	}
	add("hidraw0", "1-1:1.0", "DRIVER=hid-generic\nHID_ID=0003:00001209:00000001\nHID_NAME=Keypad Numpad\nHID_UNIQ=SN42\n")
	add("hidraw1", "1-1:1.1", "DRIVER=hid-generic\nHID_ID=0003:00001209:00000001\nHID_NAME=Keypad Numpad\n")
	add("hidraw2", "1-1:1.2", "DRIVER=hid-generic\nHID_NAME=broken\n")

	return &HIDRaw{SysfsRoot: sys, DevRoot: dev}
}

func TestHIDRawDevices(t *testing.T) {
	h := fakeSysfs(t)

	devices, err := h.Devices()
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, uint16(0x1209), devices[0].VendorID)
	assert.Equal(t, uint16(0x0001), devices[0].ProductID)
	assert.Equal(t, 0, devices[0].Interface)
	assert.Equal(t, "Keypad Numpad", devices[0].Product)
	assert.Equal(t, "SN42", devices[0].Serial)
	assert.Equal(t, filepath.Join(h.DevRoot, "hidraw0"), devices[0].Path)
	assert.Equal(t, 1, devices[1].Interface)
}

func TestHIDRawOpenPicksInterface(t *testing.T) {
	h := fakeSysfs(t)

	tr, err := h.Open(numpad)
	require.NoError(t, err)
	_, err = tr.Write([]byte{0, 1, 2})
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	data, err := os.ReadFile(filepath.Join(h.DevRoot, "hidraw1"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, data)

	_, err = h.Open(ID{VID: 1, PID: 2, Interface: 1})
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestHIDRawMissingClass(t *testing.T) {
	h := &HIDRaw{SysfsRoot: t.TempDir(), DevRoot: t.TempDir()}
	devices, err := h.Devices()
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestParseHIDID(t *testing.T) {
	vid, pid, err := parseHIDID("0003:0000046D:0000C52B")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x046d), vid)
	assert.Equal(t, uint16(0xc52b), pid)

	_, _, err = parseHIDID("0003:046D")
	assert.Error(t, err)
	_, _, err = parseHIDID("0003:zz:0001")
	assert.Error(t, err)
}

type listEnumerator struct {
	mu      sync.Mutex
	devices []USBDevice
}

func (l *listEnumerator) set(d ...USBDevice) {
	l.mu.Lock()
	l.devices = d
	l.mu.Unlock()
}

func (l *listEnumerator) Devices() ([]USBDevice, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]USBDevice(nil), l.devices...), nil
}

func TestWatchEmitsOnChange(t *testing.T) {
	e := &listEnumerator{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := Watch(ctx, e, 2*time.Millisecond)

	select {
	case got := <-ch:
		assert.Empty(t, got)
	case <-time.After(time.Second):
		t.Fatal("no initial device list")
	}

	pad := USBDevice{VendorID: 0x1209, ProductID: 1, Interface: 1, Path: "/dev/hidraw1"}
	e.set(pad)

	select {
	case got := <-ch:
		assert.Equal(t, []USBDevice{pad}, got)
	case <-time.After(time.Second):
		t.Fatal("change not reported")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, time.Second, time.Millisecond)
}
