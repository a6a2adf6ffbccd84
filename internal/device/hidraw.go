package device

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// HIDRaw finds devices through the Linux hidraw class in sysfs and writes to
// the matching /dev/hidrawN node. On other platforms the class directory is
// missing and no devices are listed.
type HIDRaw struct {
	SysfsRoot string
	DevRoot   string
}

func NewHIDRaw() *HIDRaw {
	return &HIDRaw{SysfsRoot: "/sys", DevRoot: "/dev"}
}

func (h *HIDRaw) Devices() ([]USBDevice, error) {
	nodes, err := filepath.Glob(filepath.Join(h.SysfsRoot, "class", "hidraw", "hidraw*"))
	if err != nil {
		return nil, err
	}

	devices := make([]USBDevice, 0, len(nodes))
	for _, node := range nodes {
		d, err := h.readNode(node)
		if err != nil {
			logger.With("node", node, "error", err).Debug("Skipping hidraw node")
			continue
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func (h *HIDRaw) readNode(node string) (USBDevice, error) {
	d := USBDevice{Path: filepath.Join(h.DevRoot, filepath.Base(node))}

	f, err := os.Open(filepath.Join(node, "device", "uevent"))
	if err != nil {
		return d, err
	}
	defer f.Close()

	var haveID bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "HID_ID":
			if d.VendorID, d.ProductID, err = parseHIDID(value); err != nil {
				return d, err
			}
			haveID = true
		case "HID_NAME":
			d.Product = value
		case "HID_UNIQ":
			d.Serial = value
		}
	}
	if err := scanner.Err(); err != nil {
		return d, err
	}
	if !haveID {
		return d, fmt.Errorf("no HID_ID in uevent")
	}

	d.Interface = interfaceNumber(filepath.Join(node, "device"))
	return d, nil
}

// parseHIDID reads "BBBB:VVVVVVVV:PPPPPPPP".
func parseHIDID(s string) (vid, pid uint16, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, 0, fmt.Errorf("malformed HID_ID %q", s)
	}
	v, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed HID_ID %q: %w", s, err)
	}
	p, err := strconv.ParseUint(parts[2], 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed HID_ID %q: %w", s, err)
	}
	return uint16(v), uint16(p), nil
}

// interfaceNumber resolves the HID device to its USB interface directory,
// named like "1-1.4:1.2", and returns the number after the last dot. -1 when
// the device does not sit on a USB interface.
func interfaceNumber(deviceLink string) int {
	resolved, err := filepath.EvalSymlinks(deviceLink)
	if err != nil {
		return -1
	}
	parent := filepath.Base(filepath.Dir(resolved))
	if !strings.Contains(parent, ":") {
		return -1
	}
	i := strings.LastIndex(parent, ".")
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(parent[i+1:])
	if err != nil {
		return -1
	}
	return n
}

func (h *HIDRaw) Open(id ID) (Transport, error) {
	devices, err := h.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.ID() != id {
			continue
		}
		f, err := os.OpenFile(d.Path, os.O_WRONLY, 0)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}
