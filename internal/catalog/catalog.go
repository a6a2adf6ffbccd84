package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/scheerer/keypad-lights/internal/device"
	"github.com/scheerer/keypad-lights/internal/logging"
)

var logger = logging.New("catalog")

var ErrMalformedCatalog = errors.New("malformed supported device catalog")

// SupportedDevice is one catalog entry describing a device the editor knows
// how to drive.
type SupportedDevice struct {
	DisplayName         string `json:"DisplayName" yaml:"DisplayName"`
	VID                 uint16 `json:"VID" yaml:"VID"`
	PID                 uint16 `json:"PID" yaml:"PID"`
	Icon                string `json:"Icon,omitempty" yaml:"Icon,omitempty"`
	Preview             string `json:"Preview,omitempty" yaml:"Preview,omitempty"`
	RGBControl          bool   `json:"RGBControl" yaml:"RGBControl"`
	KeybindControl      bool   `json:"KeybindControl" yaml:"KeybindControl"`
	VisualizationConfig string `json:"VisualizationConfig" yaml:"VisualizationConfig"`
}

// ConnectedDevice is a catalog entry joined with the USB device that matched
// it.
type ConnectedDevice struct {
	SupportedDevice
	USB device.USBDevice
}

func (c ConnectedDevice) String() string {
	return fmt.Sprintf("%s (%04x:%04x @ %s)", c.DisplayName, c.VID, c.PID, c.USB.Path)
}

// Parse decodes a catalog. The document root must be a list.
func Parse(name string, data []byte) ([]SupportedDevice, error) {
	var raw any
	var err error
	ext := strings.ToLower(filepath.Ext(name))
	yamlDoc := ext == ".yaml" || ext == ".yml"
	if yamlDoc {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCatalog, err)
	}
	if _, ok := raw.([]any); !ok {
		return nil, fmt.Errorf("%w: root is not a list", ErrMalformedCatalog)
	}

	var devices []SupportedDevice
	if yamlDoc {
		err = yaml.Unmarshal(data, &devices)
	} else {
		err = json.Unmarshal(data, &devices)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCatalog, err)
	}
	return devices, nil
}

func Load(path string) ([]SupportedDevice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	devices, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	logger.With(zap.String("path", path), zap.Int("entries", len(devices))).Debug("Loaded device catalog")
	return devices, nil
}

// Match joins the catalog with the live device list on exact (VID, PID).
// Results follow catalog order, then device order.
func Match(supported []SupportedDevice, connected []device.USBDevice) []ConnectedDevice {
	var out []ConnectedDevice
	for _, s := range supported {
		for _, d := range connected {
			if s.VID == d.VendorID && s.PID == d.ProductID {
				out = append(out, ConnectedDevice{SupportedDevice: s, USB: d})
			}
		}
	}
	return out
}
