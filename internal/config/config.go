package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env"

	"github.com/scheerer/keypad-lights/internal/colorspace"
	"github.com/scheerer/keypad-lights/internal/lighting"
)

type Config struct {
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	CatalogPath        string        `env:"CATALOG_PATH" envDefault:"devices.json"`
	LayoutDir          string        `env:"LAYOUT_DIR" envDefault:"layouts"`
	RefreshRate        float64       `env:"REFRESH_RATE" envDefault:"125"`
	SpeedMultiplier    float64       `env:"SPEED_MULTIPLIER" envDefault:"20"`
	RingEuclidean      bool          `env:"RING_EUCLIDEAN" envDefault:"false"`
	HIDInterface       int           `env:"HID_INTERFACE" envDefault:"1"`
	DevicePollInterval time.Duration `env:"DEVICE_POLL_INTERVAL" envDefault:"2s"`
	Simulate           bool          `env:"SIMULATE" envDefault:"false"`
	Preview            bool          `env:"PREVIEW" envDefault:"true"`

	GlobalMode       string  `env:"GLOBAL_MODE" envDefault:"WAVE"`
	GlobalHue        float64 `env:"GLOBAL_HUE" envDefault:"0"`
	GlobalSaturation float64 `env:"GLOBAL_SATURATION" envDefault:"100"`
	GlobalLightness  float64 `env:"GLOBAL_LIGHTNESS" envDefault:"100"`
	GlobalSpeed      int     `env:"GLOBAL_SPEED" envDefault:"5"`
	GlobalBrightness int     `env:"GLOBAL_BRIGHTNESS" envDefault:"10"`
	GlobalDirection  string  `env:"GLOBAL_DIRECTION" envDefault:"RIGHT"`

	ColorSource     string        `env:"COLOR_SOURCE" envDefault:"NONE"`
	ColorAlgo       string        `env:"COLOR_ALGO" envDefault:"AVERAGE"`
	CaptureInterval time.Duration `env:"CAPTURE_INTERVAL" envDefault:"500ms"`
	PixelGridSize   int           `env:"PIXEL_GRID_SIZE" envDefault:"5"`
	ScreenNumber    int           `env:"SCREEN_NUMBER" envDefault:"0"`

	LightType      string        `env:"LIGHT_TYPE" envDefault:"NONE"`
	LightGroupName string        `env:"LIGHT_GROUP_NAME" envDefault:"KEYPAD"`
	MirrorInterval time.Duration `env:"MIRROR_INTERVAL" envDefault:"250ms"`
	MaxBrightness  float64       `env:"MAX_BRIGHTNESS" envDefault:"0.65"`
	MinBrightness  float64       `env:"MIN_BRIGHTNESS" envDefault:"0"`
}

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return c, err
	}
	if c.RefreshRate <= 0 {
		return c, fmt.Errorf("REFRESH_RATE must be positive, got %v", c.RefreshRate)
	}
	if c.PixelGridSize < 1 {
		return c, fmt.Errorf("PIXEL_GRID_SIZE must be at least 1, got %d", c.PixelGridSize)
	}
	return c, nil
}

// Global builds the session's starting global setting. Levels and colour are
// clamped like editor input.
func (c Config) Global() (lighting.Setting, error) {
	mode, err := lighting.ParseMode(c.GlobalMode)
	if err != nil || mode == lighting.ModeInherit {
		return lighting.Setting{}, fmt.Errorf("GLOBAL_MODE: invalid mode %q", c.GlobalMode)
	}
	dir, err := lighting.ParseDirection(c.GlobalDirection)
	if err != nil || dir == lighting.DirectionInherit {
		return lighting.Setting{}, fmt.Errorf("GLOBAL_DIRECTION: invalid direction %q", c.GlobalDirection)
	}
	return lighting.Setting{
		Mode: mode,
		Color: colorspace.HSL{
			H: min(max(c.GlobalHue, 0), 359),
			S: min(max(c.GlobalSaturation, 0), 100),
			L: min(max(c.GlobalLightness, 50), 100),
		},
		Speed:      min(max(c.GlobalSpeed, 0), 10),
		Brightness: min(max(c.GlobalBrightness, 0), 10),
		Direction:  dir,
	}, nil
}

func (c Config) Registry() *lighting.Registry {
	if c.RingEuclidean {
		return lighting.NewRegistry(lighting.WithEuclideanRing())
	}
	return lighting.NewRegistry()
}
