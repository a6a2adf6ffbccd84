package lighting

import (
	"fmt"
	"strings"

	"github.com/scheerer/keypad-lights/internal/colorspace"
)

type Mode int

const (
	ModeInherit Mode = iota - 1
	ModeOff
	ModeStatic
	ModeWave
	ModeRing
)

var modeNames = map[Mode]string{
	ModeInherit: "INHERIT",
	ModeOff:     "OFF",
	ModeStatic:  "STATIC",
	ModeWave:    "WAVE",
	ModeRing:    "RING",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Animated reports whether the device should keep cycling the hue on its own.
func (m Mode) Animated() bool {
	return m > ModeStatic
}

// UsesColor reports whether the mode starts from the setting's colour. The
// rainbow modes and Off ignore it.
func (m Mode) UsesColor() bool {
	return m == ModeStatic
}

func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return ModeInherit, fmt.Errorf("unknown mode %q", s)
}

type Direction int

const (
	DirectionInherit Direction = iota - 1
	DirectionLeft
	DirectionUp
	DirectionRight
	DirectionDown
)

var directionNames = map[Direction]string{
	DirectionInherit: "INHERIT",
	DirectionLeft:    "LEFT",
	DirectionUp:      "UP",
	DirectionRight:   "RIGHT",
	DirectionDown:    "DOWN",
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

func ParseDirection(s string) (Direction, error) {
	for d, name := range directionNames {
		if strings.EqualFold(s, name) {
			return d, nil
		}
	}
	return DirectionInherit, fmt.Errorf("unknown direction %q", s)
}

// Override is a per-key attribute that either carries its own value or
// defers to the global setting. Value is ignored while Set is false.
type Override[T any] struct {
	Value T
	Set   bool
}

func Use[T any](v T) Override[T] {
	return Override[T]{Value: v, Set: true}
}

func (o Override[T]) Or(parent T) T {
	if o.Set {
		return o.Value
	}
	return parent
}

// Setting is a fully concrete lighting configuration: the global setting of
// a session, or a key setting after resolution.
type Setting struct {
	Mode       Mode
	Color      colorspace.HSL
	Speed      int
	Brightness int
	Direction  Direction
}

// DefaultGlobal matches the editor defaults of a freshly opened device.
func DefaultGlobal() Setting {
	return Setting{
		Mode:       ModeWave,
		Color:      colorspace.HSL{H: 0, S: 100, L: 100},
		Speed:      5,
		Brightness: 10,
		Direction:  DirectionRight,
	}
}

// KeySetting holds the per-key overrides. The zero value inherits everything.
type KeySetting struct {
	Mode       Override[Mode]
	Color      Override[colorspace.HSL]
	Speed      Override[int]
	Brightness Override[int]
	Direction  Override[Direction]
}

// InheritsColor mirrors the editor's colour inheritance checkbox.
func (k KeySetting) InheritsColor() bool {
	return !k.Color.Set
}

// Resolve merges k over global. It works on copies only: k keeps its
// overrides so later global changes still propagate.
func (k KeySetting) Resolve(global Setting) Setting {
	return Setting{
		Mode:       k.Mode.Or(global.Mode),
		Color:      k.Color.Or(global.Color),
		Speed:      k.Speed.Or(global.Speed),
		Brightness: k.Brightness.Or(global.Brightness),
		Direction:  k.Direction.Or(global.Direction),
	}
}

// KeyLighting is the lighting state owned by a single key.
type KeyLighting struct {
	Setting  KeySetting
	Starting colorspace.HSL
	Current  colorspace.HSL
}

// NewKeyLighting is the state of a key right after its layout was loaded.
func NewKeyLighting() KeyLighting {
	white := colorspace.HSL{H: 0, S: 100, L: 100}
	return KeyLighting{
		Setting: KeySetting{
			Color: Override[colorspace.HSL]{Value: white},
		},
		Starting: white,
		Current:  white,
	}
}
