package lighting

import (
	"math"

	"github.com/scheerer/keypad-lights/internal/colorspace"
)

// Params carries the spatial and timing inputs shared by every mode. Modes
// ignore the fields they do not need.
type Params struct {
	Col, Row         float64
	CenterX, CenterY float64
	// PivotX and PivotY mirror Right and Down waves.
	PivotX, PivotY  float64
	DeltaTime       float64
	SpeedMultiplier float64
}

// ModeFunc is the two phase behaviour of a lighting mode. Both phases receive
// a resolved setting.
type ModeFunc interface {
	Initialize(p Params, s Setting) colorspace.HSL
	Update(p Params, s Setting, current colorspace.HSL) colorspace.HSL
}

type RegistryOption func(*Registry)

// WithEuclideanRing makes the ring mode measure true euclidean distance to
// the layout centre instead of sqrt(dx*dx + 2*dy).
func WithEuclideanRing() RegistryOption {
	return func(r *Registry) {
		r.m[ModeRing] = ring{euclidean: true}
	}
}

type Registry struct {
	m map[Mode]ModeFunc
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{m: map[Mode]ModeFunc{
		ModeInherit: inherit{},
		ModeOff:     off{},
		ModeStatic:  static{},
		ModeWave:    wave{},
		ModeRing:    ring{},
	}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup returns the behaviour for m, falling back to Off for unknown modes.
func (r *Registry) Lookup(m Mode) ModeFunc {
	if f, ok := r.m[m]; ok {
		return f
	}
	return off{}
}

func scaleLightness(c colorspace.HSL, brightness int) colorspace.HSL {
	c.L = c.L / 10 * float64(brightness)
	return c
}

func rainbowBase() colorspace.HSL {
	return colorspace.HSL{H: 0, S: 100, L: 50}
}

func rotate(p Params, s Setting, current colorspace.HSL) colorspace.HSL {
	return colorspace.CycleHue(current, float64(s.Speed)*p.DeltaTime*p.SpeedMultiplier)
}

// inherit is only reachable for unresolved settings, which never happens in
// the engine.
type inherit struct{}

func (inherit) Initialize(Params, Setting) colorspace.HSL { return colorspace.HSL{} }

func (inherit) Update(_ Params, _ Setting, current colorspace.HSL) colorspace.HSL { return current }

type off struct{}

func (off) Initialize(Params, Setting) colorspace.HSL { return colorspace.HSL{} }

func (off) Update(_ Params, _ Setting, current colorspace.HSL) colorspace.HSL { return current }

type static struct{}

func (static) Initialize(_ Params, s Setting) colorspace.HSL {
	return scaleLightness(s.Color, s.Brightness)
}

func (static) Update(_ Params, _ Setting, current colorspace.HSL) colorspace.HSL { return current }

type wave struct{}

func (wave) Initialize(p Params, s Setting) colorspace.HSL {
	speed := float64(s.Speed)
	var offset float64
	switch s.Direction {
	case DirectionLeft:
		offset = speed * p.Col
	case DirectionRight:
		offset = speed * (p.PivotX - p.Col)
	case DirectionUp:
		offset = speed * p.Row
	default:
		offset = speed * (p.PivotY - p.Row)
	}
	return scaleLightness(colorspace.CycleHue(rainbowBase(), offset), s.Brightness)
}

func (wave) Update(p Params, s Setting, current colorspace.HSL) colorspace.HSL {
	return rotate(p, s, current)
}

type ring struct {
	euclidean bool
}

func (r ring) distance(p Params) float64 {
	dx := math.Abs(p.Col - p.CenterX)
	dy := math.Abs(p.Row - p.CenterY)
	if r.euclidean {
		return math.Sqrt(dx*dx + dy*dy)
	}
	// The vertical term is doubled, not squared. Rings come out stretched.
	return math.Sqrt(dx*dx + (dy + dy))
}

func (r ring) Initialize(p Params, s Setting) colorspace.HSL {
	shift := float64(s.Speed) * r.distance(p) * 2
	if s.Direction == DirectionRight || s.Direction == DirectionDown {
		shift = -shift
	}
	return scaleLightness(colorspace.CycleHue(rainbowBase(), shift), s.Brightness)
}

func (r ring) Update(p Params, s Setting, current colorspace.HSL) colorspace.HSL {
	return rotate(p, s, current)
}
