package lighting

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/keypad-lights/internal/colorspace"
)

var numpadParams = Params{CenterX: 2, CenterY: 2.5, PivotX: 4, PivotY: 5, DeltaTime: 1.0 / 125, SpeedMultiplier: 20}

func TestResolveInheritsEverything(t *testing.T) {
	global := DefaultGlobal()
	key := NewKeyLighting().Setting

	assert.Equal(t, global, key.Resolve(global))
	assert.True(t, key.InheritsColor())
}

func TestResolveOverrides(t *testing.T) {
	global := DefaultGlobal()
	key := KeySetting{
		Mode:       Use(ModeStatic),
		Color:      Use(colorspace.HSL{H: 120, S: 100, L: 50}),
		Speed:      Use(0),
		Brightness: Use(3),
		Direction:  Use(DirectionUp),
	}

	got := key.Resolve(global)
	assert.Equal(t, Setting{
		Mode:       ModeStatic,
		Color:      colorspace.HSL{H: 120, S: 100, L: 50},
		Speed:      0,
		Brightness: 3,
		Direction:  DirectionUp,
	}, got)
}

func TestResolveIsPureAndIdempotent(t *testing.T) {
	global := DefaultGlobal()
	key := KeySetting{Speed: Use(7)}
	before := key

	first := key.Resolve(global)
	second := key.Resolve(global)
	assert.Equal(t, first, second)
	assert.Equal(t, before, key)
	assert.False(t, key.Mode.Set)
	assert.False(t, key.Brightness.Set)

	// later global edits still propagate through the untouched key
	global.Brightness = 4
	assert.Equal(t, 4, key.Resolve(global).Brightness)
	assert.Equal(t, 7, key.Resolve(global).Speed)
}

func TestOverrideKeepsValueWhenUnset(t *testing.T) {
	o := Use(colorspace.HSL{H: 200, S: 50, L: 60})
	o.Set = false
	assert.Equal(t, colorspace.HSL{H: 1}, o.Or(colorspace.HSL{H: 1}))
	o.Set = true
	assert.Equal(t, 200.0, o.Or(colorspace.HSL{H: 1}).H)
}

func TestOffIsAlwaysBlack(t *testing.T) {
	r := NewRegistry()
	s := DefaultGlobal()
	s.Mode = ModeOff
	m := r.Lookup(ModeOff)

	c := m.Initialize(numpadParams, s)
	for i := 0; i < 100; i++ {
		c = m.Update(numpadParams, s, c)
	}
	assert.Equal(t, colorspace.HSL{H: 0, S: 0, L: 0}, c)
}

func TestStaticScalesLightnessAndHolds(t *testing.T) {
	r := NewRegistry()
	s := Setting{Mode: ModeStatic, Color: colorspace.HSL{H: 30, S: 80, L: 60}, Brightness: 5, Speed: 9}
	m := r.Lookup(ModeStatic)

	start := m.Initialize(numpadParams, s)
	assert.Equal(t, colorspace.HSL{H: 30, S: 80, L: 30}, start)

	c := start
	for i := 0; i < 250; i++ {
		c = m.Update(numpadParams, s, c)
	}
	assert.Equal(t, start, c)
}

func TestWaveInitialize(t *testing.T) {
	r := NewRegistry()
	m := r.Lookup(ModeWave)
	base := Setting{Mode: ModeWave, Speed: 5, Brightness: 10}

	tests := []struct {
		dir      Direction
		col, row float64
		wantHue  float64
	}{
		{DirectionRight, 2, 0, 10},  // 5 * (4 - 2)
		{DirectionRight, 4, 0, 0},   // 5 * (4 - 4)
		{DirectionLeft, 3, 1, 15},   // 5 * 3
		{DirectionUp, 0, 2, 10},     // 5 * 2
		{DirectionDown, 0, 1, 20},   // 5 * (5 - 1)
		{DirectionRight, 5, 0, 355}, // 5 * (4 - 5) wraps
	}
	for _, tt := range tests {
		t.Run(tt.dir.String(), func(t *testing.T) {
			s := base
			s.Direction = tt.dir
			p := numpadParams
			p.Col, p.Row = tt.col, tt.row
			got := m.Initialize(p, s)
			assert.InDelta(t, tt.wantHue, got.H, 1e-9)
			assert.Equal(t, 100.0, got.S)
			// 50 / 10 * 10
			assert.Equal(t, 50.0, got.L)
		})
	}
}

func TestWaveBrightnessScaling(t *testing.T) {
	s := Setting{Mode: ModeWave, Speed: 1, Brightness: 3, Direction: DirectionLeft}
	got := NewRegistry().Lookup(ModeWave).Initialize(numpadParams, s)
	assert.Equal(t, 15.0, got.L)
}

func TestWaveAndRingUpdateRotate(t *testing.T) {
	r := NewRegistry()
	s := Setting{Speed: 5, Brightness: 10}
	for _, mode := range []Mode{ModeWave, ModeRing} {
		got := r.Lookup(mode).Update(numpadParams, s, colorspace.HSL{H: 359.5, S: 100, L: 50})
		// 5 * 0.008 * 20 = 0.8 degrees per tick
		assert.InDelta(t, 0.3, got.H, 1e-9, mode.String())
		assert.Equal(t, 50.0, got.L)
	}
}

func TestRingInitialize(t *testing.T) {
	s := Setting{Mode: ModeRing, Speed: 2, Brightness: 10, Direction: DirectionLeft}
	p := numpadParams
	p.Col, p.Row = 4, 0.5 // dx=2, dy=2

	literal := NewRegistry().Lookup(ModeRing).Initialize(p, s)
	dist := math.Sqrt(4 + 4) // dx*dx + dy + dy
	assert.InDelta(t, 2*dist*2, literal.H, 1e-9)

	s.Direction = DirectionDown
	mirrored := NewRegistry().Lookup(ModeRing).Initialize(p, s)
	assert.InDelta(t, 360-2*dist*2, mirrored.H, 1e-9)

	s.Direction = DirectionLeft
	p.Col, p.Row = 2, 5.5 // dx=0, dy=3
	euclid := NewRegistry(WithEuclideanRing()).Lookup(ModeRing).Initialize(p, s)
	assert.InDelta(t, 2*3*2, euclid.H, 1e-9)
	lit := NewRegistry().Lookup(ModeRing).Initialize(p, s)
	assert.InDelta(t, 2*math.Sqrt(6)*2, lit.H, 1e-9)
}

func TestInheritModeIsInert(t *testing.T) {
	m := NewRegistry().Lookup(ModeInherit)
	assert.Equal(t, colorspace.HSL{}, m.Initialize(numpadParams, DefaultGlobal()))
	c := colorspace.HSL{H: 12, S: 34, L: 56}
	assert.Equal(t, c, m.Update(numpadParams, DefaultGlobal(), c))
}

func TestLookupUnknownFallsBackToOff(t *testing.T) {
	assert.Equal(t, colorspace.HSL{}, NewRegistry().Lookup(Mode(42)).Initialize(numpadParams, DefaultGlobal()))
}

func TestParseNames(t *testing.T) {
	m, err := ParseMode("wave")
	require.NoError(t, err)
	assert.Equal(t, ModeWave, m)
	assert.True(t, m.Animated())
	assert.False(t, ModeStatic.Animated())

	d, err := ParseDirection("Down")
	require.NoError(t, err)
	assert.Equal(t, DirectionDown, d)

	_, err = ParseMode("strobe")
	assert.Error(t, err)
	_, err = ParseDirection("diagonal")
	assert.Error(t, err)
	assert.Equal(t, "Mode(9)", Mode(9).String())
}

func TestOnlyStaticUsesColor(t *testing.T) {
	assert.True(t, ModeStatic.UsesColor())
	for _, m := range []Mode{ModeInherit, ModeOff, ModeWave, ModeRing} {
		assert.False(t, m.UsesColor(), m.String())
	}
}
