package engine

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/keypad-lights/internal/colorspace"
	"github.com/scheerer/keypad-lights/internal/layout"
	"github.com/scheerer/keypad-lights/internal/lighting"
	"github.com/scheerer/keypad-lights/internal/logging"
	"github.com/scheerer/keypad-lights/internal/report"
)

var logger = logging.New("engine")

const DefaultSpeedMultiplier = 20

// KeyColor is the live colour of one key.
type KeyColor struct {
	Coord layout.Coord
	// Rect is where the key is drawn, in key pitches.
	Rect     layout.Rect
	Color    colorspace.HSL
	RGB      colorspace.RGB
	Selected bool
}

// Selection describes what user edits currently apply to.
type Selection struct {
	Global bool
	Key    layout.Coord
	Extras []layout.Coord
	// Setting is the resolved setting of the edited target.
	Setting lighting.Setting
	// InheritsColor is always true for the global target.
	InheritsColor bool
}

type Option func(*Session)

func WithRegistry(r *lighting.Registry) Option {
	return func(s *Session) {
		s.registry = r
	}
}

func WithSpeedMultiplier(m float64) Option {
	return func(s *Session) {
		s.speedMultiplier = m
	}
}

// Session is the lighting state of one open device: its layout, the global
// setting and the selection user edits are routed through.
type Session struct {
	mu              sync.Mutex
	layout          *layout.Layout
	global          lighting.Setting
	registry        *lighting.Registry
	speedMultiplier float64

	current    layout.Coord
	hasCurrent bool
	extras     []layout.Coord

	onChange func()
}

func NewSession(l *layout.Layout, global lighting.Setting, opts ...Option) *Session {
	s := &Session{
		layout:          l,
		global:          global,
		registry:        lighting.NewRegistry(),
		speedMultiplier: DefaultSpeedMultiplier,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers fn to run after every edit, outside the session lock.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Session) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Session) params(c layout.Coord) lighting.Params {
	x, y := s.layout.Position(c)
	return lighting.Params{
		Col:             x,
		Row:             y,
		CenterX:         s.layout.CenterX,
		CenterY:         s.layout.CenterY,
		PivotX:          s.layout.PivotX,
		PivotY:          s.layout.PivotY,
		SpeedMultiplier: s.speedMultiplier,
	}
}

// Initialize recomputes every key's starting colour and resets its current
// colour to it.
func (s *Session) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.layout.Each(func(c layout.Coord, k *layout.Key) {
		resolved := k.LED.Setting.Resolve(s.global)
		start := s.registry.Lookup(resolved.Mode).Initialize(s.params(c), resolved)
		k.LED.Starting = start
		k.LED.Current = start
	})
}

// Tick advances every key by dt and returns the resulting colours.
func (s *Session) Tick(dt time.Duration) []KeyColor {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.layout.Each(func(c layout.Coord, k *layout.Key) {
		resolved := k.LED.Setting.Resolve(s.global)
		p := s.params(c)
		p.DeltaTime = dt.Seconds()
		k.LED.Current = s.registry.Lookup(resolved.Mode).Update(p, resolved, k.LED.Current)
	})
	return s.snapshotLocked()
}

func (s *Session) Snapshot() []KeyColor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() []KeyColor {
	out := make([]KeyColor, 0, s.layout.KeyCount())
	s.layout.Each(func(c layout.Coord, k *layout.Key) {
		out = append(out, KeyColor{
			Coord:    c,
			Rect:     s.layout.Rect(c),
			Color:    k.LED.Current,
			RGB:      colorspace.HSLToRGB(k.LED.Current),
			Selected: s.isSelectedLocked(c),
		})
	})
	return out
}

// Records captures the device state in firmware key order. Colours come from
// the starting colour, so the device receives the state of the last
// initialization and animates on its own from there.
func (s *Session) Records() []report.KeyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]report.KeyRecord, 0, s.layout.KeyCount())
	s.layout.Each(func(_ layout.Coord, k *layout.Key) {
		resolved := k.LED.Setting.Resolve(s.global)
		out = append(out, report.KeyRecord{
			Color:      colorspace.HSLToRGB(k.LED.Starting),
			Animated:   resolved.Mode.Animated(),
			Speed:      uint8(resolved.Speed),
			Brightness: uint8(resolved.Brightness),
			Direction:  uint8(resolved.Direction),
		})
	})
	return out
}

func (s *Session) Global() lighting.Setting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.global
}

// Resolved returns the effective setting of the key at c.
func (s *Session) Resolved(c layout.Coord) (lighting.Setting, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.layout.Key(c)
	if !ok {
		return lighting.Setting{}, false
	}
	return k.LED.Setting.Resolve(s.global), true
}

// KeySetting returns the stored overrides of the key at c.
func (s *Session) KeySetting(c layout.Coord) (lighting.KeySetting, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.layout.Key(c)
	if !ok {
		return lighting.KeySetting{}, false
	}
	return k.LED.Setting, true
}

// LoadLayout swaps in the layout stored under name. On failure the session
// keeps its current layout and state.
func (s *Session) LoadLayout(dir, name string) error {
	l, err := layout.Load(dir, name)
	if err != nil {
		return err
	}
	s.ReplaceLayout(l)
	return nil
}

func (s *Session) ReplaceLayout(l *layout.Layout) {
	s.mu.Lock()
	s.layout = l
	s.hasCurrent = false
	s.extras = nil
	s.mu.Unlock()

	logger.With(zap.Int("keys", l.KeyCount())).Info("Layout loaded")
	s.changed()
}

// SelectKey makes c the edited key. With multi set and a key already
// selected, c is toggled in the set of extra keys instead.
func (s *Session) SelectKey(c layout.Coord, multi bool) {
	s.mu.Lock()
	if _, ok := s.layout.Key(c); !ok {
		s.mu.Unlock()
		return
	}
	switch {
	case !s.hasCurrent || !multi:
		s.current = c
		s.hasCurrent = true
		s.extras = nil
	case c != s.current:
		if i := slices.Index(s.extras, c); i >= 0 {
			s.extras = slices.Delete(s.extras, i, i+1)
		} else {
			s.extras = append(s.extras, c)
		}
	}
	s.mu.Unlock()
	s.changed()
}

// SelectGlobal routes edits to the global setting.
func (s *Session) SelectGlobal() {
	s.mu.Lock()
	s.hasCurrent = false
	s.extras = nil
	s.mu.Unlock()
	s.changed()
}

func (s *Session) IsSelected(c layout.Coord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSelectedLocked(c)
}

func (s *Session) isSelectedLocked(c layout.Coord) bool {
	return (s.hasCurrent && s.current == c) || slices.Contains(s.extras, c)
}

func (s *Session) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasCurrent {
		return Selection{Global: true, Setting: s.global, InheritsColor: true}
	}
	k, _ := s.layout.Key(s.current)
	return Selection{
		Key:           s.current,
		Extras:        slices.Clone(s.extras),
		Setting:       k.LED.Setting.Resolve(s.global),
		InheritsColor: k.LED.Setting.InheritsColor(),
	}
}

// edit applies fn to every selected key, or to the global setting when no
// key is selected, then notifies the change hook.
func (s *Session) edit(what string, value any, onGlobal func(g *lighting.Setting), onKey func(k *lighting.KeySetting)) {
	s.mu.Lock()
	if !s.hasCurrent {
		onGlobal(&s.global)
	} else {
		for _, c := range append([]layout.Coord{s.current}, s.extras...) {
			if k, ok := s.layout.Key(c); ok {
				onKey(&k.LED.Setting)
			}
		}
	}
	global := !s.hasCurrent
	s.mu.Unlock()

	logger.With(zap.String("field", what),
		zap.String("value", fmt.Sprint(value)),
		zap.Bool("global", global)).
		Debug("Lighting setting changed")
	s.changed()
}

// SetMode sets the mode of the selection. ModeInherit clears a key override
// and is ignored for the global setting.
func (s *Session) SetMode(m lighting.Mode) {
	s.edit("mode", m, func(g *lighting.Setting) {
		if m != lighting.ModeInherit {
			g.Mode = m
		}
	}, func(k *lighting.KeySetting) {
		k.Mode.Set = m != lighting.ModeInherit
		if k.Mode.Set {
			k.Mode.Value = m
		}
	})
}

// SetDirection works like SetMode.
func (s *Session) SetDirection(d lighting.Direction) {
	s.edit("direction", d, func(g *lighting.Setting) {
		if d != lighting.DirectionInherit {
			g.Direction = d
		}
	}, func(k *lighting.KeySetting) {
		k.Direction.Set = d != lighting.DirectionInherit
		if k.Direction.Set {
			k.Direction.Value = d
		}
	})
}

// SetColor clamps c to the editable range and applies it. Selected keys stop
// inheriting the global colour.
func (s *Session) SetColor(c colorspace.HSL) {
	c = clampColor(c)
	s.edit("color", c, func(g *lighting.Setting) {
		g.Color = c
	}, func(k *lighting.KeySetting) {
		k.Color = lighting.Use(c)
	})
}

// SetGlobalColor replaces the global colour regardless of the selection. It
// is meant for external colour sources: the value is only normalized, not
// limited to the editor's range, and only keys whose mode reads the colour
// start over. Animated keys keep running and the change hook is not called.
func (s *Session) SetGlobalColor(c colorspace.HSL) {
	c = colorspace.Clamp(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.global.Color == c {
		return
	}
	s.global.Color = c

	restarted := 0
	s.layout.Each(func(pos layout.Coord, k *layout.Key) {
		if !k.LED.Setting.InheritsColor() {
			return
		}
		resolved := k.LED.Setting.Resolve(s.global)
		if !resolved.Mode.UsesColor() {
			return
		}
		start := s.registry.Lookup(resolved.Mode).Initialize(s.params(pos), resolved)
		k.LED.Starting = start
		k.LED.Current = start
		restarted++
	})
	logger.With(zap.Stringer("color", c), zap.Int("keys", restarted)).Debug("Global colour updated")
}

// SetColorInheritance toggles colour inheritance of the selected keys. A key
// that stops inheriting starts from the current global colour.
func (s *Session) SetColorInheritance(inherit bool) {
	s.mu.Lock()
	globalColor := s.global.Color
	s.mu.Unlock()

	s.edit("inherit_color", inherit, func(*lighting.Setting) {}, func(k *lighting.KeySetting) {
		if inherit {
			k.Color.Set = false
		} else {
			k.Color = lighting.Use(globalColor)
		}
	})
}

// SetSpeed clamps v to [-1,10] for keys, where -1 inherits, and [0,10] for the
// global setting.
func (s *Session) SetSpeed(v int) {
	s.edit("speed", v, func(g *lighting.Setting) {
		g.Speed = clampInt(v, 0, 10)
	}, func(k *lighting.KeySetting) {
		k.Speed = keyLevel(v)
	})
}

// SetBrightness works like SetSpeed.
func (s *Session) SetBrightness(v int) {
	s.edit("brightness", v, func(g *lighting.Setting) {
		g.Brightness = clampInt(v, 0, 10)
	}, func(k *lighting.KeySetting) {
		k.Brightness = keyLevel(v)
	})
}

func keyLevel(v int) lighting.Override[int] {
	v = clampInt(v, -1, 10)
	if v == -1 {
		return lighting.Override[int]{}
	}
	return lighting.Use(v)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampColor(c colorspace.HSL) colorspace.HSL {
	return colorspace.HSL{
		H: min(max(c.H, 0), 359),
		S: min(max(c.S, 0), 100),
		L: min(max(c.L, 50), 100),
	}
}
