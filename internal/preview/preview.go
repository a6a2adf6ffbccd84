// Package preview renders a live terminal preview of a lighting session and
// routes keystrokes to session edits.
package preview

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/scheerer/keypad-lights/internal/colorspace"
	"github.com/scheerer/keypad-lights/internal/engine"
	"github.com/scheerer/keypad-lights/internal/layout"
	"github.com/scheerer/keypad-lights/internal/lighting"
	"github.com/scheerer/keypad-lights/internal/logging"
)

var logger = logging.New("preview")

const (
	frameInterval = 33 * time.Millisecond
	cellWidth     = 6
	cellHeight    = 2
	hueStep       = 10
)

const help = "arrows move  enter select  x add/remove  g global  m mode  d direction  +/- speed  [/] brightness  h/H hue  i inherit colour  p push  q quit"

var (
	keyModes  = []lighting.Mode{lighting.ModeInherit, lighting.ModeOff, lighting.ModeStatic, lighting.ModeWave, lighting.ModeRing}
	keyDirs   = []lighting.Direction{lighting.DirectionInherit, lighting.DirectionLeft, lighting.DirectionUp, lighting.DirectionRight, lighting.DirectionDown}
	textStyle = tcell.StyleDefault.Foreground(tcell.ColorWhite)
)

// PushFunc sends the session's current state to the device.
type PushFunc func(ctx context.Context) error

type Editor struct {
	screen  tcell.Screen
	session *engine.Session
	push    PushFunc

	cursor layout.Coord

	mu     sync.Mutex
	frame  []engine.KeyColor
	status string
}

func New(screen tcell.Screen, session *engine.Session, push PushFunc) *Editor {
	return &Editor{
		screen:  screen,
		session: session,
		push:    push,
		status:  "editing global setting",
	}
}

// OnTick is a scheduler tick hook that keeps the latest frame for drawing.
func (e *Editor) OnTick(colors []engine.KeyColor) {
	e.mu.Lock()
	e.frame = colors
	e.mu.Unlock()
}

func (e *Editor) setStatus(format string, args ...any) {
	e.mu.Lock()
	e.status = fmt.Sprintf(format, args...)
	e.mu.Unlock()
}

// Run draws and handles input until q is pressed or ctx is done.
func (e *Editor) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := e.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	e.draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if e.handle(ctx, ev.Key(), ev.Rune(), ev.Modifiers()) {
					return nil
				}
			case *tcell.EventResize:
				e.screen.Sync()
			}
			e.draw()
		case <-ticker.C:
			e.draw()
		}
	}
}

// handle applies one keystroke and reports whether the editor should quit.
func (e *Editor) handle(ctx context.Context, key tcell.Key, r rune, mod tcell.ModMask) bool {
	switch key {
	case tcell.KeyCtrlC:
		return true
	case tcell.KeyEscape:
		e.session.SelectGlobal()
		e.setStatus("editing global setting")
		return false
	case tcell.KeyUp:
		e.moveCursor(0, -1)
		return false
	case tcell.KeyDown:
		e.moveCursor(0, 1)
		return false
	case tcell.KeyLeft:
		e.moveCursor(-1, 0)
		return false
	case tcell.KeyRight:
		e.moveCursor(1, 0)
		return false
	case tcell.KeyEnter:
		e.session.SelectKey(e.cursor, mod&tcell.ModCtrl != 0)
		e.setStatus("editing key %d,%d", e.cursor.Col, e.cursor.Row)
		return false
	case tcell.KeyRune:
	default:
		return false
	}

	sel := e.session.Selection()
	switch r {
	case 'q':
		return true
	case ' ':
		e.session.SelectKey(e.cursor, false)
		e.setStatus("editing key %d,%d", e.cursor.Col, e.cursor.Row)
	case 'x':
		e.session.SelectKey(e.cursor, true)
	case 'g':
		e.session.SelectGlobal()
		e.setStatus("editing global setting")
	case 'm':
		e.session.SetMode(e.nextMode(sel))
	case 'd':
		e.session.SetDirection(e.nextDirection(sel))
	case '+', '=':
		e.session.SetSpeed(e.level(sel, func(k lighting.KeySetting) lighting.Override[int] { return k.Speed }, sel.Setting.Speed) + 1)
	case '-':
		e.session.SetSpeed(e.level(sel, func(k lighting.KeySetting) lighting.Override[int] { return k.Speed }, sel.Setting.Speed) - 1)
	case ']':
		e.session.SetBrightness(e.level(sel, func(k lighting.KeySetting) lighting.Override[int] { return k.Brightness }, sel.Setting.Brightness) + 1)
	case '[':
		e.session.SetBrightness(e.level(sel, func(k lighting.KeySetting) lighting.Override[int] { return k.Brightness }, sel.Setting.Brightness) - 1)
	case 'h':
		e.session.SetColor(shiftHue(sel.Setting.Color, hueStep))
	case 'H':
		e.session.SetColor(shiftHue(sel.Setting.Color, -hueStep))
	case 'i':
		if !sel.Global {
			e.session.SetColorInheritance(!sel.InheritsColor)
		}
	case 'p':
		e.doPush(ctx)
	}
	return false
}

func (e *Editor) doPush(ctx context.Context) {
	if e.push == nil {
		e.setStatus("no device to push to")
		return
	}
	if err := e.push(ctx); err != nil {
		logger.With(zap.Error(err)).Warn("Push failed")
		e.setStatus("push failed: %v", err)
		return
	}
	e.setStatus("pushed to device")
}

func (e *Editor) moveCursor(dx, dy int) {
	next := layout.Coord{Col: e.cursor.Col + dx, Row: e.cursor.Row + dy}
	colors := e.currentFrame()
	// clamp the column to the target row's length
	maxCol := -1
	for _, kc := range colors {
		if kc.Coord.Row == next.Row && kc.Coord.Col > maxCol {
			maxCol = kc.Coord.Col
		}
	}
	if maxCol < 0 || next.Col < 0 {
		return
	}
	next.Col = min(next.Col, maxCol)
	e.cursor = next
}

// level is the value the +/- keys start from: the override for a key, or -1
// when it inherits, and the global value otherwise.
func (e *Editor) level(sel engine.Selection, field func(lighting.KeySetting) lighting.Override[int], global int) int {
	if sel.Global {
		return global
	}
	ks, _ := e.session.KeySetting(sel.Key)
	if o := field(ks); o.Set {
		return o.Value
	}
	return -1
}

func (e *Editor) nextMode(sel engine.Selection) lighting.Mode {
	current := sel.Setting.Mode
	if !sel.Global {
		ks, _ := e.session.KeySetting(sel.Key)
		current = ks.Mode.Or(lighting.ModeInherit)
	}
	next := keyModes[(indexOf(keyModes, current)+1)%len(keyModes)]
	if sel.Global && next == lighting.ModeInherit {
		next = keyModes[1]
	}
	return next
}

func (e *Editor) nextDirection(sel engine.Selection) lighting.Direction {
	current := sel.Setting.Direction
	if !sel.Global {
		ks, _ := e.session.KeySetting(sel.Key)
		current = ks.Direction.Or(lighting.DirectionInherit)
	}
	next := keyDirs[(indexOf(keyDirs, current)+1)%len(keyDirs)]
	if sel.Global && next == lighting.DirectionInherit {
		next = keyDirs[1]
	}
	return next
}

func indexOf[T comparable](values []T, v T) int {
	for i, x := range values {
		if x == v {
			return i
		}
	}
	return 0
}

func shiftHue(c colorspace.HSL, delta float64) colorspace.HSL {
	c.H = math.Mod(c.H+delta+360, 360)
	return c
}

func (e *Editor) currentFrame() []engine.KeyColor {
	e.mu.Lock()
	frame := e.frame
	e.mu.Unlock()
	if frame == nil {
		frame = e.session.Snapshot()
	}
	return frame
}

func (e *Editor) draw() {
	e.screen.Clear()

	frame := e.currentFrame()
	bottom := 0
	for _, kc := range frame {
		x, y, w, h := cells(kc.Rect)
		style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(kc.RGB.R), int32(kc.RGB.G), int32(kc.RGB.B)))
		for dy := range h {
			for dx := range w {
				e.screen.SetContent(x+1+dx, y+dy, '█', nil, style)
			}
		}
		if e.session.IsSelected(kc.Coord) {
			e.screen.SetContent(x, y, '[', nil, textStyle)
			e.screen.SetContent(x+w+1, y, ']', nil, textStyle)
		}
		if kc.Coord == e.cursor {
			e.screen.SetContent(x+1, y+h, '^', nil, textStyle)
		}
		bottom = max(bottom, y+h+1)
	}

	sel := e.session.Selection()
	target := "GLOBAL"
	if !sel.Global {
		target = fmt.Sprintf("KEY %d,%d (+%d)", sel.Key.Col, sel.Key.Row, len(sel.Extras))
	}
	s := sel.Setting
	info := fmt.Sprintf("%s  mode %s  dir %s  speed %d  brightness %d  color %s  inherit %t",
		target, s.Mode, s.Direction, s.Speed, s.Brightness, s.Color, sel.InheritsColor)

	e.mu.Lock()
	status := e.status
	e.mu.Unlock()

	e.print(0, bottom+1, info)
	e.print(0, bottom+2, status)
	e.print(0, bottom+3, help)
	e.screen.Show()
}

// cells maps a key rectangle onto the terminal. One key pitch is cellWidth
// columns and cellHeight rows; the bracket columns and the cursor row come
// out of that space.
func cells(r layout.Rect) (x, y, w, h int) {
	x = int(math.Round(r.X * cellWidth))
	y = int(math.Round(r.Y * cellHeight))
	w = max(int(math.Round(r.W*cellWidth))-2, 1)
	h = max(int(math.Round(r.H*cellHeight))-1, 1)
	return x, y, w, h
}

func (e *Editor) print(x, y int, text string) {
	for i, r := range []rune(text) {
		e.screen.SetContent(x+i, y, r, nil, textStyle)
	}
}
