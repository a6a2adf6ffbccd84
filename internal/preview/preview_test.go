package preview

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/keypad-lights/internal/engine"
	"github.com/scheerer/keypad-lights/internal/layout"
	"github.com/scheerer/keypad-lights/internal/lighting"
)

func row(n int) *layout.Layout {
	l := &layout.Layout{CenterX: 1, CenterY: 0, PivotX: 4, PivotY: 5, DefaultKeySize: 40}
	var r layout.Row
	for range n {
		r.Keys = append(r.Keys, layout.Key{
			SizeX:          1,
			SizeY:          1,
			FigurativePosX: layout.FigurativeUnset,
			FigurativePosY: layout.FigurativeUnset,
			LED:            lighting.NewKeyLighting(),
		})
	}
	l.Rows = []layout.Row{r, r}
	l.Rows[1].Keys = append([]layout.Key(nil), r.Keys[:1]...)
	l.ComputeOffsets()
	return l
}

func newEditor(t *testing.T, push PushFunc) (*Editor, *engine.Session, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(160, 24)
	t.Cleanup(screen.Fini)

	session := engine.NewSession(row(3), lighting.DefaultGlobal())
	session.Initialize()
	return New(screen, session, push), session, screen
}

func press(e *Editor, r rune) bool {
	return e.handle(context.Background(), tcell.KeyRune, r, tcell.ModNone)
}

func line(s tcell.Screen, y int) string {
	w, _ := s.Size()
	var b strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := s.GetContent(x, y)
		b.WriteRune(r)
	}
	return b.String()
}

func TestCursorAndSelection(t *testing.T) {
	e, s, _ := newEditor(t, nil)

	e.handle(context.Background(), tcell.KeyRight, 0, tcell.ModNone)
	e.handle(context.Background(), tcell.KeyRight, 0, tcell.ModNone)
	e.handle(context.Background(), tcell.KeyRight, 0, tcell.ModNone)
	assert.Equal(t, layout.Coord{Col: 2}, e.cursor)

	e.handle(context.Background(), tcell.KeyEnter, 0, tcell.ModNone)
	assert.Equal(t, layout.Coord{Col: 2}, s.Selection().Key)

	// the second row has one key
	e.handle(context.Background(), tcell.KeyDown, 0, tcell.ModNone)
	assert.Equal(t, layout.Coord{Col: 0, Row: 1}, e.cursor)
	press(e, 'x')
	assert.Equal(t, []layout.Coord{{Row: 1}}, s.Selection().Extras)

	e.handle(context.Background(), tcell.KeyDown, 0, tcell.ModNone)
	assert.Equal(t, layout.Coord{Col: 0, Row: 1}, e.cursor)

	e.handle(context.Background(), tcell.KeyEscape, 0, tcell.ModNone)
	assert.True(t, s.Selection().Global)
}

func TestGlobalEdits(t *testing.T) {
	e, s, _ := newEditor(t, nil)

	press(e, 'm')
	assert.Equal(t, lighting.ModeRing, s.Global().Mode)
	press(e, 'm')
	assert.Equal(t, lighting.ModeOff, s.Global().Mode)

	press(e, 'd')
	assert.Equal(t, lighting.DirectionDown, s.Global().Direction)
	press(e, 'd')
	assert.Equal(t, lighting.DirectionLeft, s.Global().Direction)

	press(e, '+')
	assert.Equal(t, 6, s.Global().Speed)
	press(e, ']')
	assert.Equal(t, 10, s.Global().Brightness)
	press(e, '[')
	assert.Equal(t, 9, s.Global().Brightness)

	press(e, 'H')
	assert.Equal(t, 350.0, s.Global().Color.H)
}

func TestKeyEdits(t *testing.T) {
	e, s, _ := newEditor(t, nil)
	press(e, ' ')
	key := layout.Coord{}

	press(e, 'm')
	ks, _ := s.KeySetting(key)
	assert.Equal(t, lighting.Use(lighting.ModeOff), ks.Mode)

	press(e, '-')
	ks, _ = s.KeySetting(key)
	assert.False(t, ks.Speed.Set)

	press(e, '+')
	ks, _ = s.KeySetting(key)
	assert.Equal(t, lighting.Use(0), ks.Speed)

	assert.True(t, s.Selection().InheritsColor)
	press(e, 'i')
	assert.False(t, s.Selection().InheritsColor)
	press(e, 'i')
	assert.True(t, s.Selection().InheritsColor)
}

func TestPushAndQuit(t *testing.T) {
	var pushes int
	fail := false
	e, _, _ := newEditor(t, func(context.Context) error {
		pushes++
		if fail {
			return errors.New("unplugged")
		}
		return nil
	})

	press(e, 'p')
	assert.Equal(t, 1, pushes)
	assert.Equal(t, "pushed to device", e.status)

	fail = true
	press(e, 'p')
	assert.Contains(t, e.status, "unplugged")

	assert.True(t, press(e, 'q'))
	assert.True(t, e.handle(context.Background(), tcell.KeyCtrlC, 0, tcell.ModCtrl))
}

func TestDraw(t *testing.T) {
	e, _, screen := newEditor(t, nil)
	e.draw()

	assert.Contains(t, line(screen, 5), "GLOBAL")
	assert.Contains(t, line(screen, 5), "WAVE")
	assert.Contains(t, line(screen, 7), "p push")
	assert.Equal(t, '^', []rune(line(screen, 1))[1])

	press(e, ' ')
	e.draw()
	assert.Contains(t, line(screen, 5), "KEY 0,0")
	assert.Equal(t, '[', []rune(line(screen, 0))[0])
}

func TestRunStopsWithContext(t *testing.T) {
	e, _, _ := newEditor(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	time.Sleep(2 * frameInterval)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestDrawFollowsKeyGeometry(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(80, 24)
	t.Cleanup(screen.Fini)

	key := func(w, h float64) layout.Key {
		return layout.Key{
			SizeX:          w,
			SizeY:          h,
			FigurativePosX: layout.FigurativeUnset,
			FigurativePosY: layout.FigurativeUnset,
			LED:            lighting.NewKeyLighting(),
		}
	}
	// a wide key then a tall one, on a 48 unit key with 4 unit gaps
	l := &layout.Layout{CenterX: 1, PivotX: 4, PivotY: 5, DefaultKeySize: 48, GapX: 4, GapY: 4}
	l.Rows = []layout.Row{
		{Keys: []layout.Key{key(2, 1), key(1, 2)}},
		{Keys: []layout.Key{key(1, 1)}},
	}
	l.ComputeOffsets()

	session := engine.NewSession(l, lighting.DefaultGlobal())
	session.Initialize()
	e := New(screen, session, nil)
	e.cursor = layout.Coord{Col: 1}
	e.draw()

	top := []rune(line(screen, 0))
	// the wide key covers two pitches minus its brackets
	assert.Equal(t, strings.Repeat("█", 10), string(top[1:11]))
	assert.Equal(t, ' ', top[11])
	// the tall key starts at the third pitch and spans three rows
	assert.Equal(t, '█', top[13])
	for y := 1; y < 3; y++ {
		assert.Equal(t, '█', []rune(line(screen, y))[13], "row %d", y)
	}
	assert.Equal(t, '^', []rune(line(screen, 3))[13])

	// the second row starts one pitch down
	assert.Equal(t, '█', []rune(line(screen, 2))[1])
}
