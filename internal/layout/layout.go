package layout

import (
	"github.com/scheerer/keypad-lights/internal/lighting"
)

const (
	// FigurativeUnset marks a key whose figurative position is its logical
	// column or row.
	FigurativeUnset = -1

	defaultPivotX = 4
	defaultPivotY = 5
)

// Coord addresses a key by logical column and row.
type Coord struct {
	Col int
	Row int
}

type Key struct {
	MarginX        float64
	MarginY        float64
	SizeX          float64
	SizeY          float64
	FigurativePosX float64
	FigurativePosY float64

	// SumMarginX is the rendering offset of the key inside its row.
	SumMarginX float64

	LED lighting.KeyLighting
}

type Row struct {
	MarginX    float64
	MarginY    float64
	SumMarginY float64
	Keys       []Key
}

// Layout is the visual geometry of a device. Rows and keys are in device
// order: walking rows then keys yields the firmware's key index.
type Layout struct {
	MarginX        float64
	MarginY        float64
	GapX           float64
	GapY           float64
	CenterX        float64
	CenterY        float64
	DefaultKeySize float64
	PivotX         float64
	PivotY         float64
	Rows           []Row
}

// Position is where spatial modes consider the key at c to be.
func (l *Layout) Position(c Coord) (x, y float64) {
	k := &l.Rows[c.Row].Keys[c.Col]
	x, y = float64(c.Col), float64(c.Row)
	if k.FigurativePosX != FigurativeUnset {
		x = k.FigurativePosX
	}
	if k.FigurativePosY != FigurativeUnset {
		y = k.FigurativePosY
	}
	return x, y
}

func (l *Layout) Key(c Coord) (*Key, bool) {
	if c.Row < 0 || c.Row >= len(l.Rows) {
		return nil, false
	}
	if c.Col < 0 || c.Col >= len(l.Rows[c.Row].Keys) {
		return nil, false
	}
	return &l.Rows[c.Row].Keys[c.Col], true
}

// Each visits keys row-major in device order.
func (l *Layout) Each(fn func(c Coord, k *Key)) {
	for row := range l.Rows {
		for col := range l.Rows[row].Keys {
			fn(Coord{Col: col, Row: row}, &l.Rows[row].Keys[col])
		}
	}
}

func (l *Layout) KeyCount() int {
	n := 0
	for _, r := range l.Rows {
		n += len(r.Keys)
	}
	return n
}

// Rect is a key's drawing rectangle measured in key pitches, one default key
// plus one gap, so a grid of 1x1 keys lands on whole numbers.
type Rect struct {
	X, Y, W, H float64
}

// Rect places the key at c using the offsets from ComputeOffsets. The
// layout's own outer margin is left to the renderer.
func (l *Layout) Rect(c Coord) Rect {
	row := &l.Rows[c.Row]
	k := &row.Keys[c.Col]
	px := l.DefaultKeySize + l.GapX
	py := l.DefaultKeySize + l.GapY
	if px <= 0 || py <= 0 {
		return Rect{X: float64(c.Col), Y: float64(c.Row), W: k.SizeX, H: k.SizeY}
	}
	return Rect{
		X: (row.MarginX + k.SumMarginX) / px,
		Y: (row.SumMarginY + k.MarginY) / py,
		W: (k.SizeX*px - l.GapX) / px,
		H: (k.SizeY*py - l.GapY) / py,
	}
}

// ComputeOffsets fills the SumMargin caches used for drawing. Load calls it;
// layouts built in code must call it after changing geometry.
func (l *Layout) ComputeOffsets() {
	var sumY float64
	for i := range l.Rows {
		row := &l.Rows[i]
		sumY += row.MarginY
		row.SumMarginY = sumY

		var sumX float64
		smallestY := 1.0
		for j := range row.Keys {
			k := &row.Keys[j]
			sumX += k.MarginX
			k.SumMarginX = sumX
			sumX += k.SizeX*l.DefaultKeySize + l.GapX
			if k.SizeY < smallestY {
				smallestY = k.SizeY
			}
		}

		sumY += smallestY*l.DefaultKeySize + l.GapY
	}
}

// ResetLighting puts every key back to its freshly loaded state.
func (l *Layout) ResetLighting() {
	l.Each(func(_ Coord, k *Key) {
		k.LED = lighting.NewKeyLighting()
	})
}
