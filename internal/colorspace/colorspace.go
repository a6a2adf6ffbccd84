package colorspace

import (
	"fmt"
	"image/color"
	"math"
)

// HSL is a colour in hue (degrees, [0,360)), saturation and lightness
// (both percent, 0-100).
type HSL struct {
	H float64 `json:"H" yaml:"H"`
	S float64 `json:"S" yaml:"S"`
	L float64 `json:"L" yaml:"L"`
}

// RGB is an 8 bit per channel colour as sent to the device.
type RGB struct {
	R uint8
	G uint8
	B uint8
}

func (c HSL) String() string {
	return fmt.Sprintf("hsl(%.1f, %.1f%%, %.1f%%)", c.H, c.S, c.L)
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c RGB) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF}.RGBA()
}

// FromColor drops alpha and converts any image colour into an RGB triplet.
func FromColor(c color.Color) RGB {
	r, g, b, _ := c.RGBA()
	return RGB{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
}

// Scale multiplies every channel by f, clamping to 0-255.
func (c RGB) Scale(f float64) RGB {
	return RGB{
		R: channel(float64(c.R) * f),
		G: channel(float64(c.G) * f),
		B: channel(float64(c.B) * f),
	}
}

// Average returns the per-channel mean of colors. An empty slice is black.
func Average(colors []RGB) RGB {
	if len(colors) == 0 {
		return RGB{}
	}
	var sumR, sumG, sumB uint64
	for _, c := range colors {
		sumR += uint64(c.R)
		sumG += uint64(c.G)
		sumB += uint64(c.B)
	}
	n := uint64(len(colors))
	return RGB{R: uint8(sumR / n), G: uint8(sumG / n), B: uint8(sumB / n)}
}

// HSLToRGB converts with the usual 60 degree sector formula. Saturation and
// lightness outside 0-100 are clamped and hue is wrapped into [0,360).
func HSLToRGB(c HSL) RGB {
	h := wrapHue(c.H)
	s := clamp(c.S/100, 0, 1)
	l := clamp(c.L/100, 0, 1)

	chroma := (1 - math.Abs(2*l-1)) * s
	x := chroma * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - chroma/2

	var r1, g1, b1 float64
	switch {
	case h < 60:
		r1, g1, b1 = chroma, x, 0
	case h < 120:
		r1, g1, b1 = x, chroma, 0
	case h < 180:
		r1, g1, b1 = 0, chroma, x
	case h < 240:
		r1, g1, b1 = 0, x, chroma
	case h < 300:
		r1, g1, b1 = x, 0, chroma
	default:
		r1, g1, b1 = chroma, 0, x
	}

	return RGB{
		R: channel(math.Round((r1 + m) * 255)),
		G: channel(math.Round((g1 + m) * 255)),
		B: channel(math.Round((b1 + m) * 255)),
	}
}

// RGBToHSL is the inverse of HSLToRGB. H, S and L are rounded to whole
// degrees and percent.
func RGBToHSL(c RGB) HSL {
	red := float64(c.R) / 255
	green := float64(c.G) / 255
	blue := float64(c.B) / 255

	max := math.Max(red, math.Max(green, blue))
	min := math.Min(red, math.Min(green, blue))
	l := (max + min) / 2

	var h, s float64
	if max != min {
		d := max - min
		if l > 0.5 {
			s = d / (2 - max - min)
		} else {
			s = d / (max + min)
		}

		switch max {
		case red:
			h = (green - blue) / d
			if green < blue {
				h += 6
			}
		case green:
			h = (blue-red)/d + 2
		default:
			h = (red-green)/d + 4
		}
		h *= 60
	}

	hue := math.Round(h)
	if hue >= 360 {
		hue -= 360
	}
	return HSL{H: hue, S: math.Round(s * 100), L: math.Round(l * 100)}
}

// CycleHue rotates the hue by delta degrees, keeping it in [0,360).
func CycleHue(c HSL, delta float64) HSL {
	c.H = wrapHue(c.H + delta)
	return c
}

// Clamp wraps the hue into [0,360) and limits saturation and lightness to
// [0,100].
func Clamp(c HSL) HSL {
	return HSL{H: wrapHue(c.H), S: percent(c.S), L: percent(c.L)}
}

func percent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, 0, 100)
}

func wrapHue(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	// a tiny negative remainder plus 360 rounds to exactly 360
	if h >= 360 || math.IsNaN(h) {
		h = 0
	}
	return h
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func channel(v float64) uint8 {
	return uint8(clamp(v, 0, 255))
}
