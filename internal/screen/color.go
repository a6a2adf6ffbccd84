package screen

import (
	"fmt"
	"image"
	"math"
	"slices"
	"strings"

	"github.com/scheerer/keypad-lights/internal/colorspace"
)

// Algorithm reduces a captured frame to one colour, sampling every
// pixelGridSize-th pixel in both directions.
type Algorithm func(img *image.RGBA, pixelGridSize int) colorspace.RGB

var algorithms = map[string]Algorithm{
	"AVERAGE":         AverageColor,
	"SQUARED_AVERAGE": SquaredAverageColor,
	"MEDIAN":          MedianColor,
	"MODE":            ModeColor,
}

func ParseAlgorithm(name string) (Algorithm, error) {
	if a, ok := algorithms[strings.ToUpper(name)]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("unknown color algorithm: %v", name)
}

func each(img *image.RGBA, pixelGridSize int, fn func(r, g, b uint8)) {
	if pixelGridSize < 1 {
		pixelGridSize = 1
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y += pixelGridSize {
		for x := bounds.Min.X; x < bounds.Max.X; x += pixelGridSize {
			c := img.RGBAAt(x, y)
			fn(c.R, c.G, c.B)
		}
	}
}

func AverageColor(img *image.RGBA, pixelGridSize int) colorspace.RGB {
	var sumR, sumG, sumB, n uint64
	each(img, pixelGridSize, func(r, g, b uint8) {
		sumR += uint64(r)
		sumG += uint64(g)
		sumB += uint64(b)
		n++
	})
	if n == 0 {
		return colorspace.RGB{}
	}

	return colorspace.RGB{
		R: uint8(sumR / n),
		G: uint8(sumG / n),
		B: uint8(sumB / n),
	}
}

// SquaredAverageColor averages in squared space, which weights bright pixels
// closer to how they are perceived.
func SquaredAverageColor(img *image.RGBA, pixelGridSize int) colorspace.RGB {
	var sumR, sumG, sumB, n uint64
	each(img, pixelGridSize, func(r, g, b uint8) {
		sumR += uint64(r) * uint64(r)
		sumG += uint64(g) * uint64(g)
		sumB += uint64(b) * uint64(b)
		n++
	})
	if n == 0 {
		return colorspace.RGB{}
	}

	return colorspace.RGB{
		R: uint8(math.Sqrt(float64(sumR / n))),
		G: uint8(math.Sqrt(float64(sumG / n))),
		B: uint8(math.Sqrt(float64(sumB / n))),
	}
}

// MedianColor takes the median of each channel independently.
func MedianColor(img *image.RGBA, pixelGridSize int) colorspace.RGB {
	var reds, greens, blues []uint8
	each(img, pixelGridSize, func(r, g, b uint8) {
		reds = append(reds, r)
		greens = append(greens, g)
		blues = append(blues, b)
	})
	if len(reds) == 0 {
		return colorspace.RGB{}
	}

	median := func(values []uint8) uint8 {
		slices.Sort(values)
		n := len(values)
		if n%2 == 0 {
			return uint8((int(values[n/2-1]) + int(values[n/2])) / 2)
		}
		return values[n/2]
	}

	return colorspace.RGB{
		R: median(reds),
		G: median(greens),
		B: median(blues),
	}
}

// ModeColor returns the most frequent sampled colour. Ties go to the colour
// seen first.
func ModeColor(img *image.RGBA, pixelGridSize int) colorspace.RGB {
	counts := make(map[colorspace.RGB]int)
	var mode colorspace.RGB
	maxCount := 0
	each(img, pixelGridSize, func(r, g, b uint8) {
		c := colorspace.RGB{R: r, G: g, B: b}
		counts[c]++
		if counts[c] > maxCount {
			maxCount = counts[c]
			mode = c
		}
	})
	return mode
}
