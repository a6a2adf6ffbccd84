package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/scheerer/keypad-lights/internal/logging"
)

var logger = logging.New("layout")

// ErrUnavailable wraps every failure to produce a usable layout.
var ErrUnavailable = errors.New("visualization unavailable")

type keyDoc struct {
	MarginX        *float64 `json:"Margin_X" yaml:"Margin_X"`
	MarginY        *float64 `json:"Margin_Y" yaml:"Margin_Y"`
	SizeX          *float64 `json:"Size_X" yaml:"Size_X"`
	SizeY          *float64 `json:"Size_Y" yaml:"Size_Y"`
	FigurativePosX *float64 `json:"FigurativePosX" yaml:"FigurativePosX"`
	FigurativePosY *float64 `json:"FigurativePosY" yaml:"FigurativePosY"`
}

type rowDoc struct {
	MarginX *float64 `json:"Margin_X" yaml:"Margin_X"`
	MarginY *float64 `json:"Margin_Y" yaml:"Margin_Y"`
	Keys    []keyDoc `json:"Keys" yaml:"Keys"`
}

type document struct {
	MarginX        *float64  `json:"Margin_X" yaml:"Margin_X"`
	MarginY        *float64  `json:"Margin_Y" yaml:"Margin_Y"`
	GapX           *float64  `json:"Gap_X" yaml:"Gap_X"`
	GapY           *float64  `json:"Gap_Y" yaml:"Gap_Y"`
	CenterX        *float64  `json:"Center_X" yaml:"Center_X"`
	CenterY        *float64  `json:"Center_Y" yaml:"Center_Y"`
	DefaultKeySize *float64  `json:"DefaultKeySize" yaml:"DefaultKeySize"`
	PivotX         *float64  `json:"Pivot_X,omitempty" yaml:"Pivot_X,omitempty"`
	PivotY         *float64  `json:"Pivot_Y,omitempty" yaml:"Pivot_Y,omitempty"`
	Rows           *[]rowDoc `json:"Rows" yaml:"Rows"`
}

type fieldChecker struct {
	missing []string
}

func (fc *fieldChecker) get(v *float64, name string) float64 {
	if v == nil {
		fc.missing = append(fc.missing, name)
		return 0
	}
	return *v
}

func (fc *fieldChecker) err() error {
	if len(fc.missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing fields: %s", strings.Join(fc.missing, ", "))
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func (d document) build() (*Layout, error) {
	fc := &fieldChecker{}
	l := &Layout{
		MarginX:        orDefault(d.MarginX, 0),
		MarginY:        orDefault(d.MarginY, 0),
		GapX:           fc.get(d.GapX, "Gap_X"),
		GapY:           fc.get(d.GapY, "Gap_Y"),
		CenterX:        fc.get(d.CenterX, "Center_X"),
		CenterY:        fc.get(d.CenterY, "Center_Y"),
		DefaultKeySize: fc.get(d.DefaultKeySize, "DefaultKeySize"),
		PivotX:         orDefault(d.PivotX, defaultPivotX),
		PivotY:         orDefault(d.PivotY, defaultPivotY),
	}
	if d.Rows == nil {
		fc.missing = append(fc.missing, "Rows")
		return nil, fc.err()
	}

	l.Rows = make([]Row, 0, len(*d.Rows))
	for i, rd := range *d.Rows {
		row := Row{
			MarginX: orDefault(rd.MarginX, 0),
			MarginY: fc.get(rd.MarginY, fmt.Sprintf("Rows[%d].Margin_Y", i)),
			Keys:    make([]Key, 0, len(rd.Keys)),
		}
		for j, kd := range rd.Keys {
			prefix := fmt.Sprintf("Rows[%d].Keys[%d].", i, j)
			row.Keys = append(row.Keys, Key{
				MarginX:        fc.get(kd.MarginX, prefix+"Margin_X"),
				MarginY:        orDefault(kd.MarginY, 0),
				SizeX:          fc.get(kd.SizeX, prefix+"Size_X"),
				SizeY:          fc.get(kd.SizeY, prefix+"Size_Y"),
				FigurativePosX: orDefault(kd.FigurativePosX, FigurativeUnset),
				FigurativePosY: orDefault(kd.FigurativePosY, FigurativeUnset),
			})
		}
		l.Rows = append(l.Rows, row)
	}
	if err := fc.err(); err != nil {
		return nil, err
	}
	if l.DefaultKeySize <= 0 {
		return nil, fmt.Errorf("DefaultKeySize must be positive, got %v", l.DefaultKeySize)
	}

	l.ComputeOffsets()
	l.ResetLighting()
	return l, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Parse decodes a layout document. name only selects the format: YAML for
// .yaml/.yml, JSON otherwise.
func Parse(name string, data []byte) (*Layout, error) {
	var doc document
	var err error
	if isYAML(name) {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, name, err)
	}

	l, err := doc.build()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, name, err)
	}
	return l, nil
}

// Load reads the layout file name from dir.
func Load(dir, name string) (*Layout, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	l, err := Parse(name, data)
	if err != nil {
		return nil, err
	}

	logger.With(zap.String("path", path),
		zap.Int("rows", len(l.Rows)),
		zap.Int("keys", l.KeyCount())).
		Debug("Loaded visualization layout")
	return l, nil
}
