// Command packetdump prints the report frames a layout produces with the
// lighting configured in the environment.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/scheerer/keypad-lights/internal/config"
	"github.com/scheerer/keypad-lights/internal/engine"
	"github.com/scheerer/keypad-lights/internal/layout"
	"github.com/scheerer/keypad-lights/internal/logging"
	"github.com/scheerer/keypad-lights/internal/report"
)

var logger = logging.New("packetdump")

func main() {
	defer logger.Sync()

	var layoutPath string
	var records bool
	flag.StringVar(&layoutPath, "layout", "layouts/NumpadV2.json", "Path to a visualization layout (JSON or YAML)")
	flag.BoolVar(&records, "records", false, "Also print the decoded key records")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Failed to parse environment variables")
	}
	global, err := cfg.Global()
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Invalid global setting")
	}

	l, err := layout.Load(filepath.Dir(layoutPath), filepath.Base(layoutPath))
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Failed to load layout")
	}

	s := engine.NewSession(l, global,
		engine.WithRegistry(cfg.Registry()),
		engine.WithSpeedMultiplier(cfg.SpeedMultiplier))
	s.Initialize()

	keys := s.Records()
	for i, frame := range report.Frames(keys) {
		fmt.Fprintf(os.Stdout, "frame %d\n%s", i, hex.Dump(frame))
	}
	if records {
		for i, r := range keys {
			fmt.Fprintf(os.Stdout, "key %2d %s\n", i, r)
		}
	}
}
