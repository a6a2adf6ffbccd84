package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/scheerer/keypad-lights/internal/config"
	"github.com/scheerer/keypad-lights/internal/logging"
)

var logger = logging.New("main")

const usage = `usage: keypad-lights [devices|push|run] [flags]

  devices   list connected devices found in the catalog
  push      send the configured lighting to a device once
  run       animate a live preview and push on demand (default)

Configuration is read from the environment, see internal/config.`

func main() {
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Failed to parse environment variables")
	}
	if err := logging.Configure(cfg.LogLevel); err != nil {
		logger.With(zap.Error(err)).Fatal("Invalid LOG_LEVEL")
	}

	cmd, args := "run", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg)
	switch cmd {
	case "devices":
		err = a.devices(os.Stdout, args)
	case "push":
		err = a.push(ctx, os.Stdout, args)
	case "run":
		err = a.run(ctx, args)
	case "help", "-h", "--help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintln(os.Stderr, usage)
		logger.Fatalf("unknown command: %v", cmd)
	}
	if err != nil {
		logger.With(zap.String("command", cmd), zap.Error(err)).Fatal("Command failed")
	}
}
