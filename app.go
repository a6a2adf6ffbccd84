package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sync"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/scheerer/keypad-lights/internal/catalog"
	"github.com/scheerer/keypad-lights/internal/colorspace"
	"github.com/scheerer/keypad-lights/internal/config"
	"github.com/scheerer/keypad-lights/internal/device"
	"github.com/scheerer/keypad-lights/internal/device/sim"
	"github.com/scheerer/keypad-lights/internal/engine"
	"github.com/scheerer/keypad-lights/internal/lights"
	"github.com/scheerer/keypad-lights/internal/lights/lifx"
	"github.com/scheerer/keypad-lights/internal/preview"
	"github.com/scheerer/keypad-lights/internal/report"
	"github.com/scheerer/keypad-lights/internal/screen"
)

type backend interface {
	device.Opener
	device.Enumerator
}

type app struct {
	cfg     config.Config
	backend backend
	pusher  *device.Pusher
	// numpad is set when running against the emulated device.
	numpad *sim.Numpad
}

func newApp(cfg config.Config) *app {
	a := &app{cfg: cfg}
	if cfg.Simulate {
		a.numpad = sim.New()
		a.backend = a.numpad
	} else {
		a.backend = device.NewHIDRaw()
	}
	a.pusher = device.NewPusher(a.backend)
	return a
}

// connected lists catalog devices on the lighting interface.
func (a *app) connected(devices []device.USBDevice) ([]catalog.ConnectedDevice, error) {
	supported, err := catalog.Load(a.cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	var lighting []device.USBDevice
	for _, d := range devices {
		if d.Interface == a.cfg.HIDInterface {
			lighting = append(lighting, d)
		}
	}
	return catalog.Match(supported, lighting), nil
}

func (a *app) pick(index int) (catalog.ConnectedDevice, error) {
	devices, err := a.backend.Devices()
	if err != nil {
		return catalog.ConnectedDevice{}, err
	}
	connected, err := a.connected(devices)
	if err != nil {
		return catalog.ConnectedDevice{}, err
	}
	if index < 0 || index >= len(connected) {
		return catalog.ConnectedDevice{}, fmt.Errorf("%w: index %d of %d connected", device.ErrDeviceNotFound, index, len(connected))
	}
	return connected[index], nil
}

func (a *app) session(d catalog.ConnectedDevice) (*engine.Session, error) {
	global, err := a.cfg.Global()
	if err != nil {
		return nil, err
	}
	s := engine.NewSession(nil, global,
		engine.WithRegistry(a.cfg.Registry()),
		engine.WithSpeedMultiplier(a.cfg.SpeedMultiplier))
	if err := s.LoadLayout(a.cfg.LayoutDir, d.VisualizationConfig); err != nil {
		logger.With(zap.Stringer("device", d), zap.Error(err)).Warn("Visualization unavailable")
		return nil, err
	}
	return s, nil
}

func sendSession(ctx context.Context, p *device.Pusher, id device.ID, s *engine.Session) error {
	return p.Push(ctx, id, report.Frames(s.Records()))
}

func (a *app) devices(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("devices", flag.ContinueOnError)
	all := fs.Bool("all", false, "list every HID interface, not only catalog matches")
	if err := fs.Parse(args); err != nil {
		return err
	}

	devices, err := a.backend.Devices()
	if err != nil {
		return err
	}
	if *all {
		for _, d := range devices {
			fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID(), d.Path, d.Product)
		}
		return nil
	}

	connected, err := a.connected(devices)
	if err != nil {
		return err
	}
	for i, c := range connected {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, c, c.VisualizationConfig)
	}
	return nil
}

func (a *app) push(ctx context.Context, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("push", flag.ContinueOnError)
	index := fs.Int("device", 0, "index from the devices command")
	animate := fs.Duration("animate", 0, "with SIMULATE, run the emulated firmware this long before printing its LEDs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, err := a.pick(*index)
	if err != nil {
		return err
	}
	s, err := a.session(d)
	if err != nil {
		return err
	}
	s.Initialize()

	if err := sendSession(ctx, a.pusher, d.USB.ID(), s); err != nil {
		return err
	}
	fmt.Fprintf(w, "pushed %d keys to %s\n", len(s.Records()), d)

	if a.numpad != nil {
		if *animate > 0 {
			a.numpad.Step(*animate)
			fmt.Fprintf(w, "after %s\n", *animate)
		}
		for i, px := range a.numpad.Pixels() {
			fmt.Fprintf(w, "led %2d %s\n", i, px)
		}
	}
	return nil
}

// target is the device pushes go to. The watcher clears it when the device
// disappears and restores it when it comes back.
type target struct {
	mu     sync.Mutex
	device catalog.ConnectedDevice
	online bool
}

func (t *target) set(d catalog.ConnectedDevice, online bool) {
	t.mu.Lock()
	t.device, t.online = d, online
	t.mu.Unlock()
}

func (t *target) get() (catalog.ConnectedDevice, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.device, t.online
}

func (a *app) watch(ctx context.Context, t *target) {
	for devices := range device.Watch(ctx, a.backend, a.cfg.DevicePollInterval) {
		connected, err := a.connected(devices)
		if err != nil {
			logger.With(zap.Error(err)).Warn("Failed to refresh connected devices")
			continue
		}
		current, _ := t.get()
		online := false
		for _, c := range connected {
			if c.USB.ID() == current.USB.ID() {
				t.set(c, true)
				online = true
				break
			}
		}
		if !online {
			t.set(current, false)
		}
		logger.With(zap.Int("connected", len(connected)), zap.Bool("online", online)).Info("Device list refreshed")
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	index := fs.Int("device", 0, "index from the devices command")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, err := a.pick(*index)
	if err != nil {
		return err
	}
	s, err := a.session(d)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := &target{}
	t.set(d, true)
	go a.watch(ctx, t)

	if err := a.startColorSource(ctx, s); err != nil {
		return err
	}
	if err := a.startMirror(ctx, s); err != nil {
		return err
	}

	var editor *preview.Editor
	var opts []engine.SchedulerOption
	var scr tcell.Screen
	if a.cfg.Preview {
		if scr, err = tcell.NewScreen(); err != nil {
			return err
		}
		if err := scr.Init(); err != nil {
			return err
		}
		defer scr.Fini()
	}

	var sched *engine.Scheduler
	push := func(ctx context.Context) error {
		dev, online := t.get()
		if !online {
			return fmt.Errorf("%w: %s", device.ErrDeviceNotFound, dev)
		}
		if err := sendSession(ctx, a.pusher, dev.USB.ID(), s); err != nil {
			return err
		}
		sched.Restart()
		return nil
	}

	if scr != nil {
		editor = preview.New(scr, s, push)
		opts = append(opts, engine.WithTickHook(editor.OnTick))
	}
	sched = engine.NewScheduler(s, a.cfg.RefreshRate, opts...)
	sched.Start(ctx)
	defer sched.Stop()

	if a.numpad != nil {
		go a.numpad.Run(ctx, sched.Period())
	}

	logger.With(zap.Stringer("device", d), zap.Stringer("period", sched.Period())).Info("Lighting session running")

	if editor != nil {
		return editor.Run(ctx)
	}
	if err := push(ctx); err != nil {
		logger.With(zap.Error(err)).Warn("Initial push failed")
	}
	<-ctx.Done()
	return nil
}

func (a *app) startColorSource(ctx context.Context, s *engine.Session) error {
	switch a.cfg.ColorSource {
	case "NONE", "":
		return nil
	case "SCREEN":
		algo, err := screen.ParseAlgorithm(a.cfg.ColorAlgo)
		if err != nil {
			return err
		}
		sampler := screen.NewSampler(a.cfg.ScreenNumber, a.cfg.PixelGridSize, algo)
		go sampler.Follow(ctx, a.cfg.CaptureInterval, func(c colorspace.RGB) {
			s.SetGlobalColor(colorspace.RGBToHSL(c))
		})
		return nil
	default:
		return fmt.Errorf("unknown color source: %v", a.cfg.ColorSource)
	}
}

func (a *app) startMirror(ctx context.Context, s *engine.Session) error {
	var service lights.LightService
	switch a.cfg.LightType {
	case "NONE", "":
		return nil
	case "LIFX":
		l, err := lifx.NewLifx(ctx, lifx.Config{
			GroupName:     a.cfg.LightGroupName,
			MinBrightness: a.cfg.MinBrightness,
			MaxBrightness: a.cfg.MaxBrightness,
		})
		if err != nil {
			return err
		}
		service = l
	default:
		return fmt.Errorf("unknown light type: %v", a.cfg.LightType)
	}

	m := lights.NewMirror(service, a.cfg.MirrorInterval)
	go m.Run(ctx, func() []colorspace.RGB {
		snapshot := s.Snapshot()
		out := make([]colorspace.RGB, len(snapshot))
		for i, kc := range snapshot {
			out[i] = kc.RGB
		}
		return out
	})
	return nil
}
