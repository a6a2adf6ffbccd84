package device

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"
)

// Watch polls e and sends the device list whenever the set of connected
// devices changes, starting with the initial list. The channel is closed
// when ctx is done.
func Watch(ctx context.Context, e Enumerator, interval time.Duration) <-chan []USBDevice {
	out := make(chan []USBDevice, 1)

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last []string
		first := true
		for {
			devices, err := e.Devices()
			if err != nil {
				logger.With(zap.Error(err)).Warn("Failed to list devices")
			} else if key := fingerprint(devices); first || !slices.Equal(key, last) {
				if !first {
					logger.With(zap.Int("devices", len(devices))).Info("Connected devices changed")
				}
				first = false
				last = key
				select {
				case out <- devices:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func fingerprint(devices []USBDevice) []string {
	key := make([]string, 0, len(devices))
	for _, d := range devices {
		key = append(key, d.ID().String()+"@"+d.Path)
	}
	slices.Sort(key)
	return key
}
