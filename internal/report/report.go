package report

import (
	"fmt"

	"github.com/scheerer/keypad-lights/internal/colorspace"
)

const (
	// ReportSize is the HID report payload the firmware accepts.
	ReportSize = 64
	// FrameSize is ReportSize plus the leading report ID byte the host
	// transport expects. The device has no report IDs so it is always 0.
	FrameSize = ReportSize + 1
	// KeyRecordSize is the number of bytes describing one key.
	KeyRecordSize = 7
	// TypeLighting marks a report carrying key lighting records.
	TypeLighting byte = 1

	sealThreshold = ReportSize - KeyRecordSize
)

// KeyRecord is the lighting state of one key as the firmware stores it.
type KeyRecord struct {
	Color      colorspace.RGB
	Animated   bool
	Speed      uint8
	Brightness uint8
	Direction  uint8
}

func (r KeyRecord) appendTo(b []byte) []byte {
	var mode byte
	if r.Animated {
		mode = 1
	}
	return append(b, r.Color.R, r.Color.G, r.Color.B, mode, r.Speed, r.Brightness, r.Direction)
}

func (r KeyRecord) String() string {
	return fmt.Sprintf("{%s animated=%t speed=%d brightness=%d direction=%d}",
		r.Color, r.Animated, r.Speed, r.Brightness, r.Direction)
}

func decodeRecord(b []byte) KeyRecord {
	return KeyRecord{
		Color:      colorspace.RGB{R: b[0], G: b[1], B: b[2]},
		Animated:   b[3] != 0,
		Speed:      b[4],
		Brightness: b[5],
		Direction:  b[6],
	}
}

// Packetize splits records, in firmware key order, into reports. Every
// report starts with TypeLighting and is sealed once it holds more than
// ReportSize-KeyRecordSize bytes, i.e. nine keys, or after the last record.
func Packetize(records []KeyRecord) [][]byte {
	var reports [][]byte
	current := make([]byte, 1, ReportSize)
	current[0] = TypeLighting

	for i, r := range records {
		current = r.appendTo(current)
		if len(current) > sealThreshold || i == len(records)-1 {
			reports = append(reports, current)
			current = make([]byte, 1, ReportSize)
			current[0] = TypeLighting
		}
	}
	return reports
}

// Frame copies report into a zero padded FrameSize buffer after the unused
// report ID byte. A report longer than ReportSize cannot come out of
// Packetize and is treated as a programming error.
func Frame(report []byte) []byte {
	if len(report) > ReportSize {
		panic(fmt.Sprintf("report: %d byte report exceeds %d", len(report), ReportSize))
	}
	frame := make([]byte, FrameSize)
	copy(frame[1:], report)
	return frame
}

// Frames packetizes records and frames every report, ready for the
// transport.
func Frames(records []KeyRecord) [][]byte {
	reports := Packetize(records)
	frames := make([][]byte, 0, len(reports))
	for _, r := range reports {
		frames = append(frames, Frame(r))
	}
	return frames
}
