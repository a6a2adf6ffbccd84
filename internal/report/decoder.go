package report

import (
	"errors"
	"fmt"
)

var (
	ErrFrameSize   = errors.New("frame has wrong size")
	ErrReportType  = errors.New("unsupported report type")
	ErrFramePrefix = errors.New("frame report ID must be zero")
)

// Decoder reassembles key records from frames the way the device firmware
// does: it consumes seven byte groups until it has seen every key, then
// starts over.
type Decoder struct {
	keys    int
	pending []KeyRecord
}

func NewDecoder(keys int) *Decoder {
	return &Decoder{keys: keys, pending: make([]KeyRecord, 0, keys)}
}

// Feed consumes one frame. It returns the complete record set once the last
// key has been received, and nil otherwise.
func (d *Decoder) Feed(frame []byte) ([]KeyRecord, error) {
	if len(frame) != FrameSize {
		return nil, fmt.Errorf("%w: %d", ErrFrameSize, len(frame))
	}
	if frame[0] != 0 {
		return nil, ErrFramePrefix
	}
	report := frame[1:]
	if report[0] != TypeLighting {
		return nil, fmt.Errorf("%w: %d", ErrReportType, report[0])
	}

	for i := 1; i+KeyRecordSize <= len(report) && len(d.pending) < d.keys; i += KeyRecordSize {
		d.pending = append(d.pending, decodeRecord(report[i:i+KeyRecordSize]))
	}
	if len(d.pending) < d.keys {
		return nil, nil
	}

	done := d.pending
	d.pending = make([]KeyRecord, 0, d.keys)
	return done, nil
}

// Reset drops a partially received record set.
func (d *Decoder) Reset() {
	d.pending = d.pending[:0]
}
