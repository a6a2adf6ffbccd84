package report

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/keypad-lights/internal/colorspace"
)

func records(n int) []KeyRecord {
	out := make([]KeyRecord, n)
	for i := range out {
		out[i] = KeyRecord{
			Color:      colorspace.RGB{R: uint8(i), G: uint8(2 * i), B: uint8(3 * i)},
			Animated:   i%2 == 0,
			Speed:      uint8(i % 11),
			Brightness: 10,
			Direction:  uint8(i % 4),
		}
	}
	return out
}

func TestTenKeysOneRow(t *testing.T) {
	frames := Frames(records(10))

	want := int(math.Ceil(float64(10*KeyRecordSize) / float64(ReportSize-KeyRecordSize)))
	require.Len(t, frames, want)
	for _, f := range frames {
		assert.Len(t, f, FrameSize)
		assert.Equal(t, byte(0), f[0])
		assert.Equal(t, TypeLighting, f[1])
	}
}

func TestReportsHoldNineKeys(t *testing.T) {
	reports := Packetize(records(26))
	require.Len(t, reports, 3)
	assert.Len(t, reports[0], 1+9*KeyRecordSize)
	assert.Len(t, reports[1], 1+9*KeyRecordSize)
	assert.Len(t, reports[2], 1+8*KeyRecordSize)
	for _, r := range reports {
		assert.LessOrEqual(t, len(r), ReportSize)
	}
}

func TestExactMultipleDoesNotAddEmptyReport(t *testing.T) {
	reports := Packetize(records(18))
	require.Len(t, reports, 2)
	assert.Len(t, reports[1], ReportSize)
}

func TestOrdering(t *testing.T) {
	recs := records(12)
	frames := Frames(recs)
	require.Len(t, frames, 2)

	first := frames[0][2 : 2+KeyRecordSize]
	assert.Equal(t, []byte{0, 0, 0, 1, 0, 10, 0}, first)

	// last key ends the final report
	last := recs[11]
	tail := frames[1][2+2*KeyRecordSize : 2+3*KeyRecordSize]
	assert.Equal(t, []byte{last.Color.R, last.Color.G, last.Color.B, 0, last.Speed, 10, last.Direction}, tail)
	assert.Equal(t, make([]byte, FrameSize-(2+3*KeyRecordSize)), frames[1][2+3*KeyRecordSize:])
}

func TestSingleKeyAndEmpty(t *testing.T) {
	frames := Frames(records(1))
	require.Len(t, frames, 1)
	assert.Equal(t, TypeLighting, frames[0][1])

	assert.Empty(t, Frames(nil))
}

func TestFramePanicsOnOversizedReport(t *testing.T) {
	assert.Panics(t, func() { Frame(make([]byte, ReportSize+1)) })
}

func TestDecoderRoundTrip(t *testing.T) {
	for _, n := range []int{1, 9, 10, 26, 27} {
		recs := records(n)
		d := NewDecoder(n)

		var got []KeyRecord
		frames := Frames(recs)
		for i, f := range frames {
			out, err := d.Feed(f)
			require.NoError(t, err)
			if i < len(frames)-1 {
				assert.Nil(t, out, "n=%d frame=%d", n, i)
			}
			got = out
		}
		assert.Equal(t, recs, got, "n=%d", n)
	}
}

func TestDecoderRejectsBadFrames(t *testing.T) {
	d := NewDecoder(3)

	_, err := d.Feed(make([]byte, 64))
	assert.ErrorIs(t, err, ErrFrameSize)

	bad := make([]byte, FrameSize)
	bad[0] = 2
	_, err = d.Feed(bad)
	assert.ErrorIs(t, err, ErrFramePrefix)

	bad[0] = 0
	bad[1] = 7
	_, err = d.Feed(bad)
	assert.ErrorIs(t, err, ErrReportType)
}

func TestDecoderReset(t *testing.T) {
	d := NewDecoder(10)
	frames := Frames(records(10))

	out, err := d.Feed(frames[0])
	require.NoError(t, err)
	assert.Nil(t, out)
	d.Reset()

	out, err = d.Feed(frames[0])
	require.NoError(t, err)
	assert.Nil(t, out)
	out, err = d.Feed(frames[1])
	require.NoError(t, err)
	assert.Len(t, out, 10)
}
