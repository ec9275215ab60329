package packet

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Layout describes the binary shape of a telemetry packet. It is built from
// a compact format string so the packet definition lives in configuration:
// an optional byte-order prefix ('<' little endian, '>' big endian, little
// is the default) followed by one code per field. Spaces are ignored.
//
// Supported codes (struct-style):
//
//	b/B  int8/uint8    h/H  int16/uint16
//	i/I  int32/uint32  q/Q  int64/uint64
//	f    float32       d    float64
type Layout struct {
	order binary.ByteOrder
	codes []byte
	size  int
}

var codeSizes = map[byte]int{
	'b': 1, 'B': 1,
	'h': 2, 'H': 2,
	'i': 4, 'I': 4,
	'q': 8, 'Q': 8,
	'f': 4, 'd': 8,
}

func ParseLayout(format string) (*Layout, error) {
	format = strings.ReplaceAll(format, " ", "")
	if format == "" {
		return nil, fmt.Errorf("empty layout format")
	}
	var order binary.ByteOrder = binary.LittleEndian
	switch format[0] {
	case '<':
		format = format[1:]
	case '>':
		order = binary.BigEndian
		format = format[1:]
	}
	l := &Layout{order: order, codes: make([]byte, 0, len(format))}
	for i := 0; i < len(format); i++ {
		c := format[i]
		sz, ok := codeSizes[c]
		if !ok {
			return nil, fmt.Errorf("layout: unsupported field code %q at position %d", c, i)
		}
		l.codes = append(l.codes, c)
		l.size += sz
	}
	return l, nil
}

// Size returns the exact number of payload bytes the layout describes.
func (l *Layout) Size() int { return l.size }

// NumFields returns the number of fields the layout describes.
func (l *Layout) NumFields() int { return len(l.codes) }

// Unpack extracts the raw field values in declaration order. Integer fields
// are widened to float64 (every supported integer fits a float64 mantissa
// except extreme q/Q values, which the telemetry packet does not use).
// The payload length must match Size exactly.
func (l *Layout) Unpack(payload []byte) ([]float64, error) {
	if len(payload) != l.size {
		return nil, &SizeMismatchError{Expected: l.size, Actual: len(payload)}
	}
	vals := make([]float64, len(l.codes))
	off := 0
	for i, c := range l.codes {
		switch c {
		case 'b':
			vals[i] = float64(int8(payload[off]))
		case 'B':
			vals[i] = float64(payload[off])
		case 'h':
			vals[i] = float64(int16(l.order.Uint16(payload[off:])))
		case 'H':
			vals[i] = float64(l.order.Uint16(payload[off:]))
		case 'i':
			vals[i] = float64(int32(l.order.Uint32(payload[off:])))
		case 'I':
			vals[i] = float64(l.order.Uint32(payload[off:]))
		case 'q':
			vals[i] = float64(int64(l.order.Uint64(payload[off:])))
		case 'Q':
			vals[i] = float64(l.order.Uint64(payload[off:]))
		case 'f':
			vals[i] = float64(math.Float32frombits(l.order.Uint32(payload[off:])))
		case 'd':
			vals[i] = math.Float64frombits(l.order.Uint64(payload[off:]))
		}
		off += codeSizes[c]
	}
	return vals, nil
}

// Pack is the inverse of Unpack; used by the simulator and by tests to build
// wire frames. Values for integer fields are rounded to the nearest integer.
func (l *Layout) Pack(vals []float64) ([]byte, error) {
	if len(vals) != len(l.codes) {
		return nil, fmt.Errorf("layout: got %d values, layout has %d fields",
			len(vals), len(l.codes))
	}
	buf := make([]byte, l.size)
	off := 0
	for i, c := range l.codes {
		v := vals[i]
		switch c {
		case 'b', 'B':
			buf[off] = byte(int64(math.Round(v)))
		case 'h', 'H':
			l.order.PutUint16(buf[off:], uint16(int64(math.Round(v))))
		case 'i', 'I':
			l.order.PutUint32(buf[off:], uint32(int64(math.Round(v))))
		case 'q', 'Q':
			l.order.PutUint64(buf[off:], uint64(int64(math.Round(v))))
		case 'f':
			l.order.PutUint32(buf[off:], math.Float32bits(float32(v)))
		case 'd':
			l.order.PutUint64(buf[off:], math.Float64bits(v))
		}
		off += codeSizes[c]
	}
	return buf, nil
}
