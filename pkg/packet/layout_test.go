package packet

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestParseLayout(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		wantSize   int
		wantFields int
		wantErr    bool
	}{
		{
			name:       "default telemetry format",
			format:     DefaultFormat,
			wantSize:   53,
			wantFields: 19,
		},
		{
			name:       "spaces are ignored",
			format:     "< h h   H ",
			wantSize:   6,
			wantFields: 3,
		},
		{
			name:       "big endian prefix",
			format:     ">If",
			wantSize:   8,
			wantFields: 2,
		},
		{
			name:       "no prefix defaults to little endian",
			format:     "Bd",
			wantSize:   9,
			wantFields: 2,
		},
		{
			name:    "unsupported code",
			format:  "<hxH",
			wantErr: true,
		},
		{
			name:    "empty format",
			format:  "",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := ParseLayout(tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantSize, l.Size())
			assert.Equal(t, tt.wantFields, l.NumFields())
		})
	}
}

func TestLayout_PackUnpackRoundTrip(t *testing.T) {
	l, err := ParseLayout(DefaultFormat)
	assert.NoError(t, err)

	vals := []float64{
		12.6, 87, 78.5, 12, 90, 42,
		100, -200, 16400,
		10, -20, 30,
		150, -75, 3500, 1,
		-8.05428, -34.8813, 123456,
	}
	buf, err := l.Pack(vals)
	assert.NoError(t, err)
	assert.Len(t, buf, l.Size())

	got, err := l.Unpack(buf)
	assert.NoError(t, err)
	// float32 fields lose precision on the wire
	if diff := cmp.Diff(vals, got, cmpFloat32Tolerance()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func cmpFloat32Tolerance() cmp.Option {
	return cmp.Comparer(func(a, b float64) bool {
		d := a - b
		if d < 0 {
			d = -d
		}
		return d < 1e-4
	})
}

func TestLayout_UnpackSizeMismatch(t *testing.T) {
	l, err := ParseLayout(DefaultFormat)
	assert.NoError(t, err)

	_, err = l.Unpack(make([]byte, 10))
	var sizeErr *SizeMismatchError
	assert.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, 53, sizeErr.Expected)
	assert.Equal(t, 10, sizeErr.Actual)
}

func TestLayout_PackWrongFieldCount(t *testing.T) {
	l, err := ParseLayout("<hH")
	assert.NoError(t, err)
	_, err = l.Pack([]float64{1, 2, 3})
	assert.Error(t, err)
}

func TestLayout_SignedIntegers(t *testing.T) {
	l, err := ParseLayout("<bhi")
	assert.NoError(t, err)
	buf, err := l.Pack([]float64{-1, -32768, -2147483648})
	assert.NoError(t, err)
	got, err := l.Unpack(buf)
	assert.NoError(t, err)
	assert.Equal(t, []float64{-1, -32768, -2147483648}, got)
}
