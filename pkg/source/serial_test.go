package source

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mangue-baja/telemetry-service-go/pkg/packet"
)

func TestFrameScanner_FindsFrameAfterGarbage(t *testing.T) {
	frame := []byte{1, 2, 3, 4, 5}
	stream := append([]byte{0x00, 0xFF, 0xAA}, packet.StartMarker...)
	stream = append(stream, frame...)

	fs := newFrameScanner(bytes.NewReader(stream), packet.StartMarker, len(frame))
	got, err := fs.next()
	assert.NoError(t, err)
	assert.Equal(t, frame, got)

	_, err = fs.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameScanner_SlidingWindowMatch(t *testing.T) {
	// a stray 0xAA before the marker must not break detection
	frame := []byte{9, 8, 7}
	stream := []byte{0xAA}
	stream = append(stream, packet.StartMarker...)
	stream = append(stream, frame...)

	fs := newFrameScanner(bytes.NewReader(stream), packet.StartMarker, len(frame))
	got, err := fs.next()
	assert.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestFrameScanner_ShortFrameDiscarded(t *testing.T) {
	stream := append([]byte{}, packet.StartMarker...)
	stream = append(stream, 1, 2) // frame truncated

	fs := newFrameScanner(bytes.NewReader(stream), packet.StartMarker, 5)
	got, err := fs.next()
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestFrameScanner_ConsecutiveFrames(t *testing.T) {
	frameA := []byte{1, 1, 1}
	frameB := []byte{2, 2, 2}
	stream := append([]byte{}, packet.StartMarker...)
	stream = append(stream, frameA...)
	stream = append(stream, packet.StartMarker...)
	stream = append(stream, frameB...)

	fs := newFrameScanner(bytes.NewReader(stream), packet.StartMarker, 3)
	got, err := fs.next()
	assert.NoError(t, err)
	assert.Equal(t, frameA, got)
	got, err = fs.next()
	assert.NoError(t, err)
	assert.Equal(t, frameB, got)
}
