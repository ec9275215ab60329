package history

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mangue-baja/telemetry-service-go/pkg/model"
)

func sampleWithSpeed(speed float64) model.EnrichedSample {
	return model.EnrichedSample{
		TelemetrySample: model.TelemetrySample{Speed: speed},
	}
}

func TestRingBuffer_RecentNewestFirst(t *testing.T) {
	rb := NewRingBuffer(5)
	for i := 1; i <= 3; i++ {
		rb.Push(sampleWithSpeed(float64(i)))
	}
	assert.Equal(t, 3, rb.Size())

	got := rb.Recent(2)
	assert.Len(t, got, 2)
	assert.Equal(t, 3.0, got[0].Speed)
	assert.Equal(t, 2.0, got[1].Speed)

	// asking for more than stored returns what is there
	got = rb.Recent(10)
	assert.Len(t, got, 3)
}

func TestRingBuffer_OverwritesOldest(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 1; i <= 5; i++ {
		rb.Push(sampleWithSpeed(float64(i)))
	}
	assert.Equal(t, 3, rb.Size())

	got := rb.Recent(3)
	assert.Equal(t, 5.0, got[0].Speed)
	assert.Equal(t, 4.0, got[1].Speed)
	assert.Equal(t, 3.0, got[2].Speed)
}

func TestRingBuffer_LatestWithFix(t *testing.T) {
	rb := NewRingBuffer(5)
	assert.Nil(t, rb.LatestWithFix())

	withFix := sampleWithSpeed(10)
	withFix.Latitude = -8.05428
	withFix.Longitude = -34.8813
	rb.Push(withFix)
	rb.Push(sampleWithSpeed(20)) // no fix

	got := rb.LatestWithFix()
	assert.NotNil(t, got)
	assert.Equal(t, 10.0, got.Speed)
	assert.Equal(t, -8.05428, got.Latitude)
}

func TestRingBuffer_CapacityClamped(t *testing.T) {
	assert.Equal(t, MaxWindow, NewRingBuffer(0).Capacity())
	assert.Equal(t, MaxWindow, NewRingBuffer(10000).Capacity())
	assert.Equal(t, 10, NewRingBuffer(10).Capacity())
}
