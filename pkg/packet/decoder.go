package packet

import (
	"fmt"

	"github.com/mangue-baja/telemetry-service-go/pkg/model"
)

// DefaultFormat matches the packet the car's CAN gateway currently sends.
// Any change to the CAN packet must be reflected here (or in the deployed
// configuration), never in the decoder.
const DefaultFormat = "<fBfBHHhhh hhh hhH BddI"

// StartMarker precedes every frame on the serial link.
var StartMarker = []byte{0xAA, 0xBB, 0xCC, 0xDD}

// conversion factors applied after integer extraction
const (
	accelScale = 0.061 / 1000.0 // LSM6 accelerometer raw -> g
	gyroScale  = 70.0 / 1000.0  // LSM6 gyroscope raw -> deg/s
)

// canonical field order of the telemetry packet
const numTelemetryFields = 19

// SizeMismatchError is returned when a payload does not have the exact byte
// count the layout describes. Such payloads are never partially decoded.
type SizeMismatchError struct {
	Expected int
	Actual   int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("payload size mismatch: got %d bytes, layout expects %d",
		e.Actual, e.Expected)
}

// Decode turns a raw payload into a physically scaled sample. It is pure:
// the result depends only on payload and layout, and it is safe to call
// concurrently from multiple sources.
func Decode(payload []byte, layout *Layout) (*model.TelemetrySample, error) {
	if layout.NumFields() != numTelemetryFields {
		return nil, fmt.Errorf("layout describes %d fields, telemetry packet has %d",
			layout.NumFields(), numTelemetryFields)
	}
	raw, err := layout.Unpack(payload)
	if err != nil {
		return nil, err
	}
	return &model.TelemetrySample{
		Volt:      raw[0],
		SOC:       raw[1],
		CVTTemp:   raw[2],
		Current:   raw[3],
		MotorTemp: raw[4],
		Speed:     raw[5],
		AccX:      raw[6] * accelScale,
		AccY:      raw[7] * accelScale,
		AccZ:      raw[8] * accelScale,
		DpsX:      raw[9] * gyroScale,
		DpsY:      raw[10] * gyroScale,
		DpsZ:      raw[11] * gyroScale,
		Roll:      raw[12],
		Pitch:     raw[13],
		RPM:       raw[14],
		Flags:     uint8(raw[15]),
		Latitude:  raw[16],
		Longitude: raw[17],
		Timestamp: uint32(raw[18]),
	}, nil
}
