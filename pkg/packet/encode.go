package packet

import "github.com/mangue-baja/telemetry-service-go/pkg/model"

// RawValues is the inverse of the Decode field mapping: it turns a scaled
// sample back into the raw field values of the canonical layout order.
// Used by the frame simulator to produce wire-identical packets.
func RawValues(s *model.TelemetrySample) []float64 {
	return []float64{
		s.Volt,
		s.SOC,
		s.CVTTemp,
		s.Current,
		s.MotorTemp,
		s.Speed,
		s.AccX / accelScale,
		s.AccY / accelScale,
		s.AccZ / accelScale,
		s.DpsX / gyroScale,
		s.DpsY / gyroScale,
		s.DpsZ / gyroScale,
		s.Roll,
		s.Pitch,
		s.RPM,
		float64(s.Flags),
		s.Latitude,
		s.Longitude,
		float64(s.Timestamp),
	}
}
