package model

// TelemetrySample is one decoded packet with physical units applied.
// JSON names follow the dashboard contract.
type TelemetrySample struct {
	AccX      float64 `json:"accx"` // g
	AccY      float64 `json:"accy"`
	AccZ      float64 `json:"accz"`
	DpsX      float64 `json:"dpsx"` // deg/s
	DpsY      float64 `json:"dpsy"`
	DpsZ      float64 `json:"dpsz"`
	Roll      float64 `json:"roll"` // deg
	Pitch     float64 `json:"pitch"`
	RPM       float64 `json:"rpm"`
	Speed     float64 `json:"vel"`        // km/h
	MotorTemp float64 `json:"temp_motor"` // °C
	SOC       float64 `json:"soc"`        // %
	CVTTemp   float64 `json:"temp_cvt"`   // °C
	Volt      float64 `json:"volt"`       // V
	Current   float64 `json:"current"`    // A
	Flags     uint8   `json:"flags"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// raw device timestamp; the dashboard expects it as a string
	Timestamp uint32 `json:"timestamp,string"`
}

// HasFix reports whether the sample carries a usable GPS position.
// The packet always contains the lat/lon fields; an all-zero position is
// what the car sends before the GPS module has a fix.
func (s *TelemetrySample) HasFix() bool {
	return s.Latitude != 0 || s.Longitude != 0
}

// EnrichedSample is a TelemetrySample plus the race data computed by the
// analytics engine. Lap times are in milliseconds, distances in meters.
type EnrichedSample struct {
	TelemetrySample

	LapCount       int     `json:"lap_count"`
	CurrentLapTime float64 `json:"current_lap_time"`
	BestLapTime    float64 `json:"best_lap_time"` // 0 = no completed lap yet
	LastLapTime    float64 `json:"last_lap_time"`
	TotalDistance  float64 `json:"total_distance"`
	LapDistance    float64 `json:"lap_distance"`
	// start/finish reference, present once it has been set
	SfLat *float64 `json:"sf_lat,omitempty"`
	SfLon *float64 `json:"sf_lon,omitempty"`
}
