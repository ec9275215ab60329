package race

import (
	"math"
	"sync"
	"time"

	"github.com/mangue-baja/telemetry-service-go/log"
	"github.com/mangue-baja/telemetry-service-go/pkg/model"
)

const (
	earthRadiusM = 6371000.0
	// a fix inside this radius around the start/finish point counts as a crossing
	captureRadiusM = 10.0
	// crossings within this window after a lap start are the same slow pass
	minLapDuration = 10000.0 // ms
)

// Processor enriches decoded samples with lap and distance data. Lap state
// lives for the duration of one run and is owned by the pipeline goroutine;
// only the start/finish reference can also be set from the command endpoint,
// hence the mutex around it.
type Processor struct {
	sfLine       *[2]float64 // lat, lon
	sfMutex      sync.Mutex
	lapStartTime float64 // ms, 0 = not initialized
	bestLap      float64 // ms, 0 = unset
	lastLap      float64 // ms
	lapCount     int
	lastPos      *[2]float64
	totalDist    float64 // m
	lapDist      float64 // m

	now func() time.Time
	l   *log.Logger
}

type Option func(*Processor)

func WithLogger(l *log.Logger) Option {
	return func(p *Processor) { p.l = l }
}

// WithClock replaces the wall clock used when a sample carries no usable
// timestamp. Tests use this for determinism.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

func NewProcessor(opts ...Option) *Processor {
	ret := &Processor{
		now: time.Now,
		l:   log.Default().Named("race"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// SetReference defines the start/finish point. Idempotent, overwrites any
// prior value.
func (p *Processor) SetReference(lat, lon float64) {
	p.sfMutex.Lock()
	p.sfLine = &[2]float64{lat, lon}
	p.sfMutex.Unlock()
	p.l.Info("start/finish reference set",
		log.Float64("lat", lat), log.Float64("lon", lon))
}

func (p *Processor) reference() *[2]float64 {
	p.sfMutex.Lock()
	defer p.sfMutex.Unlock()
	return p.sfLine
}

// Process recomputes the race data for one sample. Samples without a GPS
// fix are passed through unenriched.
func (p *Processor) Process(sample *model.TelemetrySample) *model.EnrichedSample {
	ret := &model.EnrichedSample{TelemetrySample: *sample}
	if !sample.HasFix() {
		return ret
	}

	now := p.sampleTime(sample)
	if p.lapStartTime == 0 {
		p.lapStartTime = now
	}

	if sf := p.reference(); sf != nil {
		dist := haversine(sample.Latitude, sample.Longitude, sf[0], sf[1])
		if dist < captureRadiusM && now-p.lapStartTime > minLapDuration {
			p.completeLap(now)
		}
		ret.SfLat = &sf[0]
		ret.SfLon = &sf[1]
	}

	// Distance is accumulated from successive fixes, not integrated over a
	// denser path. At GPS sampling rates the error is acceptable; keep it
	// this way, the recorded numbers depend on it.
	if p.lastPos != nil {
		delta := haversine(sample.Latitude, sample.Longitude, p.lastPos[0], p.lastPos[1])
		p.totalDist += delta
		p.lapDist += delta
	}
	p.lastPos = &[2]float64{sample.Latitude, sample.Longitude}

	ret.LapCount = p.lapCount
	ret.CurrentLapTime = now - p.lapStartTime
	ret.BestLapTime = p.bestLap
	ret.LastLapTime = p.lastLap
	ret.TotalDistance = p.totalDist
	ret.LapDistance = p.lapDist
	return ret
}

func (p *Processor) completeLap(now float64) {
	lapTime := now - p.lapStartTime
	p.lapCount++
	p.lastLap = lapTime
	p.lapDist = 0
	if p.bestLap == 0 || lapTime < p.bestLap {
		p.bestLap = lapTime
		p.l.Info("new best lap", log.Float64("lapTimeMs", lapTime))
	}
	p.lapStartTime = now
	p.l.Info("lap completed",
		log.Int("lap", p.lapCount), log.Float64("lapTimeMs", lapTime))
}

// sampleTime returns the sample time in epoch milliseconds. The device
// timestamp is used when present, otherwise the wall clock (the GPS module
// reports 0 until it has synchronized).
func (p *Processor) sampleTime(sample *model.TelemetrySample) float64 {
	if sample.Timestamp != 0 {
		return float64(sample.Timestamp)
	}
	return float64(p.now().UnixMilli())
}

// haversine returns the great-circle distance in meters.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}
