package source

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/mangue-baja/telemetry-service-go/pkg/model"
)

// DefaultSyntheticInterval is the generator tick, 20 samples per second.
const DefaultSyntheticInterval = 50 * time.Millisecond

// Generator produces plausible telemetry driven entirely by a monotonically
// increasing counter: every field is a sinusoid or modular function of the
// counter, so a given counter value always yields the identical sample.
// That reproducibility is what the end-to-end tests rely on.
type Generator struct {
	interval time.Duration
	counter  uint64
}

func NewGenerator(interval time.Duration) *Generator {
	if interval <= 0 {
		interval = DefaultSyntheticInterval
	}
	return &Generator{interval: interval}
}

// base coordinates: Recife, home track of the team
const (
	baseLat = -8.05428
	baseLon = -34.8813
)

// Generated timestamps start at a fixed nonzero base. Zero is reserved for
// "GPS not synchronized yet", and the whole run has to share one time base
// with the lap analytics; a wall-clock base would break reproducibility.
const baseTimestampMs = 1_000_000

func (g *Generator) speedAt(t float64) float64 {
	return math.Max(0, math.Min(60, 30+15*math.Sin(t/10)))
}

// SampleAt computes the sample for an arbitrary counter value.
func (g *Generator) SampleAt(counter uint64) *model.TelemetrySample {
	t := float64(counter) * g.interval.Seconds()
	vel := g.speedAt(t)
	prev := vel
	if counter > 0 {
		prev = g.speedAt(float64(counter-1) * g.interval.Seconds())
	}
	return &model.TelemetrySample{
		AccX:      (vel - prev) / g.interval.Seconds() / 12.96, // km/h/s -> g, roughly
		AccY:      0.2 * math.Sin(t*1.7),
		AccZ:      1.0 + 0.02*math.Sin(t*2.3),
		DpsX:      math.Sin(t * 1.1),
		DpsY:      math.Sin(t * 1.3),
		DpsZ:      math.Sin(t * 0.7),
		Roll:      5 * math.Sin(t/3),
		Pitch:     5 * math.Cos(t/4),
		RPM:       vel*120 + 200*math.Sin(t*3),
		Speed:     vel,
		MotorTemp: math.Min(110, 60+t*0.3),
		SOC:       math.Max(0, 100-t*0.03),
		CVTTemp:   math.Min(95, 50+t*0.25),
		Volt:      13.0 - t*0.001,
		Current:   225 + 75*math.Sin(t/5),
		Flags:     uint8(counter % 2),
		Latitude:  baseLat + t*0.00002,
		Longitude: baseLon + math.Sin(t/20)*0.0001,
		Timestamp: baseTimestampMs + uint32(counter)*uint32(g.interval.Milliseconds()),
	}
}

// Next returns the sample for the current counter value and advances it.
func (g *Generator) Next() *model.TelemetrySample {
	s := g.SampleAt(g.counter)
	g.counter++
	return s
}

// SyntheticSource emits one generated sample per tick without any external
// connection. The counter is owned by the adapter's own goroutine.
type SyntheticSource struct {
	gen      *Generator
	interval time.Duration

	out      chan *model.TelemetrySample
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func NewSyntheticSource(interval time.Duration) *SyntheticSource {
	if interval <= 0 {
		interval = DefaultSyntheticInterval
	}
	return &SyntheticSource{
		gen:      NewGenerator(interval),
		interval: interval,
		out:      make(chan *model.TelemetrySample, 1),
		done:     make(chan struct{}),
	}
}

func (s *SyntheticSource) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(runCtx)
	return nil
}

func (s *SyntheticSource) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample := s.gen.Next()
			select {
			case s.out <- sample:
			default:
				// consumer lags: drop the pending tick, freshness wins
				select {
				case <-s.out:
				default:
				}
				s.out <- sample
			}
		}
	}
}

func (s *SyntheticSource) NextPayload(ctx context.Context) (Payload, error) {
	select {
	case sample := <-s.out:
		return Payload{Sample: sample}, nil
	case <-ctx.Done():
		return Payload{}, ctx.Err()
	}
}

func (s *SyntheticSource) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
	})
}
