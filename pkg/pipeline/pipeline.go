// Package pipeline ties acquisition, decoding, enrichment, persistence and
// fan-out into the single continuously running loop of the server.
package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/mangue-baja/telemetry-service-go/log"
	"github.com/mangue-baja/telemetry-service-go/pkg/model"
	"github.com/mangue-baja/telemetry-service-go/pkg/packet"
	"github.com/mangue-baja/telemetry-service-go/pkg/processing/race"
	"github.com/mangue-baja/telemetry-service-go/pkg/source"
	"github.com/mangue-baja/telemetry-service-go/pkg/utils/broadcast"
	"github.com/mangue-baja/telemetry-service-go/pkg/utils/history"
)

// Store is the narrow persistence surface the loop writes to. A failing
// store never stops the loop; telemetry keeps flowing without it.
type Store interface {
	SaveSample(ctx context.Context, sessionID uuid.UUID, sample *model.EnrichedSample) error
}

type Pipeline struct {
	src       source.Source
	layout    *packet.Layout
	proc      *race.Processor
	store     Store
	sessionID uuid.UUID
	hist      *history.RingBuffer
	pace      time.Duration

	out    chan []byte
	bcst   broadcast.BroadcastServer[[]byte]
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	l      *log.Logger
}

type Option func(*Pipeline)

// WithStore attaches the persistence gateway. Without it samples are only
// broadcast (interface simulation mode).
func WithStore(store Store, sessionID uuid.UUID) Option {
	return func(p *Pipeline) {
		p.store = store
		p.sessionID = sessionID
	}
}

func WithPace(pace time.Duration) Option {
	return func(p *Pipeline) { p.pace = pace }
}

func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.l = l }
}

func NewPipeline(
	src source.Source,
	layout *packet.Layout,
	proc *race.Processor,
	hist *history.RingBuffer,
	opts ...Option,
) *Pipeline {
	ret := &Pipeline{
		src:    src,
		layout: layout,
		proc:   proc,
		hist:   hist,
		pace:   500 * time.Millisecond,
		out:    make(chan []byte, 8),
		done:   make(chan struct{}),
		l:      log.Default().Named("pipeline"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.bcst = broadcast.NewBroadcastServer("telemetry", ret.out)
	return ret
}

// Broadcaster exposes the fan-out; the websocket hub and the republisher
// subscribe here.
func (p *Pipeline) Broadcaster() broadcast.BroadcastServer[[]byte] { return p.bcst }

// Start launches the source adapter and the driver loop. A serial open
// failure surfaces here and nothing is left running.
func (p *Pipeline) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	if err := p.src.Start(runCtx); err != nil {
		cancel()
		close(p.done)
		return err
	}
	go p.run(runCtx)
	return nil
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)
	for {
		if ctx.Err() != nil {
			return
		}
		payload, err := p.src.NextPayload(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.l.Error("source delivered no payload", log.ErrorField(err))
			continue
		}
		sample := payload.Sample
		if sample == nil {
			sample, err = packet.Decode(payload.Raw, p.layout)
			if err != nil {
				p.l.Warn("discarding invalid frame", log.ErrorField(err))
				p.sleep(ctx)
				continue
			}
		}
		enriched := p.proc.Process(sample)
		p.persist(ctx, enriched)
		p.hist.Push(*enriched)
		p.publish(enriched)
		p.sleep(ctx)
	}
}

func (p *Pipeline) persist(ctx context.Context, enriched *model.EnrichedSample) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveSample(ctx, p.sessionID, enriched); err != nil {
		// storage being down must not interrupt the live feed
		p.l.Error("could not persist sample", log.ErrorField(err))
	}
}

func (p *Pipeline) publish(enriched *model.EnrichedSample) {
	msg, err := json.Marshal(enriched)
	if err != nil {
		p.l.Error("could not serialize sample", log.ErrorField(err))
		return
	}
	select {
	case p.out <- msg:
	default:
		p.l.Debug("broadcaster busy, dropping message")
	}
}

// sleep paces the loop independently of the source arrival rate.
func (p *Pipeline) sleep(ctx context.Context) {
	if p.pace <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(p.pace):
	}
}

// Stop cancels the loop, stops the adapter and closes the fan-out. Safe to
// call more than once.
func (p *Pipeline) Stop() {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
			<-p.done
		}
		p.src.Stop()
		p.bcst.Close()
	})
}
