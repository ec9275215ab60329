package broadcast

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mangue-baja/telemetry-service-go/log"
)

// how long one listener may stall before the message is skipped for it
const listenerSendTimeout = 50 * time.Millisecond

// BroadcastServer fans every item read from its source channel out to all
// current subscribers. The subscriber set is a snapshot per message: a
// subscriber added mid-delivery receives the next message. A stalled or dead
// subscriber only loses its own messages, delivery to the others continues.
type BroadcastServer[T any] interface {
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

type broadcastServer[T any] struct {
	name           string
	source         <-chan T
	listeners      []chan T
	addListener    chan chan T
	removeListener chan (<-chan T)
	ctx            context.Context
	cancel         context.CancelFunc
	// counters are read by the metrics callbacks while the serve
	// goroutine writes them
	numRcv       atomic.Int64
	numSnd       atomic.Int64
	numSkip      atomic.Int64
	numListeners atomic.Int64
	l            *log.Logger
}

type Option[T any] func(*broadcastServer[T])

func WithLogger[T any](l *log.Logger) Option[T] {
	return func(b *broadcastServer[T]) { b.l = l }
}

func NewBroadcastServer[T any](
	name string,
	source <-chan T,
	opts ...Option[T],
) BroadcastServer[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &broadcastServer[T]{
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		l:              log.Default().Named("broadcast"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.setupMetrics()
	go b.serve()
	return b
}

func (b *broadcastServer[T]) Subscribe() <-chan T {
	ch := make(chan T)
	select {
	case b.addListener <- ch:
	case <-b.ctx.Done():
		close(ch)
	}
	return ch
}

func (b *broadcastServer[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.ctx.Done():
	}
}

func (b *broadcastServer[T]) Close() {
	b.l.Info("closing broadcast server",
		log.String("name", b.name),
		log.Int64("rcv", b.numRcv.Load()),
		log.Int64("snd", b.numSnd.Load()),
		log.Int64("skip", b.numSkip.Load()))
	b.cancel()
}

func (b *broadcastServer[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter(fmt.Sprintf("mbtel.broadcast.%s", b.name))
	register := func(metricName, desc string, valueProvider func() int64) {
		if _, err := meter.Int64ObservableGauge(
			metricName,
			metric.WithDescription(desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(valueProvider(),
					metric.WithAttributes(attribute.String("name", b.name)))
				return nil
			})); err != nil {
			b.l.Error("failed to register metric",
				log.String("metric", metricName), log.ErrorField(err))
		}
	}
	register("mbtel.broadcast.rcv", "Number of received messages", b.numRcv.Load)
	register("mbtel.broadcast.snd", "Number of sent messages", b.numSnd.Load)
	register("mbtel.broadcast.skip", "Number of skipped messages", b.numSkip.Load)
	register("mbtel.broadcast.listener", "Number of listeners", b.numListeners.Load)
}

func (b *broadcastServer[T]) serve() {
	defer func() {
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
		b.numListeners.Store(0)
	}()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ch := <-b.addListener:
			b.listeners = append(b.listeners, ch)
			b.numListeners.Add(1)
		case ch := <-b.removeListener:
			for i, listener := range b.listeners {
				if listener == ch {
					b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
					b.numListeners.Add(-1)
					close(listener)
					break
				}
			}
		case msg, ok := <-b.source:
			if !ok {
				return
			}
			b.numRcv.Add(1)
			for _, listener := range b.listeners {
				select {
				case listener <- msg:
					b.numSnd.Add(1)
				case <-time.After(listenerSendTimeout):
					// listener not keeping up; its transport lifecycle will
					// unsubscribe it eventually
					b.numSkip.Add(1)
				}
			}
		}
	}
}
