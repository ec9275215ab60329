// Package publish republishes the live feed to an external message bus so
// other pit tools can consume it without touching the websocket server.
package publish

import (
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/mangue-baja/telemetry-service-go/log"
	"github.com/mangue-baja/telemetry-service-go/pkg/utils/broadcast"
)

type NatsPublisher struct {
	conn    *nats.Conn
	subject string
	bcst    broadcast.BroadcastServer[[]byte]
	sub     <-chan []byte
	done    chan struct{}
	once    sync.Once
	l       *log.Logger
}

type Option func(*NatsPublisher)

func WithLogger(l *log.Logger) Option {
	return func(n *NatsPublisher) { n.l = l }
}

// NewNatsPublisher connects to url and forwards every broadcast message to
// subject until Close is called.
func NewNatsPublisher(
	url, subject string,
	bcst broadcast.BroadcastServer[[]byte],
	opts ...Option,
) (*NatsPublisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	ret := &NatsPublisher{
		conn:    conn,
		subject: subject,
		bcst:    bcst,
		done:    make(chan struct{}),
		l:       log.Default().Named("nats"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.sub = bcst.Subscribe()
	go ret.forward()
	ret.l.Info("republishing live data",
		log.String("url", url), log.String("subject", subject))
	return ret, nil
}

func (n *NatsPublisher) forward() {
	defer close(n.done)
	for msg := range n.sub {
		if err := n.conn.Publish(n.subject, msg); err != nil {
			// the bus is best effort, the pipeline does not care
			n.l.Warn("publish failed", log.ErrorField(err))
		}
	}
}

func (n *NatsPublisher) Close() {
	n.once.Do(func() {
		n.bcst.CancelSubscription(n.sub)
		<-n.done
		n.conn.Close()
	})
}
