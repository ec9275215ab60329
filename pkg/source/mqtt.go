package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mangue-baja/telemetry-service-go/log"
	"github.com/mangue-baja/telemetry-service-go/pkg/relay"
)

// fixed delay between connect attempts
const mqttRetryDelay = 5 * time.Second

type MqttConfig struct {
	Broker   string // tcp://host:port or ssl://host:port
	Username string
	Password string
	Topic    string
}

// MqttSource subscribes to one fixed topic and relays every inbound payload.
// Connection failures are not fatal: the full connect-and-subscribe cycle is
// retried with a fixed backoff until the adapter is stopped. The relay keeps
// a single slot, so the pipeline always reads the most recent frame.
type MqttSource struct {
	cfg MqttConfig

	relay    *relay.Relay[[]byte]
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	l        *log.Logger
}

type MqttOption func(*MqttSource)

func WithMqttLogger(l *log.Logger) MqttOption {
	return func(m *MqttSource) { m.l = l }
}

func NewMqttSource(cfg MqttConfig, opts ...MqttOption) *MqttSource {
	ret := &MqttSource{
		cfg:   cfg,
		relay: relay.New[[]byte](1),
		done:  make(chan struct{}),
		l:     log.Default().Named("source.mqtt"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (m *MqttSource) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.run(runCtx)
	return nil
}

func (m *MqttSource) run(ctx context.Context) {
	defer close(m.done)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := m.connectAndListen(ctx); err != nil {
			m.l.Error("mqtt connection failed",
				log.String("broker", m.cfg.Broker), log.ErrorField(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(mqttRetryDelay):
		}
	}
}

// connectAndListen runs one full connect-subscribe cycle and blocks until
// the connection is lost or ctx is cancelled.
func (m *MqttSource) connectAndListen(ctx context.Context) error {
	lost := make(chan error, 1)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.Broker)
	opts.SetClientID(fmt.Sprintf("mbtel-%d", time.Now().UnixNano()))
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	// reconnects are driven by our own retry loop
	opts.SetAutoReconnect(false)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		select {
		case lost <- err:
		default:
		}
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return fmt.Errorf("connect to %s: timeout", m.cfg.Broker)
	}
	if token.Error() != nil {
		return fmt.Errorf("connect to %s: %w", m.cfg.Broker, token.Error())
	}
	defer client.Disconnect(250)

	sub := client.Subscribe(m.cfg.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		m.relay.Put(msg.Payload())
	})
	if !sub.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", m.cfg.Topic)
	}
	if sub.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", m.cfg.Topic, sub.Error())
	}
	m.l.Info("mqtt subscribed",
		log.String("broker", m.cfg.Broker), log.String("topic", m.cfg.Topic))

	select {
	case <-ctx.Done():
		return nil
	case err := <-lost:
		return fmt.Errorf("connection lost: %w", err)
	}
}

func (m *MqttSource) NextPayload(ctx context.Context) (Payload, error) {
	raw, err := m.relay.Get(ctx)
	if err != nil {
		return Payload{}, err
	}
	return Payload{Raw: raw}, nil
}

func (m *MqttSource) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel == nil {
			return // never started
		}
		m.cancel()
		<-m.done
	})
}
