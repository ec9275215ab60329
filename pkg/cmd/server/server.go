package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/mangue-baja/telemetry-service-go/log"
	"github.com/mangue-baja/telemetry-service-go/pkg/config"
	"github.com/mangue-baja/telemetry-service-go/pkg/db/postgres"
	"github.com/mangue-baja/telemetry-service-go/pkg/model"
	"github.com/mangue-baja/telemetry-service-go/pkg/packet"
	"github.com/mangue-baja/telemetry-service-go/pkg/pipeline"
	"github.com/mangue-baja/telemetry-service-go/pkg/processing/race"
	"github.com/mangue-baja/telemetry-service-go/pkg/publish"
	"github.com/mangue-baja/telemetry-service-go/pkg/server/ws"
	"github.com/mangue-baja/telemetry-service-go/pkg/service"
	"github.com/mangue-baja/telemetry-service-go/pkg/source"
	"github.com/mangue-baja/telemetry-service-go/pkg/utils/history"
)

//nolint:funlen // flag definitions
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "starts the telemetry server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer()
		},
	}
	cmd.Flags().StringVar(&config.DataSource,
		"data-source",
		"synthetic",
		"telemetry source (serial, mqtt, synthetic)")
	cmd.Flags().StringVar(&config.SerialPort,
		"serial-port",
		"/dev/ttyUSB0",
		"serial device of the radio receiver")
	cmd.Flags().IntVar(&config.SerialBaud,
		"serial-baud",
		115200,
		"serial baud rate")
	cmd.Flags().StringVar(&config.MqttBroker,
		"mqtt-broker",
		"tcp://localhost:1883",
		"mqtt broker url")
	cmd.Flags().StringVar(&config.MqttUsername,
		"mqtt-username",
		"",
		"mqtt username")
	cmd.Flags().StringVar(&config.MqttPassword,
		"mqtt-password",
		"",
		"mqtt password")
	cmd.Flags().StringVar(&config.MqttTopic,
		"mqtt-topic",
		"/logging",
		"topic carrying the raw telemetry frames")
	cmd.Flags().StringVar(&config.PayloadLayout,
		"payload-layout",
		packet.DefaultFormat,
		"packet layout format string")
	cmd.Flags().StringVar(&config.BroadcastInterval,
		"broadcast-interval",
		"500ms",
		"pacing interval of the pipeline loop")
	cmd.Flags().StringVarP(&config.ListenAddr,
		"listen-addr",
		"a",
		"localhost:8000",
		"http/websocket listen address")
	cmd.Flags().IntVar(&config.HistorySize,
		"history-size",
		500,
		"number of enriched samples kept in memory")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"when set, enriched samples are republished to this NATS server")
	cmd.Flags().StringVar(&config.NatsSubject,
		"nats-subject",
		"telemetry.live",
		"subject for republished samples")
	cmd.Flags().StringVar(&config.SessionLabel,
		"session-label",
		"Default Session",
		"human label for the session created at startup")
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format")
	cmd.Flags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"zapfilter rules applied to named loggers")
	return cmd
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

func setupLogger() {
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			config.LogFilter,
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel),
			config.LogFilter,
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	log.ResetDefault(logger)
}

func buildSource(layout *packet.Layout) (source.Source, error) {
	switch config.DataSource {
	case "serial":
		return source.NewSerialSource(
			config.SerialPort, config.SerialBaud, layout.Size()), nil
	case "mqtt":
		return source.NewMqttSource(source.MqttConfig{
			Broker:   config.MqttBroker,
			Username: config.MqttUsername,
			Password: config.MqttPassword,
			Topic:    config.MqttTopic,
		}), nil
	case "synthetic":
		return source.NewSyntheticSource(source.DefaultSyntheticInterval), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", config.DataSource)
	}
}

//nolint:funlen // sequential wiring
func startServer() error {
	setupLogger()

	layout, err := packet.ParseLayout(config.PayloadLayout)
	if err != nil {
		return fmt.Errorf("invalid payload layout: %w", err)
	}
	pace, err := time.ParseDuration(config.BroadcastInterval)
	if err != nil {
		return fmt.Errorf("invalid broadcast interval: %w", err)
	}
	src, err := buildSource(layout)
	if err != nil {
		return err
	}

	log.Info("starting server",
		log.String("source", config.DataSource),
		log.String("layout", config.PayloadLayout),
		log.Int("packetSize", layout.Size()),
		log.Duration("pace", pace))

	var pool *pgxpool.Pool
	var sess *model.Session
	pipeOpts := []pipeline.Option{pipeline.WithPace(pace)}
	if config.DB != "" {
		pool = postgres.InitWithURL(config.DB, postgres.WithTracer(log.Default()))
		telemetryService := service.InitTelemetryService(pool)
		sess, err = telemetryService.StartSession(
			context.Background(), config.SessionLabel)
		if err != nil {
			return fmt.Errorf("could not start session: %w", err)
		}
		log.Info("session started",
			log.String("id", sess.ID.String()),
			log.String("label", sess.Label))
		pipeOpts = append(pipeOpts, pipeline.WithStore(telemetryService, sess.ID))
	} else {
		log.Warn("no database configured, samples will not be persisted")
	}

	proc := race.NewProcessor()
	hist := history.NewRingBuffer(config.HistorySize)
	pipe := pipeline.NewPipeline(src, layout, proc, hist, pipeOpts...)
	if err := pipe.Start(context.Background()); err != nil {
		return fmt.Errorf("could not start pipeline: %w", err)
	}

	wsOpts := []ws.Option{}
	if sess != nil {
		wsOpts = append(wsOpts, ws.WithSession(sess))
	}
	wsServer := ws.NewServer(config.ListenAddr, pipe.Broadcaster(), hist, proc, wsOpts...)
	wsServer.Start()

	var natsPub *publish.NatsPublisher
	if config.NatsURL != "" {
		natsPub, err = publish.NewNatsPublisher(
			config.NatsURL, config.NatsSubject, pipe.Broadcaster())
		if err != nil {
			log.Error("could not connect to NATS, continuing without republishing",
				log.ErrorField(err))
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	v := <-sigChan
	log.Debug("got signal", log.Any("signal", v))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", log.ErrorField(err))
	}
	if natsPub != nil {
		natsPub.Close()
	}
	pipe.Stop()
	if pool != nil {
		pool.Close()
	}
	log.Info("server terminated")
	return nil
}
