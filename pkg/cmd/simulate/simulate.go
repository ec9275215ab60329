package simulate

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"

	"github.com/mangue-baja/telemetry-service-go/log"
	"github.com/mangue-baja/telemetry-service-go/pkg/config"
	"github.com/mangue-baja/telemetry-service-go/pkg/packet"
	"github.com/mangue-baja/telemetry-service-go/pkg/source"
)

var (
	interval string
	count    int
)

// NewSimulateCmd publishes synthetic binary frames to the telemetry topic,
// replacing the car during bench tests of the full mqtt path.
func NewSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "publishes synthetic telemetry frames via MQTT",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startSimulator()
		},
	}
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
		"topic to publish the frames on")
	cmd.Flags().StringVar(&config.PayloadLayout,
		"payload-layout",
		packet.DefaultFormat,
		"packet layout format string")
	cmd.Flags().StringVar(&interval,
		"interval",
		"500ms",
		"delay between frames")
	cmd.Flags().IntVar(&count,
		"count",
		0,
		"number of frames to publish (0 = until interrupted)")
	return cmd
}

func startSimulator() error {
	layout, err := packet.ParseLayout(config.PayloadLayout)
	if err != nil {
		return fmt.Errorf("invalid payload layout: %w", err)
	}
	delay, err := time.ParseDuration(interval)
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.MqttBroker)
	opts.SetClientID(fmt.Sprintf("mbtel-sim-%d", time.Now().UnixNano()))
	if config.MqttUsername != "" {
		opts.SetUsername(config.MqttUsername)
		opts.SetPassword(config.MqttPassword)
	}
	opts.SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to %s: %w", config.MqttBroker, token.Error())
	}
	defer client.Disconnect(250)
	log.Info("simulator connected",
		log.String("broker", config.MqttBroker),
		log.String("topic", config.MqttTopic))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	gen := source.NewGenerator(delay)
	ticker := time.NewTicker(delay)
	defer ticker.Stop()
	sent := 0
	for {
		select {
		case <-sigChan:
			log.Info("simulator stopped", log.Int("framesSent", sent))
			return nil
		case <-ticker.C:
			frame, err := layout.Pack(packet.RawValues(gen.Next()))
			if err != nil {
				return fmt.Errorf("pack frame: %w", err)
			}
			if token := client.Publish(config.MqttTopic, 0, false, frame); token.Wait() &&
				token.Error() != nil {
				log.Warn("publish failed", log.ErrorField(token.Error()))
			}
			sent++
			if count > 0 && sent >= count {
				log.Info("simulator done", log.Int("framesSent", sent))
				return nil
			}
		}
	}
}
