package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/xsens_computer/internal/config"
	"github.com/relabs-tech/xsens_computer/internal/imu"
)

// FormatHeading renders one console line for a heading message.
func FormatHeading(h imu.Heading) string {
	cal := "uncal"
	if h.Calibrated {
		cal = "cal"
	}
	line := fmt.Sprintf("[HEAD] PITCH=%7.2f  ROLL=%7.2f  YAW=%7.2f  (%s, %s, %s)  msgs=%d bad=%d",
		h.Pitch, h.Roll, h.Yaw, h.Axes, h.Range, cal,
		h.Stats.Messages, h.Stats.ChecksumErrors+h.Stats.LengthErrors+h.Stats.FieldErrors)
	if h.Error != "" {
		line += "  ERROR: " + h.Error
	}
	return line
}

// consoleHandler prints heading payloads to out.
func consoleHandler(out io.Writer) func([]byte) error {
	return func(payload []byte) error {
		var h imu.Heading
		if err := json.Unmarshal(payload, &h); err != nil {
			return err
		}
		_, err := fmt.Fprintln(out, FormatHeading(h))
		return err
	}
}

// RunConsoleMQTT prints every heading update to out until ctx ends.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.SugaredLogger) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	logger.Infof("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeJSON(client, cfg.TopicHeading, logger, consoleHandler(out)); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}
