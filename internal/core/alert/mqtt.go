package alert

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gowvp/sentinel/internal/conf"
)

// MQTTSender 发布告警到 MQTT 主题，JSON 格式
type MQTTSender struct {
	cfg conf.Mqtt
}

func NewMQTTSender(cfg conf.Mqtt) *MQTTSender {
	return &MQTTSender{cfg: cfg}
}

func (s *MQTTSender) Name() string { return "mqtt" }

func (s *MQTTSender) Send(ctx context.Context, a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}

	opts := mqtt.NewClientOptions().AddBroker(fmt.Sprintf("tcp://%s:%d", s.cfg.Host, s.cfg.Port))
	if s.cfg.User != "" && s.cfg.Pass != "" {
		opts.SetUsername(s.cfg.User)
		opts.SetPassword(s.cfg.Pass)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", token.Error())
	}
	defer client.Disconnect(250)

	token := client.Publish(s.cfg.Topic, 0, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to MQTT: %w", token.Error())
	}
	return nil
}
