package source

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_recorder/internal/gps"
	"github.com/relabs-tech/motion_recorder/internal/motion"
)

// MQTTMotion receives motion.Sample JSON published by the motion producer.
type MQTTMotion struct {
	client mqtt.Client
	topic  string
}

func NewMQTTMotion(client mqtt.Client, topic string) *MQTTMotion {
	return &MQTTMotion{client: client, topic: topic}
}

func (s *MQTTMotion) Subscribe(h MotionHandler) error {
	token := s.client.Subscribe(s.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		m, err := decodeMotion(msg.Payload())
		if err != nil {
			log.Printf("source: motion unmarshal error on %s: %v", msg.Topic(), err)
			return
		}
		h(m)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, token.Error())
	}
	log.Printf("source: subscribed to %s", s.topic)
	return nil
}

func (s *MQTTMotion) Unsubscribe() {
	unsubscribe(s.client, s.topic)
}

// MQTTPosition receives gps.Position JSON published by the GPS producer.
type MQTTPosition struct {
	client mqtt.Client
	topic  string
}

func NewMQTTPosition(client mqtt.Client, topic string) *MQTTPosition {
	return &MQTTPosition{client: client, topic: topic}
}

func (s *MQTTPosition) Subscribe(h PositionHandler, onErr ErrorHandler) error {
	token := s.client.Subscribe(s.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		p, err := decodePosition(msg.Payload())
		if err != nil {
			if onErr != nil {
				onErr(fmt.Errorf("position payload on %s: %w", msg.Topic(), err))
			}
			return
		}
		h(p)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, token.Error())
	}
	log.Printf("source: subscribed to %s", s.topic)
	return nil
}

func (s *MQTTPosition) Unsubscribe() {
	unsubscribe(s.client, s.topic)
}

func unsubscribe(client mqtt.Client, topic string) {
	if token := client.Unsubscribe(topic); token.Wait() && token.Error() != nil {
		log.Printf("source: unsubscribe %s error: %v", topic, token.Error())
		return
	}
	log.Printf("source: unsubscribed from %s", topic)
}

func decodeMotion(payload []byte) (motion.Sample, error) {
	var m motion.Sample
	if err := json.Unmarshal(payload, &m); err != nil {
		return motion.Sample{}, err
	}
	return m, nil
}

func decodePosition(payload []byte) (gps.Position, error) {
	var p gps.Position
	if err := json.Unmarshal(payload, &p); err != nil {
		return gps.Position{}, err
	}
	return p, nil
}
