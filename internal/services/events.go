package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// RideEvent is the lifecycle record published on every committed
// transition. Publication is best-effort and never blocks a transition.
type RideEvent struct {
	RideID    string `json:"rideId"`
	Event     string `json:"event"` // requested, accepted, started, completed, cancelled, rated
	Status    string `json:"status"`
	ActorID   string `json:"actorId"`
	Timestamp int64  `json:"timestamp"`
}

type RideEventPublisher interface {
	PublishRideEvent(ctx context.Context, ev RideEvent) error
	Close() error
}

// KafkaRideEvents writes lifecycle events keyed by ride id so all
// events for one ride land on the same partition in order.
type KafkaRideEvents struct {
	writer *kafka.Writer
}

func NewKafkaRideEvents(brokers []string, topic string) *KafkaRideEvents {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaRideEvents{writer: w}
}

func (k *KafkaRideEvents) PublishRideEvent(ctx context.Context, ev RideEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.RideID), Value: b})
}

func (k *KafkaRideEvents) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
