package repository

import (
	"context"

	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	pkgkafka "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/kafka"
)

// KafkaPublisher implements Publisher for one Kafka topic.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates a Kafka publisher bound to a topic.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) domrepo.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload interface{}) error {
	return p.producer.Publish(ctx, p.topic, []byte(key), payload)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
