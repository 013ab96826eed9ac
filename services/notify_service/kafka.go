package notify_service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/serisow/vibeveed/pipeline_type"
)

const KafkaNotifierName = "kafka"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes each finished run on a topic, keyed by run id.
type KafkaNotifier struct {
	writer messageWriter
}

func NewKafkaNotifier(broker, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (k *KafkaNotifier) Name() string {
	return KafkaNotifierName
}

func (k *KafkaNotifier) Notify(ctx context.Context, result *pipeline_type.ProcessingResult) error {
	value, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("error marshaling run: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(result.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(result.Status)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish run %s: %w", result.ID, err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
