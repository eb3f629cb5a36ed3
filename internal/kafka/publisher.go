package kafkaclient

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher writes events to Kafka; the event subject is used as the topic.
type Publisher struct {
	w *kafka.Writer
}

func NewPublisher(brokers []string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{w: w}, nil
}

// Publish sends payload to the topic named by subject. The subject doubles as
// the message key so events of one kind keep their order.
func (p *Publisher) Publish(ctx context.Context, subject string, payload []byte) error {
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic: subject,
		Key:   []byte(subject),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

func (p *Publisher) Close() error {
	return p.w.Close()
}
