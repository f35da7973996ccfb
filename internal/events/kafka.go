package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const defaultTopic = "mochifi.events"

// KafkaLog stores the notification log in a single-partition Kafka topic.
// One partition keeps the log totally ordered, matching the other backends.
type KafkaLog struct {
	brokers  []string
	topic    string
	producer *kgo.Client
	logger   *slog.Logger
}

type KafkaLogOption func(*KafkaLog)

func WithKafkaTopic(topic string) KafkaLogOption {
	return func(l *KafkaLog) {
		if topic != "" {
			l.topic = topic
		}
	}
}

func WithKafkaLogger(logger *slog.Logger) KafkaLogOption {
	return func(l *KafkaLog) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewKafkaLog(ctx context.Context, brokers []string, opts ...KafkaLogOption) (*KafkaLog, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	l := &KafkaLog{
		brokers: brokers,
		topic:   defaultTopic,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	producer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(l.topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	if err := ensureTopic(ctx, producer, l.topic); err != nil {
		producer.Close()
		return nil, err
	}
	l.producer = producer
	return l, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

func (l *KafkaLog) Close() {
	l.producer.Close()
}

func (l *KafkaLog) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := l.producer.ProduceSync(ctx, &kgo.Record{Value: raw}).FirstErr(); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (l *KafkaLog) Subscribe(ctx context.Context, since time.Time) (<-chan Event, error) {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(l.brokers...),
		kgo.ConsumeTopics(l.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AfterMilli(since.UnixMilli())),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka consumer: %w", err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		defer consumer.Close()
		for ctx.Err() == nil {
			fetches := consumer.PollFetches(ctx)
			if fetches.IsClientClosed() || ctx.Err() != nil {
				return
			}
			fetches.EachError(func(topic string, partition int32, err error) {
				l.logger.Warn("event fetch failed", "topic", topic, "partition", partition, "error", err)
			})
			for _, record := range fetches.Records() {
				var ev Event
				if err := json.Unmarshal(record.Value, &ev); err != nil {
					l.logger.Warn("undecodable event record", "offset", record.Offset, "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
