package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Event is the wire format published to the notifications topic. Downstream
// delivery workers render the template and pick the channel.
type Event struct {
	Address    string            `json:"address,omitempty"`
	GroupPath  string            `json:"groupPath,omitempty"`
	TemplateID string            `json:"templateId"`
	Params     map[string]string `json:"params,omitempty"`
}

// KafkaDispatcher publishes notification events to a Kafka topic.
type KafkaDispatcher struct {
	client *kgo.Client
	topic  string
	log    *slog.Logger
}

type KafkaOption func(*KafkaDispatcher)

func WithKafkaLogger(log *slog.Logger) KafkaOption {
	return func(d *KafkaDispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// NewKafkaDispatcher connects to the brokers and ensures the topic exists.
func NewKafkaDispatcher(ctx context.Context, brokers []string, topic string, opts ...KafkaOption) (*KafkaDispatcher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}
	d := &KafkaDispatcher{client: client, topic: topic, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", topic, res.Err)
		}
	}
	return nil
}

func (d *KafkaDispatcher) SendNotification(ctx context.Context, address, templateID string, params map[string]string) error {
	return d.publish(ctx, address, Event{Address: address, TemplateID: templateID, Params: params})
}

func (d *KafkaDispatcher) SendNotificationToGroup(ctx context.Context, groupPath, templateID string, params map[string]string) error {
	return d.publish(ctx, groupPath, Event{GroupPath: groupPath, TemplateID: templateID, Params: params})
}

func (d *KafkaDispatcher) publish(ctx context.Context, key string, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}
	record := &kgo.Record{Topic: d.topic, Key: []byte(key), Value: value}
	if err := d.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	d.log.Debug("notification published", "template", event.TemplateID, "key", key)
	return nil
}

func (d *KafkaDispatcher) Close() {
	d.client.Close()
}
