package marketplace

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	EventTaskCreated       EventType = "task.created"
	EventBidSubmitted      EventType = "bid.submitted"
	EventBidAccepted       EventType = "bid.accepted"
	EventBidRejected       EventType = "bid.rejected"
	EventTaskStatusChanged EventType = "task.status_changed"
)

// Event is a committed lifecycle change. Status is the task status after the
// change, or the bid status for bid events.
type Event struct {
	Event     EventType `json:"event"`
	TaskID    string    `json:"task_id"`
	BidID     string    `json:"bid_id,omitempty"`
	ActorID   string    `json:"actor_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher returns an asynchronous publisher; delivery failures are
// reported to logger rather than to the caller.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) EventPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("kafka delivery failed", "messages", len(messages), "error", err)
			}
		},
	}
	return &kafkaPublisher{writer: writer}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	message, err := eventMessage(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, message)
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

func eventMessage(event Event) (kafka.Message, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.TaskID),
		Value: value,
		Time:  event.Timestamp,
	}, nil
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
