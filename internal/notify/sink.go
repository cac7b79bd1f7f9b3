package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/logger"

	"github.com/segmentio/kafka-go"
)

// Sink delivers one stored notification to the outside world.
type Sink interface {
	Deliver(ctx context.Context, n domain.Notification) error
	Close() error
}

// LogSink writes notifications to the application log.
type LogSink struct{}

func (LogSink) Deliver(ctx context.Context, n domain.Notification) error {
	logger.InfoContext(ctx, "Notification", "id", n.ID, "userID", n.UserID, "title", n.Title, "message", n.Message)
	return nil
}

func (LogSink) Close() error { return nil }

// MessageWriter is the part of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes notifications as JSON keyed by user id, so one user's
// notifications stay ordered within a partition.
type KafkaSink struct {
	writer MessageWriter
	topic  string
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteBackoffMin:        100 * time.Millisecond,
		WriteBackoffMax:        time.Second,
	}
}

func NewKafkaSink(writer MessageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: writer, topic: topic}
}

type message struct {
	ID         int64             `json:"id"`
	UserID     int64             `json:"user_id"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (s *KafkaSink) Deliver(ctx context.Context, n domain.Notification) error {
	value, err := json.Marshal(message{
		ID:         n.ID,
		UserID:     n.UserID,
		Title:      n.Title,
		Message:    n.Message,
		Attributes: n.Attributes,
		CreatedAt:  n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification %d: %w", n.ID, err)
	}

	logger.ExternalServiceCall("kafka", "WriteMessages", "topic", s.topic, "notificationID", n.ID)
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(n.UserID, 10)),
		Value: value,
	})
	logger.ExternalServiceResult("kafka", "WriteMessages", err, "notificationID", n.ID)
	return err
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
