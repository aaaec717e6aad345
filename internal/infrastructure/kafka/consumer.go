package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/observability"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/redis"
	"github.com/segmentio/kafka-go"
)

// Consumer follows the settlements topic and keeps read-side state in sync:
// it drops cached balances of the parties involved and feeds the outcome
// counters. Balances themselves are mutated only inside the settlement
// transaction, never here.
type Consumer struct {
	reader      *kafka.Reader
	redisClient redis.RedisClient
}

func NewConsumer(brokers []string, topic, groupID string, redisClient redis.RedisClient) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		redisClient: redisClient,
	}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}

		var event struct {
			EventType  string `json:"event_type"`
			FromUserID int64  `json:"from_user_id,omitempty"`
			ToUserID   int64  `json:"to_user_id,omitempty"`
			UserID     int64  `json:"user_id,omitempty"`
			RequestID  string `json:"request_id,omitempty"`
		}
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Error("failed to unmarshal settlement event", "error", err)
			continue
		}

		switch event.EventType {
		case "settlement_completed":
			c.invalidateBalance(ctx, event.FromUserID)
			c.invalidateBalance(ctx, event.ToUserID)
			observability.SettlementsTotal.WithLabelValues("completed").Inc()
			slog.Info("settlement event processed",
				"from_user_id", event.FromUserID,
				"to_user_id", event.ToUserID,
				"request_id", event.RequestID)

		case "top_up_completed":
			c.invalidateBalance(ctx, event.UserID)
			slog.Info("top-up event processed", "user_id", event.UserID)

		case "code_issued", "user_registered":
			// No read-side state to refresh; logged for audit only.
			slog.Info("event observed", "event_type", event.EventType)

		default:
			slog.Error("unknown event type", "event_type", event.EventType)
		}
	}
}

func (c *Consumer) invalidateBalance(ctx context.Context, userID int64) {
	if userID == 0 {
		return
	}
	key := fmt.Sprintf("user:%d:balance", userID)
	if err := c.redisClient.Del(ctx, key); err != nil {
		slog.Error("failed to invalidate cached balance", "user_id", userID, "error", err)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
