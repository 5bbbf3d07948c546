package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/xtrntr/cryptopro/internal/models"
)

// TradeExecuted is the event published for every committed trade
type TradeExecuted struct {
	EventID    string `json:"event_id"`
	EntryID    int    `json:"entry_id"`
	AccountID  int    `json:"account_id"`
	TelegramID int64  `json:"telegram_id"`
	Type       string `json:"type"`
	Crypto     string `json:"crypto"`
	Amount     string `json:"amount"`
	Price      string `json:"price"`
	Total      string `json:"total"`
	USDBalance string `json:"usd_balance"`
	Timestamp  string `json:"timestamp"`
}

// MessageWriter is the subset of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes trade events to a Kafka topic
type Publisher struct {
	writer MessageWriter
}

// NewPublisher creates a publisher for topic on the given brokers
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           10 * time.Millisecond,
			MaxAttempts:            3,
			WriteTimeout:           5 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}
}

// NewPublisherWithWriter wraps an existing writer
func NewPublisherWithWriter(w MessageWriter) *Publisher {
	return &Publisher{writer: w}
}

// NewTradeExecuted builds the event for a committed entry
func NewTradeExecuted(acct models.Account, entry models.LedgerEntry) TradeExecuted {
	return TradeExecuted{
		EventID:    uuid.NewString(),
		EntryID:    entry.ID,
		AccountID:  acct.ID,
		TelegramID: acct.TelegramID,
		Type:       string(entry.Type),
		Crypto:     string(entry.Asset),
		Amount:     entry.Amount.String(),
		Price:      entry.Price.String(),
		Total:      entry.Total.String(),
		USDBalance: acct.Balances.USD.String(),
		Timestamp:  entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// TradeExecuted publishes the trade, keyed by telegram id so one user's
// events stay ordered within a partition
func (p *Publisher) TradeExecuted(ctx context.Context, acct models.Account, entry models.LedgerEntry) error {
	event := NewTradeExecuted(acct, entry)
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal trade event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(acct.TelegramID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "event_type", Value: []byte("trade.executed")},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish trade event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}
