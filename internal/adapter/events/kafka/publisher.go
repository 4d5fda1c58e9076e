// Package kafka publishes settlement outcomes for downstream consumers such as
// the notification service.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"settlement-ledger/config"
	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// EventSettlementCompleted is the event type header of completed settlements.
const EventSettlementCompleted = "settlement.completed"

// Message header keys.
const (
	HeaderEventType = "event_type"
	HeaderTimestamp = "timestamp"
	HeaderSignature = "signature"
)

// SettlementCompletedEvent is the message body. Amounts are fixed two-place strings.
type SettlementCompletedEvent struct {
	EventType           string    `json:"event_type"`
	PaymentRef          string    `json:"payment_ref"`
	PayerAccount        string    `json:"payer_account"`
	Amount              string    `json:"amount"`
	Fee                 string    `json:"fee"`
	FeeMode             string    `json:"fee_mode"`
	PayerEntryID        string    `json:"payer_entry_id"`
	MerchantEntryID     string    `json:"merchant_entry_id"`
	FeeEntryID          string    `json:"fee_entry_id"`
	PayerBalance        string    `json:"payer_balance"`
	MerchantBalance     string    `json:"merchant_balance"`
	FeeCollectorBalance string    `json:"fee_collector_balance"`
	SettledAt           time.Time `json:"settled_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements ports.EventPublisher on a kafka.Writer.
type Publisher struct {
	writer  messageWriter
	timeout time.Duration
	signer  ports.EventSigner // nil publishes unsigned
	now     func() time.Time
	log     zerolog.Logger
}

// NewPublisher creates a publisher for cfg.Topic. Messages are keyed by payment
// reference so all events of one settlement land on the same partition. A nil
// signer publishes without signature headers.
func NewPublisher(cfg config.KafkaConfig, signer ports.EventSigner, log zerolog.Logger) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
	}, cfg.WriteTimeout, signer, log)
}

func newPublisher(w messageWriter, timeout time.Duration, signer ports.EventSigner, log zerolog.Logger) *Publisher {
	return &Publisher{writer: w, timeout: timeout, signer: signer, now: time.Now, log: log}
}

// PublishSettlementCompleted writes one event for result.
func (p *Publisher) PublishSettlementCompleted(ctx context.Context, result *domain.SettlementResult) error {
	data, err := json.Marshal(newSettlementCompletedEvent(result))
	if err != nil {
		return fmt.Errorf("encode settlement event: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	headers := []kafka.Header{{Key: HeaderEventType, Value: []byte(EventSettlementCompleted)}}
	if p.signer != nil {
		ts := p.now().Unix()
		sig := p.signer.Sign(SignedPayload(EventSettlementCompleted, result.PaymentRef, ts, data))
		headers = append(headers,
			kafka.Header{Key: HeaderTimestamp, Value: []byte(strconv.FormatInt(ts, 10))},
			kafka.Header{Key: HeaderSignature, Value: []byte(sig)},
		)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(result.PaymentRef),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("publish settlement %s: %w", result.PaymentRef, err)
	}

	p.log.Debug().Str("payment_ref", result.PaymentRef).Msg("settlement event published")
	return nil
}

// SignedPayload is the byte string consumers recompute to check the signature
// header: EVENT_TYPE|KEY|UNIX_TS|BODY.
func SignedPayload(eventType, key string, timestamp int64, body []byte) []byte {
	prefix := eventType + "|" + key + "|" + strconv.FormatInt(timestamp, 10) + "|"
	return append([]byte(prefix), body...)
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func newSettlementCompletedEvent(r *domain.SettlementResult) SettlementCompletedEvent {
	money := func(d decimal.Decimal) string { return d.StringFixed(domain.MoneyScale) }
	return SettlementCompletedEvent{
		EventType:           EventSettlementCompleted,
		PaymentRef:          r.PaymentRef,
		PayerAccount:        r.PayerAccount,
		Amount:              money(r.Amount),
		Fee:                 money(r.Fee),
		FeeMode:             string(r.FeeMode),
		PayerEntryID:        r.PayerEntryID,
		MerchantEntryID:     r.MerchantEntryID,
		FeeEntryID:          r.FeeEntryID,
		PayerBalance:        money(r.PayerBalance),
		MerchantBalance:     money(r.MerchantBalance),
		FeeCollectorBalance: money(r.FeeCollectorBalance),
		SettledAt:           r.SettledAt,
	}
}
