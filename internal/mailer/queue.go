package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Baaaki/agora/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// QueueSender publishes messages to a durable RabbitMQ queue. A MailWorker
// on the other side performs the SMTP delivery.
type QueueSender struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewQueueSender(url, queue string) *QueueSender {
	return &QueueSender{url: url, queue: queue}
}

func (q *QueueSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail job: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ch, err := q.channelLocked()
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.queue, false, false, pub); err != nil {
		q.resetLocked()
		return fmt.Errorf("publish mail job: %w", err)
	}
	return nil
}

// channelLocked returns an open channel, dialing again after a broker restart.
func (q *QueueSender) channelLocked() (*amqp.Channel, error) {
	if q.ch != nil && !q.ch.IsClosed() {
		return q.ch, nil
	}
	q.resetLocked()

	conn, err := amqp.Dial(q.url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(q.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", q.queue, err)
	}

	q.conn, q.ch = conn, ch
	return ch, nil
}

func (q *QueueSender) resetLocked() {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		_ = q.conn.Close()
	}
	q.ch, q.conn = nil, nil
}

func (q *QueueSender) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.resetLocked()
	return nil
}

// MailWorker consumes queued messages and delivers them with a Sender.
type MailWorker struct {
	url    string
	queue  string
	sender Sender
}

func NewMailWorker(url, queue string, sender Sender) *MailWorker {
	return &MailWorker{url: url, queue: queue, sender: sender}
}

// Run consumes until ctx is cancelled, reconnecting with backoff.
func (w *MailWorker) Run(ctx context.Context) {
	log := logger.Named("mail-worker")
	backoff := time.Second

	for ctx.Err() == nil {
		conn, err := amqp.Dial(w.url)
		if err != nil {
			log.Warn("Failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := w.consume(ctx, conn); err != nil {
			log.Warn("Consume loop ended, reconnecting", zap.Error(err))
		}
		_ = conn.Close()
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func (w *MailWorker) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		logger.Log.Warn("Failed to set QoS", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(w.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	deliveries, err := ch.Consume(w.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := w.handle(ctx, d.Body); err != nil {
				logger.Log.Error("Mail job failed", zap.Error(err))
				_ = d.Nack(false, false) // dropped, not requeued
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (w *MailWorker) handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return w.sender.Send(sendCtx, msg)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
