package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"cyberaware/internal/domain"
	"cyberaware/internal/infra/metrics"
)

// RabbitRefreshQueue реализует очередь задач через AMQP.
type RabbitRefreshQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

var _ domain.RefreshQueue = (*RabbitRefreshQueue)(nil)

// NewRabbitRefreshQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitRefreshQueue(amqpURL, queue string) (*RabbitRefreshQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &RabbitRefreshQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitRefreshQueue) Enqueue(ctx context.Context, job domain.RefreshJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.RequestedAt,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Receive ждёт следующую задачу. Ack(false) возвращает сообщение в очередь.
func (q *RabbitRefreshQueue) Receive(ctx context.Context) (domain.RefreshJob, domain.AckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.RefreshJob{}, nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.RefreshJob{}, nil, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return domain.RefreshJob{}, nil, errors.New("rabbitmq: delivery channel closed")
			}
			var job domain.RefreshJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				_ = d.Nack(false, false)
				return domain.RefreshJob{}, nil, fmt.Errorf("decode job: %w", err)
			}
			ack := func(success bool) error {
				if success {
					return d.Ack(false)
				}
				return d.Nack(false, true)
			}
			return job, ack, nil
		}
	}
}

func (q *RabbitRefreshQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Close закрывает канал и соединение.
func (q *RabbitRefreshQueue) Close() error {
	_ = q.ch.Close()
	return q.conn.Close()
}
