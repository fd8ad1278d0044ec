package queue

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cyberaware/internal/domain"
)

// Поддерживаемые бэкенды очереди обновлений.
const (
	BackendRedis    = "redis"
	BackendRabbitMQ = "rabbitmq"
)

// Open создаёт очередь выбранного бэкенда. Возвращённая функция закрывает соединение.
func Open(backend string, client *redis.Client, rabbitURL, key string) (domain.RefreshQueue, func() error, error) {
	switch backend {
	case "", BackendRedis:
		if client == nil {
			return nil, nil, errors.New("queue: redis не настроен (REDIS_ADDR)")
		}
		return NewRedisRefreshQueue(client, key), func() error { return nil }, nil
	case BackendRabbitMQ:
		if rabbitURL == "" {
			return nil, nil, errors.New("queue: не указан адрес RabbitMQ (RABBITMQ_URL)")
		}
		q, err := NewRabbitRefreshQueue(rabbitURL, key)
		if err != nil {
			return nil, nil, err
		}
		return q, q.Close, nil
	default:
		return nil, nil, fmt.Errorf("queue: неизвестный бэкенд %q", backend)
	}
}
