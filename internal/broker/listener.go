package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"medbook/config"
	"medbook/internal/domain"
)

// Ресурсы, события которых меняют доступность.
var bindings = []string{"slot.*", "appointment.*"}

type Invalidator interface {
	Invalidate(doctorID int64, date string)
	InvalidateDoctor(doctorID int64)
}

// Listener сбрасывает кэш доступности по событиям других экземпляров сервиса.
type Listener struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     config.RabbitMQConfig
	cache   Invalidator
	logger  *zap.Logger
}

func NewListener(cfg config.RabbitMQConfig, cache Invalidator, logger *zap.Logger) (*Listener, error) {
	if !cfg.Enabled {
		logger.Info("RabbitMQ отключен, слушатель не запускается")
		return nil, nil
	}

	conn, channel, err := dial(cfg.URL, cfg.Exchange)
	if err != nil {
		logger.Error("Ошибка подключения слушателя к RabbitMQ", zap.Error(err))
		return nil, err
	}

	return &Listener{
		conn:    conn,
		channel: channel,
		cfg:     cfg,
		cache:   cache,
		logger:  logger,
	}, nil
}

func (l *Listener) Start(ctx context.Context) error {
	if l == nil {
		return nil
	}

	spec := instanceQueue(l.cfg.Queue)
	queue, err := l.channel.QueueDeclare(
		spec.Name,
		spec.Durable,
		spec.AutoDelete,
		spec.Exclusive,
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("ошибка объявления очереди %s: %w", spec.Name, err)
	}

	for _, key := range bindings {
		if err := l.channel.QueueBind(queue.Name, key, l.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("ошибка привязки очереди %s к %s: %w", queue.Name, key, err)
		}
	}

	msgs, err := l.channel.Consume(
		queue.Name,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("ошибка подписки на очередь %s: %w", queue.Name, err)
	}

	l.logger.Info("Слушатель событий запущен", zap.String("queue", queue.Name))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					l.logger.Warn("Канал сообщений RabbitMQ закрыт")
					return
				}
				if err := l.handle(msg.RoutingKey, msg.Body); err != nil {
					l.logger.Error("Ошибка обработки события",
						zap.String("routing_key", msg.RoutingKey),
						zap.Error(err))
					msg.Nack(false, false)
					continue
				}
				msg.Ack(false)
			}
		}
	}()

	return nil
}

// queueSpec описывает параметры QueueDeclare.
type queueSpec struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
}

// instanceQueue возвращает собственную очередь экземпляра: каждое событие
// должно дойти до всех экземпляров сервиса.
func instanceQueue(prefix string) queueSpec {
	return queueSpec{
		Name:       prefix + "." + uuid.NewString(),
		Durable:    false,
		AutoDelete: true,
		Exclusive:  true,
	}
}

func (l *Listener) Stop() error {
	if l == nil || l.channel == nil {
		return nil
	}

	if err := l.channel.Close(); err != nil {
		return err
	}
	return l.conn.Close()
}

// parseRoutingKey разбирает ключ вида "<ресурс>.<действие>".
func parseRoutingKey(key string) (resource, action string, err error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("некорректный ключ маршрутизации: %s", key)
	}
	return parts[0], parts[1], nil
}

func (l *Listener) handle(routingKey string, body []byte) error {
	resource, _, err := parseRoutingKey(routingKey)
	if err != nil {
		return err
	}
	if resource != "slot" && resource != "appointment" {
		return nil
	}

	var event domain.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("ошибка разбора события: %w", err)
	}
	if event.DoctorID == 0 {
		return fmt.Errorf("событие %s без doctor_id", routingKey)
	}

	if event.Date == "" {
		l.cache.InvalidateDoctor(event.DoctorID)
	} else {
		l.cache.Invalidate(event.DoctorID, event.Date)
	}

	l.logger.Debug("Кэш доступности сброшен",
		zap.String("routing_key", routingKey),
		zap.Int64("doctor_id", event.DoctorID),
		zap.String("date", event.Date))

	return nil
}
