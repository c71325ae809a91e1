package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"medbook/config"
	"medbook/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
	Close() error
}

// NewPublisher возвращает NopPublisher, если брокер отключен.
func NewPublisher(cfg config.RabbitMQConfig, logger *zap.Logger) (Publisher, error) {
	if !cfg.Enabled {
		logger.Info("RabbitMQ отключен, события не публикуются")
		return NopPublisher{}, nil
	}

	return NewAMQPPublisher(cfg, logger)
}

type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

func NewAMQPPublisher(cfg config.RabbitMQConfig, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, channel, err := dial(cfg.URL, cfg.Exchange)
	if err != nil {
		logger.Error("Ошибка подключения к RabbitMQ", zap.Error(err))
		return nil, err
	}

	return &AMQPPublisher{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
		logger:   logger,
	}, nil
}

func dial(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка подключения к RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("ошибка открытия канала RabbitMQ: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("ошибка объявления обменника %s: %w", exchange, err)
	}

	return conn, channel, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event domain.Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("ошибка публикации события %s: %w", event.Type, err)
	}

	p.logger.Debug("Событие опубликовано",
		zap.String("type", event.Type),
		zap.Int64("doctor_id", event.DoctorID),
		zap.String("date", event.Date))

	return nil
}

func (p *AMQPPublisher) Close() error {
	if p == nil || p.channel == nil {
		return nil
	}

	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Event) error { return nil }

func (NopPublisher) Close() error { return nil }
