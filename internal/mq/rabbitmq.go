package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/imagehoster/server/config"
)

// RabbitMQClient carries image events over RabbitMQ, one queue per channel
// name. The event type travels in the AMQP type property and the publish
// time in the timestamp property.
type RabbitMQClient struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	queueDurable    bool
	queueAutoDelete bool
}

func openRabbitMQ(ctx context.Context, cfg config.MQConfig) (Backend, error) {
	client, err := NewRabbitMQClient(cfg.RabbitMQ)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewRabbitMQClient dials the broker and applies the prefetch limit.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("RABBITMQ_URL is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("set prefetch: %w", err)
		}
	}

	return &RabbitMQClient{
		conn:            conn,
		channel:         ch,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
	}, nil
}

func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}
	if err := r.declareQueue(channel); err != nil {
		return "", err
	}

	publishing := toPublishing(data, attrs, time.Now().UTC())
	if err := r.channel.PublishWithContext(ctx, "", channel, false, false, publishing); err != nil {
		return "", err
	}
	return publishing.MessageId, nil
}

// Subscribe consumes the channel's queue until ctx is done. A handler error
// requeues the delivery.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}
	if err := r.declareQueue(channel); err != nil {
		return err
	}

	consumerTag := "imagehoster-" + uuid.NewString()
	deliveries, err := r.channel.Consume(channel, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			message := fromDelivery(delivery)
			if err := handler(ctx, message); err != nil {
				log.Warn().Err(err).
					Str("message_id", message.ID).
					Str("event_type", message.Attributes[attrEventType]).
					Msg("Requeueing image event")
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declareQueue(name string) error {
	_, err := r.channel.QueueDeclare(name, r.queueDurable, r.queueAutoDelete, false, false, nil)
	return err
}

// toPublishing maps message attributes onto AMQP properties. Content and
// event type become properties, everything else a header.
func toPublishing(data []byte, attrs map[string]string, now time.Time) amqp.Publishing {
	publishing := amqp.Publishing{
		ContentType:  "application/octet-stream",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    now,
		Headers:      amqp.Table{},
		Body:         data,
	}
	for key, value := range attrs {
		switch key {
		case attrContentType:
			publishing.ContentType = value
		case attrEventType:
			publishing.Type = value
		default:
			publishing.Headers[key] = value
		}
	}
	return publishing
}

// fromDelivery restores the attributes toPublishing split into properties.
func fromDelivery(delivery amqp.Delivery) Message {
	attrs := make(map[string]string, len(delivery.Headers)+2)
	for key, value := range delivery.Headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	if delivery.ContentType != "" {
		attrs[attrContentType] = delivery.ContentType
	}
	if delivery.Type != "" {
		attrs[attrEventType] = delivery.Type
	}
	return Message{ID: delivery.MessageId, Data: delivery.Body, Attributes: attrs}
}
