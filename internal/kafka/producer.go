package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Producer streams order lifecycle events, one writer per topic. All
// publishes are fire-and-forget from the caller's point of view.
type Producer struct {
	orderCreated *kafka.Writer
	orderSettled *kafka.Writer
	ticketMinted *kafka.Writer
	mintFailed   *kafka.Writer
	log          *logger.Logger
}

func NewProducer(cfg config.KafkaConfig, log *logger.Logger) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return kafka.NewWriter(kafka.WriterConfig{
			Brokers: cfg.Brokers,
			Topic:   topic,
		})
	}
	return &Producer{
		orderCreated: newWriter(cfg.Topics.OrderCreated),
		orderSettled: newWriter(cfg.Topics.OrderSettled),
		ticketMinted: newWriter(cfg.Topics.TicketMinted),
		mintFailed:   newWriter(cfg.Topics.MintFailed),
		log:          log,
	}
}

func (p *Producer) publish(writer *kafka.Writer, key string, event any) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.publishRaw(writer, key, msgBytes); err != nil {
		p.log.LogKafka("PUBLISH", writer.Topic, "failed: "+err.Error())
		return err
	}
	p.log.LogKafka("PUBLISH", writer.Topic, key)
	return nil
}

func (p *Producer) publishRaw(writer *kafka.Writer, key string, value []byte) error {
	return writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: value,
		},
	)
}

func (p *Producer) PublishOrderCreated(order models.Order) error {
	return p.publish(p.orderCreated, order.GatewayRef, order)
}

func (p *Producer) PublishOrderSettled(order models.Order) error {
	return p.publish(p.orderSettled, order.GatewayRef, order)
}

type mintEvent struct {
	models.Order
	TransactionHash string `json:"transactionHash,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

func (p *Producer) PublishTicketMinted(order models.Order, hash string) error {
	return p.publish(p.ticketMinted, order.GatewayRef, mintEvent{Order: order, TransactionHash: hash})
}

func (p *Producer) PublishMintFailed(order models.Order, reason string) error {
	return p.publish(p.mintFailed, order.GatewayRef, mintEvent{Order: order, Reason: reason})
}

// Close flushes and releases every topic writer.
func (p *Producer) Close() error {
	for _, w := range []*kafka.Writer{p.orderCreated, p.orderSettled, p.ticketMinted, p.mintFailed} {
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}
