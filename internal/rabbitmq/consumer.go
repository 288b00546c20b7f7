package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"activity-sync/internal/events"
	"activity-sync/internal/triggers"
)

// Dispatcher runs the handler for one event.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev events.Event) (triggers.Report, error)
}

// DefaultBindingKeys route the change-event collections to the consumer queue.
var DefaultBindingKeys = []string{"activities.#", "users.#", "friendRequests.#", "chat-messages.#"}

type ConsumerConfig struct {
	URL                string
	Exchange           string
	Queue              string
	BindingKeys        []string
	DeadLetterExchange string
	ConsumerTag        string
	Concurrency        int
	// OwnRoutingKeys are the keys this process publishes with on the same
	// exchange. No binding key may match them.
	OwnRoutingKeys []string
}

// Validate fills defaults and rejects bindings that would deliver the
// process's own messages back to its queue.
func (cfg *ConsumerConfig) Validate() error {
	if cfg.URL == "" {
		return errors.New("amqp url is empty")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if len(cfg.BindingKeys) == 0 {
		cfg.BindingKeys = DefaultBindingKeys
	}
	for _, binding := range cfg.BindingKeys {
		for _, own := range cfg.OwnRoutingKeys {
			if own != "" && TopicMatches(binding, own) {
				return fmt.Errorf("binding key %q matches published routing key %q", binding, own)
			}
		}
	}
	return nil
}

// TopicMatches reports whether a topic exchange binding pattern matches a
// routing key. "*" matches one word and "#" matches zero or more.
func TopicMatches(pattern, key string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(key); i++ {
			if matchWords(pattern[1:], key[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(key) > 0 && matchWords(pattern[1:], key[1:])
	default:
		return len(key) > 0 && pattern[0] == key[0] && matchWords(pattern[1:], key[1:])
	}
}

// Consumer reads change events from a durable queue and dispatches them.
// Deliveries are acked only after their handler returns.
type Consumer struct {
	cfg        ConsumerConfig
	conn       *amqp.Connection
	ch         *amqp.Channel
	dispatcher Dispatcher
	log        *zap.Logger
}

// NewConsumer connects and declares the exchange, queue and binding.
func NewConsumer(cfg ConsumerConfig, dispatcher Dispatcher, log *zap.Logger) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c := &Consumer{cfg: cfg, conn: conn, ch: ch, dispatcher: dispatcher, log: log}
	if err := c.declare(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Consumer) declare() error {
	if err := declareExchange(c.ch, c.cfg.Exchange); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.cfg.Exchange, err)
	}

	var args amqp.Table
	if c.cfg.DeadLetterExchange != "" {
		if err := c.ch.ExchangeDeclare(c.cfg.DeadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dead letter exchange %s: %w", c.cfg.DeadLetterExchange, err)
		}
		args = amqp.Table{"x-dead-letter-exchange": c.cfg.DeadLetterExchange}
	}

	if _, err := c.ch.QueueDeclare(c.cfg.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.cfg.Queue, err)
	}
	for _, key := range c.cfg.BindingKeys {
		if err := c.ch.QueueBind(c.cfg.Queue, key, c.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", c.cfg.Queue, key, err)
		}
	}
	if err := c.ch.Qos(c.cfg.Concurrency, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	return nil
}

// Run consumes until ctx is cancelled, handling up to Concurrency deliveries
// at once. In-flight handlers are allowed to finish before Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.cfg.Queue, c.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
	}
	c.log.Info("consumer started",
		zap.String("queue", c.cfg.Queue),
		zap.String("exchange", c.cfg.Exchange),
		zap.Int("concurrency", c.cfg.Concurrency))

	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	handleCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			c.log.Info("consumer stopped")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				_ = g.Wait()
				return errors.New("amqp delivery channel closed")
			}
			g.Go(func() error {
				c.handle(handleCtx, d)
				return nil
			})
		}
	}
}

// handle acks on success. A failed handler is requeued once; a redelivered
// failure or an undecodable body is rejected without requeue.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	log := c.log.With(zap.String("message_id", d.MessageId), zap.Bool("redelivered", d.Redelivered))

	ev, err := events.Decode(d.Body)
	if err != nil {
		log.Error("dropping undecodable event", zap.Error(err))
		c.settle(log, d.Nack(false, false))
		return
	}
	log = log.With(zap.String("event_id", ev.ID))

	if _, err := c.dispatcher.Dispatch(ctx, ev); err != nil {
		requeue := !d.Redelivered
		log.Warn("event handler failed", zap.Bool("requeue", requeue), zap.Error(err))
		c.settle(log, d.Nack(false, requeue))
		return
	}
	c.settle(log, d.Ack(false))
}

func (c *Consumer) settle(log *zap.Logger, err error) {
	if err != nil {
		log.Error("settle delivery failed", zap.Error(err))
	}
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
