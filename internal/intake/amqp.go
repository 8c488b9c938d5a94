package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MimeLyc/hardsub-translator/internal/jobs"
	"github.com/MimeLyc/hardsub-translator/internal/ocr"
	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

// Command is the JSON body of a queued pipeline request
type Command struct {
	jobs.Payload
	DedupeKey string `json:"dedupe_key,omitempty"`
}

// AMQPConsumer turns messages of a durable queue into pipeline jobs
type AMQPConsumer struct {
	url       string
	queueName string
	queue     Enqueuer

	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewAMQPConsumer(url, queueName string, queue Enqueuer) *AMQPConsumer {
	return &AMQPConsumer{url: url, queueName: queueName, queue: queue}
}

// Connect dials the broker and declares the queue with a prefetch of one
func (c *AMQPConsumer) Connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("declare queue %s: %w", c.queueName, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return fmt.Errorf("set QoS: %w", err)
	}

	c.conn = conn
	c.channel = ch
	return nil
}

// Run consumes until ctx is done or the channel closes
func (c *AMQPConsumer) Run(ctx context.Context) error {
	if c.channel == nil {
		return fmt.Errorf("consumer is not connected")
	}
	msgs, err := c.channel.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queueName, err)
	}
	log.Info("Listening for commands on %s", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel of %s closed", c.queueName)
			}
			c.Handle(d)
		}
	}
}

// Handle enqueues one delivery. Valid commands are acked; malformed ones
// are rejected without requeue so they cannot loop.
func (c *AMQPConsumer) Handle(d amqp.Delivery) {
	cmd, err := ParseCommand(d.Body)
	if err != nil {
		log.Warn("Rejecting message %d: %v", d.DeliveryTag, err)
		if err := d.Reject(false); err != nil {
			log.Error("Failed to reject message %d: %v", d.DeliveryTag, err)
		}
		return
	}

	key := cmd.DedupeKey
	if key == "" {
		key = cmd.VideoPath
	}
	job, created := c.queue.Enqueue(jobs.EnqueueRequest{
		Source:    jobs.SourceAMQP,
		DedupeKey: key,
		Payload:   cmd.Payload,
	})
	log.Info("Message %d mapped to job %s (new: %t)", d.DeliveryTag, job.ID, created)

	if err := d.Ack(false); err != nil {
		log.Error("Failed to ack message %d: %v", d.DeliveryTag, err)
	}
}

func (c *AMQPConsumer) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ParseCommand decodes and validates a command body
func ParseCommand(body []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		return Command{}, fmt.Errorf("invalid json: %w", err)
	}
	cmd.VideoPath = strings.TrimSpace(cmd.VideoPath)
	if cmd.VideoPath == "" {
		return Command{}, fmt.Errorf("video_path is required")
	}
	if p := strings.TrimSpace(cmd.Profile); p != "" && p != "auto" {
		if _, err := ocr.ParseProfile(p); err != nil {
			return Command{}, err
		}
	}
	return cmd, nil
}
