package events

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const auditExchange = "document.events"

// RabbitMQClient wraps a connection with automatic reconnection. The
// monitor goroutine swaps conn/channel on reconnect while publishers read
// them, so all state access goes through mu.
type RabbitMQClient struct {
	mu            sync.RWMutex
	conn          *amqp.Connection
	channel       *amqp.Channel
	connectionURI string
	isConnected   bool
}

func NewRabbitMQClient(connectionURI string) (*RabbitMQClient, error) {
	client := &RabbitMQClient{
		connectionURI: connectionURI,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *RabbitMQClient) connect() error {
	conn, err := amqp.Dial(c.connectionURI)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.isConnected = true
	c.mu.Unlock()

	go c.monitorConnection(conn, channel)

	return nil
}

func (c *RabbitMQClient) connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *RabbitMQClient) setConnected(connected bool) {
	c.mu.Lock()
	c.isConnected = connected
	c.mu.Unlock()
}

func (c *RabbitMQClient) monitorConnection(conn *amqp.Connection, channel *amqp.Channel) {
	connCloseChan := conn.NotifyClose(make(chan *amqp.Error, 1))
	chanCloseChan := channel.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case err := <-connCloseChan:
			c.setConnected(false)
			log.Printf("RabbitMQ connection closed: %v, attempting to reconnect...", err)
			c.reconnect()
			return
		case err := <-chanCloseChan:
			if c.connected() {
				log.Printf("RabbitMQ channel closed: %v, reopening...", err)
				c.reopenChannel()
			}
		}
	}
}

func (c *RabbitMQClient) reconnect() {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		time.Sleep(backoff)

		err := c.connect()
		if err == nil {
			log.Println("Successfully reconnected to RabbitMQ")

			if err := c.setupExchange(); err != nil {
				log.Printf("Failed to setup exchange after reconnection: %v", err)
				continue
			}

			return
		}

		log.Printf("Failed to reconnect to RabbitMQ: %v", err)

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *RabbitMQClient) reopenChannel() {
	c.mu.Lock()
	if c.channel != nil {
		c.channel.Close()
	}

	channel, err := c.conn.Channel()
	if err != nil {
		c.isConnected = false
		c.mu.Unlock()
		log.Printf("Failed to reopen channel: %v", err)
		c.reconnect()
		return
	}
	c.channel = channel
	c.mu.Unlock()

	if err := c.setupExchange(); err != nil {
		log.Printf("Failed to setup exchange after reopening channel: %v", err)
		c.setConnected(false)
		c.reconnect()
		return
	}

	log.Println("Successfully reopened RabbitMQ channel")
}

func (c *RabbitMQClient) setupExchange() error {
	c.mu.RLock()
	channel := c.channel
	c.mu.RUnlock()

	err := channel.ExchangeDeclare(
		auditExchange, // name
		"topic",       // type
		true,          // durable
		false,         // auto-deleted
		false,         // internal
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}

func (c *RabbitMQClient) PublishEvent(ctx context.Context, routingKey string, body []byte) error {
	c.mu.RLock()
	connected, channel := c.isConnected, c.channel
	c.mu.RUnlock()

	if !connected || channel == nil {
		return fmt.Errorf("not connected to RabbitMQ")
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := channel.PublishWithContext(
		pubCtx,
		auditExchange, // exchange
		routingKey,    // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func (c *RabbitMQClient) Close() error {
	c.mu.Lock()
	c.isConnected = false
	channel, conn := c.channel, c.conn
	c.mu.Unlock()

	if channel != nil {
		channel.Close()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}
