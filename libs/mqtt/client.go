package mqtt

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Message is one inbound publication.
type Message struct {
	Topic   string
	Payload []byte
}

type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message) error
}

// Client is the transport seam between the subscriber processes and the
// broker. The live implementation speaks MQTT; NoopClient is the variant
// selected when no broker is configured.
type Client interface {
	Route(topic string, handler MessageHandler)
	Publish(topic string, payload []byte) error
	Run(ctx context.Context) error
	Close()
}

type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	ClientID      string
	QoS           byte
	RetryInterval time.Duration
}

type LiveClient struct {
	client paho.Client
	qos    byte
	retry  time.Duration
	routes map[string]MessageHandler
	runCtx context.Context
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*LiveClient, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mqtt broker host required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("mqtt client id required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}

	c := &LiveClient{
		qos:    cfg.QoS,
		retry:  cfg.RetryInterval,
		routes: make(map[string]MessageHandler),
		logger: logger,
	}

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetKeepAlive(60 * time.Second).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(cfg.RetryInterval).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c.client = paho.NewClient(opts)
	return c, nil
}

// Route registers a handler for a topic. Routes must be registered before
// Run; per-topic delivery is sequential, one message to completion before
// the next.
func (c *LiveClient) Route(topic string, handler MessageHandler) {
	c.routes[topic] = handler
}

// Run connects with an unbounded fixed-delay retry loop, subscribes the
// registered routes and blocks until the context is cancelled. Transient
// disconnects are handled by the client's reconnect machinery; resubscribe
// happens on every successful (re)connect.
func (c *LiveClient) Run(ctx context.Context) error {
	c.runCtx = ctx

	for {
		token := c.client.Connect()
		token.Wait()
		if token.Error() == nil {
			break
		}
		c.logger.Warn("mqtt connect failed, retrying", "error", token.Error(), "retry_in", c.retry)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retry):
		}
	}

	<-ctx.Done()
	c.client.Disconnect(250)
	return ctx.Err()
}

func (c *LiveClient) onConnect(client paho.Client) {
	for topic, handler := range c.routes {
		topic, handler := topic, handler
		token := client.Subscribe(topic, c.qos, func(_ paho.Client, m paho.Message) {
			ctx := c.runCtx
			if ctx == nil {
				ctx = context.Background()
			}
			if err := handler.HandleMessage(ctx, Message{Topic: m.Topic(), Payload: m.Payload()}); err != nil {
				c.logger.Error("mqtt message handler error", "topic", m.Topic(), "error", err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			c.logger.Error("mqtt subscribe failed", "topic", topic, "error", token.Error())
			continue
		}
		c.logger.Info("mqtt subscribed", "topic", topic)
	}
}

func (c *LiveClient) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, c.qos, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (c *LiveClient) Close() {
	if c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}
