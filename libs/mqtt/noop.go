package mqtt

import (
	"context"

	"log/slog"
)

// NoopClient satisfies Client without touching the network. It is selected
// at composition time when no broker is configured (CI and degraded runs);
// publishes are dropped with a diagnostic and Run just waits for shutdown.
type NoopClient struct {
	logger *slog.Logger
}

func NewNoopClient(logger *slog.Logger) *NoopClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopClient{logger: logger}
}

func (c *NoopClient) Route(topic string, _ MessageHandler) {
	c.logger.Info("noop transport, route ignored", "topic", topic)
}

func (c *NoopClient) Publish(topic string, _ []byte) error {
	c.logger.Warn("noop transport, publish dropped", "topic", topic)
	return nil
}

func (c *NoopClient) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (c *NoopClient) Close() {}
