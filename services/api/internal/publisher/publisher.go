package publisher

import (
	"encoding/json"
	"fmt"

	"log/slog"

	"github.com/google/uuid"
	"github.com/luzhania/E1-arquitectura-de-software/internal/storage"
	"github.com/luzhania/E1-arquitectura-de-software/libs/mqtt"
)

type buyRequestPayload struct {
	RequestID string `json:"request_id"`
	GroupID   string `json:"group_id"`
	Symbol    string `json:"symbol"`
	Quantity  int64  `json:"quantity"`
	Operation string `json:"operation"`
}

// BuyPublisher emits purchase requests on the requests topic. The request
// identifier is producer-assigned and returned to the caller so it can
// correlate the eventual resolution.
type BuyPublisher struct {
	client  mqtt.Client
	topic   string
	groupID string
	logger  *slog.Logger
}

func New(client mqtt.Client, topic, groupID string, logger *slog.Logger) *BuyPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BuyPublisher{client: client, topic: topic, groupID: groupID, logger: logger}
}

func (p *BuyPublisher) PublishBuyRequest(symbol string, quantity int64) (string, error) {
	requestID := uuid.NewString()
	payload, err := json.Marshal(buyRequestPayload{
		RequestID: requestID,
		GroupID:   p.groupID,
		Symbol:    symbol,
		Quantity:  quantity,
		Operation: storage.OperationBuy,
	})
	if err != nil {
		return "", fmt.Errorf("marshal buy request: %w", err)
	}

	if err := p.client.Publish(p.topic, payload); err != nil {
		return "", fmt.Errorf("publish buy request: %w", err)
	}

	p.logger.Info("buy request published", "request_id", requestID, "symbol", symbol, "quantity", quantity)
	return requestID, nil
}
