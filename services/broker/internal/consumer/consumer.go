package consumer

import (
	"context"
	"time"

	"log/slog"

	"github.com/luzhania/E1-arquitectura-de-software/libs/mqtt"
	"github.com/luzhania/E1-arquitectura-de-software/internal/storage"
)

// Ledger is the request-ledger side of the reconciliation engine.
type Ledger interface {
	Create(ctx context.Context, req storage.TradeRequest) error
	Resolve(ctx context.Context, requestID, status string, ts time.Time) error
}

// Auctions is the negotiation engine.
type Auctions interface {
	Offer(ctx context.Context, offer storage.AuctionOffer) error
	Propose(ctx context.Context, auctionID string, p storage.Proposal) error
	Accept(ctx context.Context, auctionID, proposalID, symbol string, quantity int64, ts time.Time) error
	Reject(ctx context.Context, auctionID, proposalID string, ts time.Time) error
}

// Catalog applies IPO/EMIT/UPDATE events to the stock catalog.
type Catalog interface {
	ApplyIPO(ctx context.Context, entry storage.StockEntry) error
	ApplyEmit(ctx context.Context, entry storage.StockEntry) error
	ApplyUpdate(ctx context.Context, entry storage.StockEntry) error
}

// Dispatcher decodes, classifies and routes inbound messages. It holds no
// business logic: unknown shapes and malformed payloads are dropped here
// with a diagnostic, everything else is forwarded untouched.
type Dispatcher struct {
	ledger   Ledger
	auctions Auctions
	catalog  Catalog
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

func NewDispatcher(ledger Ledger, auctions Auctions, catalog Catalog, logger *slog.Logger, metrics *Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		ledger:   ledger,
		auctions: auctions,
		catalog:  catalog,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (d *Dispatcher) HandleMessage(ctx context.Context, raw mqtt.Message) error {
	msg, err := Parse(raw.Payload, d.now)
	if err != nil {
		d.logger.Warn("dropping malformed payload", "topic", raw.Topic, "error", err)
		d.metrics.IncDropped(raw.Topic, "malformed")
		return nil
	}

	kind := Classify(raw.Topic, msg)
	if kind == KindUnknown {
		d.logger.Warn("dropping unrecognized message", "topic", raw.Topic, "operation", msg.Operation, "payload_kind", msg.Kind)
		d.metrics.IncDropped(raw.Topic, "unrecognized")
		return nil
	}

	d.logger.Debug("message received", "topic", raw.Topic, "kind", kind.String())

	err = d.route(ctx, kind, msg)
	if err != nil {
		d.metrics.IncHandled(raw.Topic, kind.String(), "error")
		return err
	}
	d.metrics.IncHandled(raw.Topic, kind.String(), "ok")
	return nil
}

func (d *Dispatcher) route(ctx context.Context, kind Kind, msg *Message) error {
	switch kind {
	case KindPurchaseRequest:
		return d.ledger.Create(ctx, storage.TradeRequest{
			RequestID:    msg.RequestID,
			GroupID:      msg.GroupID,
			Symbol:       msg.Symbol,
			Quantity:     msg.Quantity,
			Operation:    operationOrDefault(msg.Operation),
			Status:       storage.StatusPending,
			DepositToken: msg.DepositToken,
		})
	case KindResolution:
		return d.ledger.Resolve(ctx, msg.RequestID, msg.Status, msg.Timestamp)
	case KindAuctionOffer:
		return d.auctions.Offer(ctx, storage.AuctionOffer{
			AuctionID: msg.AuctionID,
			Symbol:    msg.Symbol,
			Quantity:  msg.Quantity,
			GroupID:   msg.GroupID,
			Status:    storage.OfferStatusOffered,
			Timestamp: msg.Timestamp,
		})
	case KindAuctionProposal:
		return d.auctions.Propose(ctx, msg.AuctionID, storage.Proposal{
			ProposalID: msg.ProposalID,
			GroupID:    msg.GroupID,
			Symbol:     msg.Symbol,
			Quantity:   msg.Quantity,
			Timestamp:  msg.Timestamp,
		})
	case KindAuctionAcceptance:
		return d.auctions.Accept(ctx, msg.AuctionID, msg.ProposalID, msg.Symbol, msg.Quantity, msg.Timestamp)
	case KindAuctionRejection:
		return d.auctions.Reject(ctx, msg.AuctionID, msg.ProposalID, msg.Timestamp)
	case KindCatalogIPO:
		return d.catalog.ApplyIPO(ctx, catalogEntry(msg))
	case KindCatalogEmit:
		return d.catalog.ApplyEmit(ctx, catalogEntry(msg))
	case KindCatalogUpdate:
		return d.catalog.ApplyUpdate(ctx, catalogEntry(msg))
	}
	return nil
}

func catalogEntry(msg *Message) storage.StockEntry {
	return storage.StockEntry{
		Symbol:    msg.Symbol,
		Quantity:  msg.Quantity,
		Price:     msg.Price,
		LongName:  msg.LongName,
		Timestamp: msg.Timestamp,
	}
}

func operationOrDefault(op string) string {
	if op == "" {
		return storage.OperationBuy
	}
	return op
}
