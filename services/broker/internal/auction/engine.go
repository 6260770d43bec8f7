package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/luzhania/E1-arquitectura-de-software/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine tracks offer/proposal/acceptance/rejection sequences and, when an
// offer resolves, applies the local group's inventory effect.
//
// Per offer the machine is OFFERED -> (proposals, append only) ->
// ACCEPTED | REJECTED. Terminal states freeze the proposals array but
// never clear it.
type Engine struct {
	offers     storage.AuctionStore
	holdings   storage.HoldingStore
	localGroup string
	logger     *slog.Logger
	metrics    *Metrics
}

func NewEngine(store storage.Store, localGroup string, logger *slog.Logger, metrics *Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		offers:     store,
		holdings:   store,
		localGroup: localGroup,
		logger:     logger,
		metrics:    metrics,
	}
}

func (e *Engine) Offer(ctx context.Context, offer storage.AuctionOffer) error {
	if offer.AuctionID == "" {
		e.logger.Warn("dropping auction offer without auction_id", "symbol", offer.Symbol)
		return nil
	}

	offer.Status = storage.OfferStatusOffered
	if err := e.offers.CreateOffer(ctx, offer); err != nil {
		return fmt.Errorf("create offer %s: %w", offer.AuctionID, err)
	}

	e.logger.Info("auction offer recorded",
		"auction_id", offer.AuctionID, "group_id", offer.GroupID,
		"symbol", offer.Symbol, "quantity", offer.Quantity)
	e.metrics.IncTransition("offer")
	return nil
}

func (e *Engine) Propose(ctx context.Context, auctionID string, p storage.Proposal) error {
	err := e.offers.AppendProposal(ctx, auctionID, p)
	if err != nil {
		if errors.Is(err, storage.ErrOfferNotFound) {
			e.logger.Warn("proposal for unknown auction dropped", "auction_id", auctionID, "proposal_id", p.ProposalID)
			return nil
		}
		return fmt.Errorf("append proposal %s: %w", auctionID, err)
	}

	e.logger.Info("auction proposal recorded",
		"auction_id", auctionID, "proposal_id", p.ProposalID,
		"group_id", p.GroupID, "symbol", p.Symbol, "quantity", p.Quantity)
	e.metrics.IncTransition("proposal")
	return nil
}

// Accept finalizes the offer as ACCEPTED and applies the local group's
// inventory effect with a three-way precedence: the offer being local wins
// over the accepted proposal being local, which wins over any other local
// proposal on the same offer.
func (e *Engine) Accept(ctx context.Context, auctionID, proposalID, symbol string, quantity int64, ts time.Time) error {
	offer, proposal, ok, err := e.lookup(ctx, auctionID, proposalID)
	if err != nil || !ok {
		return err
	}

	if err := e.offers.SetOfferStatus(ctx, auctionID, storage.OfferStatusAccepted, ts); err != nil {
		return fmt.Errorf("set offer accepted %s: %w", auctionID, err)
	}
	e.logger.Info("auction accepted", "auction_id", auctionID, "proposal_id", proposalID)
	e.metrics.IncTransition("acceptance")

	switch {
	case offer.GroupID == e.localGroup:
		return e.credit(ctx, auctionID, symbol, quantity, ts)
	case proposal.GroupID == e.localGroup:
		return e.credit(ctx, auctionID, offer.Symbol, offer.Quantity, ts)
	default:
		if local := localProposal(offer, e.localGroup); local != nil {
			return e.credit(ctx, auctionID, local.Symbol, local.Quantity, ts)
		}
	}
	return nil
}

// Reject finalizes the offer as REJECTED. A rejected local proposal has
// its implied earmark reversed: the proposed quantity returns to the local
// group's inventory.
func (e *Engine) Reject(ctx context.Context, auctionID, proposalID string, ts time.Time) error {
	_, proposal, ok, err := e.lookup(ctx, auctionID, proposalID)
	if err != nil || !ok {
		return err
	}

	if err := e.offers.SetOfferStatus(ctx, auctionID, storage.OfferStatusRejected, ts); err != nil {
		return fmt.Errorf("set offer rejected %s: %w", auctionID, err)
	}
	e.logger.Info("auction rejected", "auction_id", auctionID, "proposal_id", proposalID)
	e.metrics.IncTransition("rejection")

	if proposal.GroupID == e.localGroup {
		return e.credit(ctx, auctionID, proposal.Symbol, proposal.Quantity, ts)
	}
	return nil
}

// lookup resolves the offer and the referenced proposal. ok=false means
// the message was dropped with a diagnostic.
func (e *Engine) lookup(ctx context.Context, auctionID, proposalID string) (*storage.AuctionOffer, *storage.Proposal, bool, error) {
	if auctionID == "" || proposalID == "" {
		e.logger.Warn("dropping auction response without identifiers", "auction_id", auctionID, "proposal_id", proposalID)
		return nil, nil, false, nil
	}

	offer, err := e.offers.GetOffer(ctx, auctionID)
	if err != nil {
		if errors.Is(err, storage.ErrOfferNotFound) {
			e.logger.Warn("auction response for unknown offer dropped", "auction_id", auctionID)
			return nil, nil, false, nil
		}
		return nil, nil, false, fmt.Errorf("lookup offer %s: %w", auctionID, err)
	}

	for i := range offer.Proposals {
		if offer.Proposals[i].ProposalID == proposalID {
			return offer, &offer.Proposals[i], true, nil
		}
	}

	e.logger.Warn("auction response for unknown proposal dropped", "auction_id", auctionID, "proposal_id", proposalID)
	return nil, nil, false, nil
}

func (e *Engine) credit(ctx context.Context, auctionID, symbol string, quantity int64, ts time.Time) error {
	if err := e.holdings.AddHolding(ctx, symbol, quantity, ts); err != nil {
		return fmt.Errorf("credit local holding %s: %w", symbol, err)
	}
	e.logger.Info("local group inventory credited",
		"auction_id", auctionID, "symbol", symbol, "quantity", quantity)
	return nil
}

func localProposal(offer *storage.AuctionOffer, group string) *storage.Proposal {
	for i := range offer.Proposals {
		if offer.Proposals[i].GroupID == group {
			return &offer.Proposals[i]
		}
	}
	return nil
}

type Metrics struct {
	TransitionsTotal *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_auction_transitions_total",
				Help: "Auction state transitions applied, by operation.",
			},
			[]string{"operation"},
		),
	}
	registry.MustRegister(m.TransitionsTotal)
	return m
}

func (m *Metrics) IncTransition(operation string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(operation).Inc()
}
