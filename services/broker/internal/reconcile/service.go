package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/luzhania/E1-arquitectura-de-software/internal/storage"
	"github.com/shopspring/decimal"
)

// Service is the request ledger plus the reconcilers that fire on a
// resolution: inventory, wallet, transaction mirror and the event log.
//
// Delivery is at least once, so every mutation is either idempotent at the
// store level (duplicate-key create) or guarded by the request's applied
// flag. There are no cross-document transactions; a crash mid-resolution
// can leave inventory updated with the wallet untouched, which is accepted
// and left to an external sweep.
type Service struct {
	requests storage.RequestStore
	stocks   storage.StockStore
	txs      storage.TransactionStore
	wallets  storage.WalletStore
	events   storage.EventStore
	logger   *slog.Logger
	metrics  *Metrics
}

func New(store storage.Store, logger *slog.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		requests: store,
		stocks:   store,
		txs:      store,
		wallets:  store,
		events:   store,
		logger:   logger,
		metrics:  metrics,
	}
}

// Create records a purchase request as PENDING/unapplied. A redelivered
// request for an identifier already in the ledger is a silent no-op.
func (s *Service) Create(ctx context.Context, req storage.TradeRequest) error {
	if req.RequestID == "" {
		s.logger.Warn("dropping purchase request without request_id", "symbol", req.Symbol)
		return nil
	}

	req.Status = storage.StatusPending
	req.Applied = false
	if req.Operation == "" {
		req.Operation = storage.OperationBuy
	}

	err := s.requests.CreateRequest(ctx, req)
	if err != nil {
		if errors.Is(err, storage.ErrRequestExists) {
			s.logger.Debug("duplicate purchase request ignored", "request_id", req.RequestID)
			s.metrics.IncDuplicateRequest()
			return nil
		}
		return fmt.Errorf("create request %s: %w", req.RequestID, err)
	}

	s.logger.Info("purchase request recorded",
		"request_id", req.RequestID, "group_id", req.GroupID,
		"symbol", req.Symbol, "quantity", req.Quantity)
	return nil
}

// Resolve applies a resolution message to the ledger and fans out to the
// transaction mirror and the inventory/wallet reconcilers. A resolution
// for an unknown request is dropped, never retried.
func (s *Service) Resolve(ctx context.Context, requestID, status string, ts time.Time) error {
	if requestID == "" {
		s.logger.Warn("dropping resolution without request_id", "status", status)
		return nil
	}

	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrRequestNotFound) {
			s.logger.Warn("resolution for unknown request dropped", "request_id", requestID, "status", status)
			return nil
		}
		return fmt.Errorf("lookup request %s: %w", requestID, err)
	}

	// Status overwrite is not guarded; later messages win.
	if err := s.requests.SetRequestStatus(ctx, requestID, status, ts); err != nil {
		return fmt.Errorf("set request status %s: %w", requestID, err)
	}
	s.syncTransaction(ctx, requestID, status, ts)

	stock, err := s.stocks.GetStock(ctx, req.Symbol)
	if err != nil {
		if errors.Is(err, storage.ErrStockNotFound) {
			s.logger.Warn("stock missing for resolution", "request_id", requestID, "symbol", req.Symbol)
			return nil
		}
		return fmt.Errorf("lookup stock %s: %w", req.Symbol, err)
	}

	switch status {
	case storage.StatusAccepted:
		return s.applyAccepted(ctx, req, stock, ts)
	case storage.StatusRejected:
		return s.applyRejected(ctx, req, stock, ts)
	default:
		s.logger.Warn("resolution with unknown status dropped", "request_id", requestID, "status", status)
		return nil
	}
}

// syncTransaction mirrors ledger status onto the externally visible
// transaction record. No-op when the transaction does not exist.
func (s *Service) syncTransaction(ctx context.Context, requestID, status string, ts time.Time) {
	err := s.txs.SetTransactionStatus(ctx, requestID, status, ts)
	if err != nil {
		if errors.Is(err, storage.ErrTransactionNotFound) {
			s.logger.Debug("no transaction to mirror", "request_id", requestID)
			return
		}
		s.logger.Error("transaction mirror failed", "request_id", requestID, "error", err)
	}
}

func (s *Service) applyAccepted(ctx context.Context, req *storage.TradeRequest, stock *storage.StockEntry, ts time.Time) error {
	if req.Applied {
		s.logger.Debug("accepted resolution already applied, redelivery ignored", "request_id", req.RequestID)
		s.metrics.IncResolution(storage.StatusAccepted, "already_applied")
		return nil
	}

	err := s.stocks.AdjustStockQuantity(ctx, req.Symbol, -req.Quantity, ts)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientStock) {
			// Refused, not clamped. The ledger stays ACCEPTED with
			// applied=false, a surfaced inconsistency for external
			// remediation.
			s.logger.Warn("inventory decrement refused, would go negative",
				"request_id", req.RequestID, "symbol", req.Symbol,
				"requested", req.Quantity, "available", stock.Quantity)
			s.metrics.IncRefusal()
			return nil
		}
		return fmt.Errorf("decrement stock %s: %w", req.Symbol, err)
	}

	if err := s.requests.SetRequestApplied(ctx, req.RequestID); err != nil {
		return fmt.Errorf("mark request applied %s: %w", req.RequestID, err)
	}

	amount := stock.Price.Mul(decimal.NewFromInt(req.Quantity))
	s.adjustWallet(ctx, req.RequestID, amount.Neg(), ts)

	if err := s.events.AppendEvent(ctx, storage.EventLogEntry{
		Type:      storage.OperationBuy,
		Symbol:    req.Symbol,
		Quantity:  req.Quantity,
		GroupID:   req.GroupID,
		Price:     stock.Price,
		Timestamp: ts,
	}); err != nil {
		s.logger.Error("event log append failed", "request_id", req.RequestID, "error", err)
	}

	s.logger.Info("accepted resolution applied",
		"request_id", req.RequestID, "symbol", req.Symbol,
		"quantity", req.Quantity, "debit", amount.String())
	s.metrics.IncResolution(storage.StatusAccepted, "applied")
	return nil
}

func (s *Service) applyRejected(ctx context.Context, req *storage.TradeRequest, stock *storage.StockEntry, ts time.Time) error {
	if req.Applied {
		// A quantity change was executed for this request; add it back.
		// The flag stays set.
		if err := s.stocks.AdjustStockQuantity(ctx, req.Symbol, req.Quantity, ts); err != nil {
			return fmt.Errorf("restore stock %s: %w", req.Symbol, err)
		}
		s.logger.Info("rejected resolution restored inventory",
			"request_id", req.RequestID, "symbol", req.Symbol, "quantity", req.Quantity)
	} else {
		// Record that a reject has been consumed for this request.
		if err := s.requests.SetRequestApplied(ctx, req.RequestID); err != nil {
			return fmt.Errorf("mark request applied %s: %w", req.RequestID, err)
		}
	}

	amount := stock.Price.Mul(decimal.NewFromInt(req.Quantity))
	s.adjustWallet(ctx, req.RequestID, amount, ts)
	s.metrics.IncResolution(storage.StatusRejected, "applied")
	return nil
}

// adjustWallet moves funds in lockstep with a resolution. Wallets are
// never created here: missing transaction or unknown user skips the
// mutation with a diagnostic.
func (s *Service) adjustWallet(ctx context.Context, requestID string, delta decimal.Decimal, ts time.Time) {
	tx, err := s.txs.GetTransactionByRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrTransactionNotFound) {
			s.logger.Warn("wallet mutation skipped, no correlated transaction", "request_id", requestID)
		} else {
			s.logger.Error("transaction lookup failed", "request_id", requestID, "error", err)
		}
		s.metrics.IncWalletSkip()
		return
	}

	if err := s.wallets.AdjustBalance(ctx, tx.UserID, delta, ts); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.logger.Warn("wallet mutation skipped, unknown user", "request_id", requestID, "user_id", tx.UserID)
		} else {
			s.logger.Error("wallet mutation failed", "request_id", requestID, "user_id", tx.UserID, "error", err)
		}
		s.metrics.IncWalletSkip()
		return
	}

	s.logger.Info("wallet adjusted", "request_id", requestID, "user_id", tx.UserID, "delta", delta.String())
}
