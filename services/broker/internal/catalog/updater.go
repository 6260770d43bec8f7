package catalog

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	"github.com/luzhania/E1-arquitectura-de-software/internal/storage"
)

const (
	eventIPO    = "IPO"
	eventEmit   = "EMIT"
	eventUpdate = "UPDATE"
)

// Updater applies catalog events to the stock inventory. It shares the
// store with the reconcilers but only ever touches stocks and the event
// log.
type Updater struct {
	stocks storage.StockStore
	events storage.EventStore
	logger *slog.Logger
}

func NewUpdater(store storage.Store, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{stocks: store, events: store, logger: logger}
}

// ApplyIPO registers or replaces the catalog entry for a symbol.
func (u *Updater) ApplyIPO(ctx context.Context, entry storage.StockEntry) error {
	if err := u.stocks.UpsertStock(ctx, entry); err != nil {
		return fmt.Errorf("ipo %s: %w", entry.Symbol, err)
	}
	u.logger.Info("ipo registered", "symbol", entry.Symbol, "quantity", entry.Quantity, "price", entry.Price.String())

	u.logEvent(ctx, eventIPO, entry, entry.Quantity)
	return nil
}

// ApplyEmit adds quantity to an existing entry at a new price. An emission
// for an unknown symbol inserts the entry instead.
func (u *Updater) ApplyEmit(ctx context.Context, entry storage.StockEntry) error {
	_, err := u.stocks.GetStock(ctx, entry.Symbol)
	if err != nil {
		if errors.Is(err, storage.ErrStockNotFound) {
			if err := u.stocks.UpsertStock(ctx, entry); err != nil {
				return fmt.Errorf("emit insert %s: %w", entry.Symbol, err)
			}
			u.logger.Info("emit for unknown symbol, entry inserted", "symbol", entry.Symbol)
			return nil
		}
		return fmt.Errorf("emit lookup %s: %w", entry.Symbol, err)
	}

	if err := u.stocks.AdjustStockQuantity(ctx, entry.Symbol, entry.Quantity, entry.Timestamp); err != nil {
		return fmt.Errorf("emit quantity %s: %w", entry.Symbol, err)
	}
	if err := u.stocks.SetStockPrice(ctx, entry.Symbol, entry.Price, entry.Timestamp); err != nil {
		return fmt.Errorf("emit price %s: %w", entry.Symbol, err)
	}
	u.logger.Info("emission applied", "symbol", entry.Symbol, "quantity", entry.Quantity, "price", entry.Price.String())

	u.logEvent(ctx, eventEmit, entry, entry.Quantity)
	return nil
}

// ApplyUpdate changes the price of an existing entry. An update for an
// unknown symbol inserts it with zero quantity.
func (u *Updater) ApplyUpdate(ctx context.Context, entry storage.StockEntry) error {
	_, err := u.stocks.GetStock(ctx, entry.Symbol)
	if err != nil {
		if errors.Is(err, storage.ErrStockNotFound) {
			entry.Quantity = 0
			if err := u.stocks.UpsertStock(ctx, entry); err != nil {
				return fmt.Errorf("update insert %s: %w", entry.Symbol, err)
			}
			u.logger.Info("update for unknown symbol, entry inserted", "symbol", entry.Symbol)
			return nil
		}
		return fmt.Errorf("update lookup %s: %w", entry.Symbol, err)
	}

	if err := u.stocks.SetStockPrice(ctx, entry.Symbol, entry.Price, entry.Timestamp); err != nil {
		return fmt.Errorf("update price %s: %w", entry.Symbol, err)
	}
	u.logger.Info("price updated", "symbol", entry.Symbol, "price", entry.Price.String())

	u.logEvent(ctx, eventUpdate, entry, 0)
	return nil
}

func (u *Updater) logEvent(ctx context.Context, eventType string, entry storage.StockEntry, quantity int64) {
	err := u.events.AppendEvent(ctx, storage.EventLogEntry{
		Type:      eventType,
		Symbol:    entry.Symbol,
		Quantity:  quantity,
		Price:     entry.Price,
		LongName:  entry.LongName,
		Timestamp: entry.Timestamp,
	})
	if err != nil {
		u.logger.Error("event log append failed", "type", eventType, "symbol", entry.Symbol, "error", err)
	}
}
