package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luzhania/E1-arquitectura-de-software/internal/storage"
)

func newTestUpdater(t *testing.T) (*Updater, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewUpdater(store, logger), store
}

func entry(symbol string, quantity int64, price, longName string) storage.StockEntry {
	return storage.StockEntry{
		Symbol:    symbol,
		Quantity:  quantity,
		Price:     decimal.RequireFromString(price),
		LongName:  longName,
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestApplyIPOInsertsAndLogs(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	if err := u.ApplyIPO(ctx, entry("NVDA", 1000, "120.50", "NVIDIA Corp")); err != nil {
		t.Fatalf("ipo: %v", err)
	}

	stock, err := store.GetStock(ctx, "NVDA")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if stock.Quantity != 1000 || !stock.Price.Equal(decimal.RequireFromString("120.50")) {
		t.Errorf("stock = %+v", stock)
	}

	events := store.Events()
	if len(events) != 1 || events[0].Type != "IPO" || events[0].Quantity != 1000 {
		t.Errorf("events = %+v", events)
	}
}

func TestApplyIPOReplacesExisting(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	if err := u.ApplyIPO(ctx, entry("NVDA", 1000, "120.50", "NVIDIA Corp")); err != nil {
		t.Fatalf("first ipo: %v", err)
	}
	if err := u.ApplyIPO(ctx, entry("NVDA", 500, "95.00", "NVIDIA Corp")); err != nil {
		t.Fatalf("second ipo: %v", err)
	}

	stock, err := store.GetStock(ctx, "NVDA")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if stock.Quantity != 500 {
		t.Errorf("quantity = %d, want replacement 500", stock.Quantity)
	}
}

func TestApplyEmitAddsQuantityAndReprices(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	if err := u.ApplyIPO(ctx, entry("NVDA", 1000, "120.50", "NVIDIA Corp")); err != nil {
		t.Fatalf("ipo: %v", err)
	}
	if err := u.ApplyEmit(ctx, entry("NVDA", 500, "118.00", "")); err != nil {
		t.Fatalf("emit: %v", err)
	}

	stock, err := store.GetStock(ctx, "NVDA")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if stock.Quantity != 1500 {
		t.Errorf("quantity = %d, want 1500", stock.Quantity)
	}
	if !stock.Price.Equal(decimal.RequireFromString("118.00")) {
		t.Errorf("price = %s, want 118", stock.Price)
	}

	events := store.Events()
	if len(events) != 2 || events[1].Type != "EMIT" || events[1].Quantity != 500 {
		t.Errorf("events = %+v", events)
	}
}

func TestApplyEmitUnknownSymbolInserts(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	if err := u.ApplyEmit(ctx, entry("TSLA", 200, "250.00", "")); err != nil {
		t.Fatalf("emit: %v", err)
	}

	stock, err := store.GetStock(ctx, "TSLA")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if stock.Quantity != 200 {
		t.Errorf("quantity = %d, want 200", stock.Quantity)
	}
	// Insert path, no catalog event.
	if len(store.Events()) != 0 {
		t.Errorf("events = %+v", store.Events())
	}
}

func TestApplyUpdateRepricesOnly(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	if err := u.ApplyIPO(ctx, entry("NVDA", 1000, "120.50", "NVIDIA Corp")); err != nil {
		t.Fatalf("ipo: %v", err)
	}
	if err := u.ApplyUpdate(ctx, entry("NVDA", 9999, "121.25", "")); err != nil {
		t.Fatalf("update: %v", err)
	}

	stock, err := store.GetStock(ctx, "NVDA")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if stock.Quantity != 1000 {
		t.Errorf("quantity changed by price update: %d", stock.Quantity)
	}
	if !stock.Price.Equal(decimal.RequireFromString("121.25")) {
		t.Errorf("price = %s, want 121.25", stock.Price)
	}

	events := store.Events()
	if len(events) != 2 || events[1].Type != "UPDATE" || events[1].Quantity != 0 {
		t.Errorf("events = %+v", events)
	}
}

func TestApplyUpdateUnknownSymbolInsertsZeroQuantity(t *testing.T) {
	u, store := newTestUpdater(t)
	ctx := context.Background()

	if err := u.ApplyUpdate(ctx, entry("TSLA", 500, "250.00", "")); err != nil {
		t.Fatalf("update: %v", err)
	}

	stock, err := store.GetStock(ctx, "TSLA")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if stock.Quantity != 0 {
		t.Errorf("quantity = %d, want 0", stock.Quantity)
	}
}
