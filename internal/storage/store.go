package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrRequestExists       = errors.New("request already exists")
	ErrRequestNotFound     = errors.New("request not found")
	ErrStockNotFound       = errors.New("stock not found")
	ErrInsufficientStock   = errors.New("insufficient stock quantity")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrOfferNotFound       = errors.New("auction offer not found")
	ErrProposalNotFound    = errors.New("proposal not found")
)

// RequestStore is the request ledger. CreateRequest is idempotent at the
// store level: a duplicate request identifier returns ErrRequestExists and
// leaves the existing row untouched.
type RequestStore interface {
	CreateRequest(ctx context.Context, req TradeRequest) error
	GetRequest(ctx context.Context, requestID string) (*TradeRequest, error)
	SetRequestStatus(ctx context.Context, requestID, status string, ts time.Time) error
	SetRequestApplied(ctx context.Context, requestID string) error
}

// StockStore guards the non-negative quantity invariant: a decrement that
// would drive a quantity below zero returns ErrInsufficientStock without
// mutating the entry.
type StockStore interface {
	GetStock(ctx context.Context, symbol string) (*StockEntry, error)
	ListStocks(ctx context.Context, page, count int) ([]StockEntry, error)
	UpsertStock(ctx context.Context, entry StockEntry) error
	AdjustStockQuantity(ctx context.Context, symbol string, delta int64, ts time.Time) error
	SetStockPrice(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) error
}

type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx Transaction) error
	GetTransactionByRequest(ctx context.Context, requestID string) (*Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID string, page, count int) ([]Transaction, error)
	SetTransactionStatus(ctx context.Context, requestID, status string, ts time.Time) error
	SetTransactionGain(ctx context.Context, requestID string, gain decimal.Decimal) error
}

// WalletStore mutates balances additively. Wallets are never created by
// AdjustBalance; an unknown user returns ErrUserNotFound.
type WalletStore interface {
	GetUser(ctx context.Context, userID string) (*UserWallet, error)
	AdjustBalance(ctx context.Context, userID string, delta decimal.Decimal, ts time.Time) error
}

type AuctionStore interface {
	CreateOffer(ctx context.Context, offer AuctionOffer) error
	GetOffer(ctx context.Context, auctionID string) (*AuctionOffer, error)
	AppendProposal(ctx context.Context, auctionID string, p Proposal) error
	SetOfferStatus(ctx context.Context, auctionID, status string, ts time.Time) error
}

type HoldingStore interface {
	AddHolding(ctx context.Context, symbol string, quantity int64, ts time.Time) error
}

type EventStore interface {
	AppendEvent(ctx context.Context, e EventLogEntry) error
}

// Store is the full surface the three processes share. Both the Mongo and
// the in-memory implementation satisfy it; which one runs is a composition
// time decision.
type Store interface {
	RequestStore
	StockStore
	TransactionStore
	WalletStore
	AuctionStore
	HoldingStore
	EventStore
}
