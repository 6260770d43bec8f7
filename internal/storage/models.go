package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending  = "PENDING"
	StatusAccepted = "ACCEPTED"
	StatusRejected = "REJECTED"

	OfferStatusOffered  = "OFFERED"
	OfferStatusAccepted = "ACCEPTED"
	OfferStatusRejected = "REJECTED"

	OperationBuy = "BUY"
)

// TradeRequest is the ledger row for one purchase request. Applied marks
// whether the inventory delta for this request has been executed.
type TradeRequest struct {
	RequestID    string    `bson:"request_id"`
	GroupID      string    `bson:"group_id"`
	Symbol       string    `bson:"symbol"`
	Quantity     int64     `bson:"quantity"`
	Operation    string    `bson:"operation"`
	Status       string    `bson:"status"`
	Applied      bool      `bson:"applied"`
	DepositToken string    `bson:"deposit_token,omitempty"`
	Timestamp    time.Time `bson:"timestamp,omitempty"`
}

type StockEntry struct {
	Symbol    string          `bson:"symbol"`
	Quantity  int64           `bson:"quantity"`
	Price     decimal.Decimal `bson:"-"`
	LongName  string          `bson:"long_name,omitempty"`
	Timestamp time.Time       `bson:"timestamp,omitempty"`
}

// Transaction is the externally visible record the HTTP API creates at
// purchase time; the reconciliation engine only mirrors status/timestamp
// onto it and the estimation worker fills EstimatedGain.
type Transaction struct {
	TransactionID string          `bson:"transaction_id"`
	RequestID     string          `bson:"request_id"`
	UserID        string          `bson:"user_id"`
	Symbol        string          `bson:"symbol"`
	Quantity      int64           `bson:"quantity"`
	Status        string          `bson:"status"`
	ReceiptURL    string          `bson:"receipt_url,omitempty"`
	EstimatedGain decimal.Decimal `bson:"-"`
	HasGain       bool            `bson:"-"`
	Timestamp     time.Time       `bson:"timestamp,omitempty"`
}

type UserWallet struct {
	UserID    string          `bson:"user_id"`
	Balance   decimal.Decimal `bson:"-"`
	Timestamp time.Time       `bson:"timestamp,omitempty"`
}

type Proposal struct {
	ProposalID string    `bson:"proposal_id"`
	GroupID    string    `bson:"group_id"`
	Symbol     string    `bson:"symbol"`
	Quantity   int64     `bson:"quantity"`
	Timestamp  time.Time `bson:"timestamp,omitempty"`
}

// AuctionOffer is one negotiation unit. Proposals is append-only and is
// frozen, not cleared, once the offer reaches a terminal status.
type AuctionOffer struct {
	AuctionID string     `bson:"auction_id"`
	Symbol    string     `bson:"symbol"`
	Quantity  int64      `bson:"quantity"`
	GroupID   string     `bson:"group_id"`
	Status    string     `bson:"status"`
	Proposals []Proposal `bson:"proposals"`
	Timestamp time.Time  `bson:"timestamp,omitempty"`
}

// AdminHolding tracks the local group's own inventory won or recovered
// through auctions, keyed by symbol.
type AdminHolding struct {
	Symbol    string    `bson:"symbol"`
	Quantity  int64     `bson:"quantity"`
	Timestamp time.Time `bson:"timestamp,omitempty"`
}

type EventLogEntry struct {
	Type      string          `bson:"type"`
	Symbol    string          `bson:"symbol"`
	Quantity  int64           `bson:"quantity"`
	GroupID   string          `bson:"group_id,omitempty"`
	Price     decimal.Decimal `bson:"-"`
	LongName  string          `bson:"long_name,omitempty"`
	Timestamp time.Time       `bson:"timestamp,omitempty"`
}
