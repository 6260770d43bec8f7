package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is the in-process Store variant. It backs the tests and is
// the implementation selected when no database is configured.
type MemoryStore struct {
	mu           sync.Mutex
	requests     map[string]TradeRequest
	stocks       map[string]StockEntry
	transactions map[string]Transaction
	users        map[string]UserWallet
	offers       map[string]AuctionOffer
	holdings     map[string]AdminHolding
	events       []EventLogEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:     make(map[string]TradeRequest),
		stocks:       make(map[string]StockEntry),
		transactions: make(map[string]Transaction),
		users:        make(map[string]UserWallet),
		offers:       make(map[string]AuctionOffer),
		holdings:     make(map[string]AdminHolding),
	}
}

func (s *MemoryStore) CreateRequest(_ context.Context, req TradeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.RequestID]; ok {
		return ErrRequestExists
	}
	s.requests[req.RequestID] = req
	return nil
}

func (s *MemoryStore) GetRequest(_ context.Context, requestID string) (*TradeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return &req, nil
}

func (s *MemoryStore) SetRequestStatus(_ context.Context, requestID, status string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	req.Status = status
	req.Timestamp = ts
	s.requests[requestID] = req
	return nil
}

func (s *MemoryStore) SetRequestApplied(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	req.Applied = true
	s.requests[requestID] = req
	return nil
}

func (s *MemoryStore) GetStock(_ context.Context, symbol string) (*StockEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.stocks[symbol]
	if !ok {
		return nil, ErrStockNotFound
	}
	return &entry, nil
}

func (s *MemoryStore) ListStocks(_ context.Context, page, count int) ([]StockEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page < 1 {
		page = 1
	}
	if count < 1 {
		count = 25
	}

	symbols := make([]string, 0, len(s.stocks))
	for symbol := range s.stocks {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	start := (page - 1) * count
	if start >= len(symbols) {
		return nil, nil
	}
	end := start + count
	if end > len(symbols) {
		end = len(symbols)
	}

	out := make([]StockEntry, 0, end-start)
	for _, symbol := range symbols[start:end] {
		out = append(out, s.stocks[symbol])
	}
	return out, nil
}

func (s *MemoryStore) UpsertStock(_ context.Context, entry StockEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stocks[entry.Symbol] = entry
	return nil
}

func (s *MemoryStore) AdjustStockQuantity(_ context.Context, symbol string, delta int64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.stocks[symbol]
	if !ok {
		return ErrStockNotFound
	}
	if entry.Quantity+delta < 0 {
		return ErrInsufficientStock
	}
	entry.Quantity += delta
	entry.Timestamp = ts
	s.stocks[symbol] = entry
	return nil
}

func (s *MemoryStore) SetStockPrice(_ context.Context, symbol string, price decimal.Decimal, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.stocks[symbol]
	if !ok {
		return ErrStockNotFound
	}
	entry.Price = price
	entry.Timestamp = ts
	s.stocks[symbol] = entry
	return nil
}

func (s *MemoryStore) CreateTransaction(_ context.Context, tx Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.RequestID] = tx
	return nil
}

func (s *MemoryStore) GetTransactionByRequest(_ context.Context, requestID string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[requestID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &tx, nil
}

func (s *MemoryStore) ListTransactionsByUser(_ context.Context, userID string, page, count int) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page < 1 {
		page = 1
	}
	if count < 1 {
		count = 25
	}

	var all []Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			all = append(all, tx)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })

	start := (page - 1) * count
	if start >= len(all) {
		return nil, nil
	}
	end := start + count
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (s *MemoryStore) SetTransactionStatus(_ context.Context, requestID, status string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[requestID]
	if !ok {
		return ErrTransactionNotFound
	}
	tx.Status = status
	tx.Timestamp = ts
	s.transactions[requestID] = tx
	return nil
}

func (s *MemoryStore) SetTransactionGain(_ context.Context, requestID string, gain decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[requestID]
	if !ok {
		return ErrTransactionNotFound
	}
	tx.EstimatedGain = gain
	tx.HasGain = true
	s.transactions[requestID] = tx
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, userID string) (*UserWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (s *MemoryStore) AdjustBalance(_ context.Context, userID string, delta decimal.Decimal, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Balance = user.Balance.Add(delta)
	user.Timestamp = ts
	s.users[userID] = user
	return nil
}

// PutUser seeds a wallet. Wallets are never created by the reconciliation
// path, so tests and bootstrap go through here.
func (s *MemoryStore) PutUser(user UserWallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.UserID] = user
}

func (s *MemoryStore) CreateOffer(_ context.Context, offer AuctionOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offers[offer.AuctionID]; ok {
		return nil
	}
	if offer.Proposals == nil {
		offer.Proposals = []Proposal{}
	}
	s.offers[offer.AuctionID] = offer
	return nil
}

func (s *MemoryStore) GetOffer(_ context.Context, auctionID string) (*AuctionOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	offer, ok := s.offers[auctionID]
	if !ok {
		return nil, ErrOfferNotFound
	}
	copied := offer
	copied.Proposals = append([]Proposal(nil), offer.Proposals...)
	return &copied, nil
}

func (s *MemoryStore) AppendProposal(_ context.Context, auctionID string, p Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	offer, ok := s.offers[auctionID]
	if !ok {
		return ErrOfferNotFound
	}
	offer.Proposals = append(offer.Proposals, p)
	s.offers[auctionID] = offer
	return nil
}

func (s *MemoryStore) SetOfferStatus(_ context.Context, auctionID, status string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	offer, ok := s.offers[auctionID]
	if !ok {
		return ErrOfferNotFound
	}
	offer.Status = status
	offer.Timestamp = ts
	s.offers[auctionID] = offer
	return nil
}

func (s *MemoryStore) AddHolding(_ context.Context, symbol string, quantity int64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	holding := s.holdings[symbol]
	holding.Symbol = symbol
	holding.Quantity += quantity
	holding.Timestamp = ts
	s.holdings[symbol] = holding
	return nil
}

func (s *MemoryStore) GetHolding(symbol string) (AdminHolding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	holding, ok := s.holdings[symbol]
	return holding, ok
}

func (s *MemoryStore) AppendEvent(_ context.Context, e EventLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *MemoryStore) Events() []EventLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EventLogEntry(nil), s.events...)
}
