package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collRequests      = "requests"
	collStocks        = "current_stocks"
	collTransactions  = "transactions"
	collUsers         = "users"
	collAuctionOffers = "auction_offers"
	collAdminHoldings = "admin_holdings"
	collEventLog      = "event_log"
)

// MongoStore implements Store on a shared MongoDB database. Every method
// is a single independent read or write; there are no cross-document
// transactions, per the partial-failure model the subscribers accept.
type MongoStore struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewMongoStore(db *mongo.Database, logger *slog.Logger) *MongoStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoStore{db: db, logger: logger}
}

func Connect(ctx context.Context, uri, dbName string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client.Database(dbName), nil
}

// EnsureIndexes creates the unique indexes the idempotent-create guards
// rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := []struct {
		coll string
		key  string
	}{
		{collRequests, "request_id"},
		{collStocks, "symbol"},
		{collTransactions, "request_id"},
		{collUsers, "user_id"},
		{collAuctionOffers, "auction_id"},
		{collAdminHoldings, "symbol"},
	}
	for _, spec := range specs {
		_, err := s.db.Collection(spec.coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: spec.key, Value: 1}},
			Options: unique,
		})
		if err != nil {
			return fmt.Errorf("index %s.%s: %w", spec.coll, spec.key, err)
		}
	}
	return nil
}

// Documents with decimal fields keep them as Decimal128 on the wire.

type stockDoc struct {
	Symbol    string               `bson:"symbol"`
	Quantity  int64                `bson:"quantity"`
	Price     primitive.Decimal128 `bson:"price"`
	LongName  string               `bson:"long_name,omitempty"`
	Timestamp time.Time            `bson:"timestamp,omitempty"`
}

type transactionDoc struct {
	TransactionID string                `bson:"transaction_id"`
	RequestID     string                `bson:"request_id"`
	UserID        string                `bson:"user_id"`
	Symbol        string                `bson:"symbol"`
	Quantity      int64                 `bson:"quantity"`
	Status        string                `bson:"status"`
	ReceiptURL    string                `bson:"receipt_url,omitempty"`
	EstimatedGain *primitive.Decimal128 `bson:"estimated_gain,omitempty"`
	Timestamp     time.Time             `bson:"timestamp,omitempty"`
}

type userDoc struct {
	UserID    string               `bson:"user_id"`
	Balance   primitive.Decimal128 `bson:"balance"`
	Timestamp time.Time            `bson:"timestamp,omitempty"`
}

type eventDoc struct {
	Type      string               `bson:"type"`
	Symbol    string               `bson:"symbol"`
	Quantity  int64                `bson:"quantity"`
	GroupID   string               `bson:"group_id,omitempty"`
	Price     primitive.Decimal128 `bson:"price"`
	LongName  string               `bson:"long_name,omitempty"`
	Timestamp time.Time            `bson:"timestamp,omitempty"`
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}
	}
	return v
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (s *MongoStore) CreateRequest(ctx context.Context, req TradeRequest) error {
	_, err := s.db.Collection(collRequests).InsertOne(ctx, req)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrRequestExists
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *MongoStore) GetRequest(ctx context.Context, requestID string) (*TradeRequest, error) {
	var req TradeRequest
	err := s.db.Collection(collRequests).FindOne(ctx, bson.M{"request_id": requestID}).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("find request: %w", err)
	}
	return &req, nil
}

func (s *MongoStore) SetRequestStatus(ctx context.Context, requestID, status string, ts time.Time) error {
	res, err := s.db.Collection(collRequests).UpdateOne(ctx,
		bson.M{"request_id": requestID},
		bson.M{"$set": bson.M{"status": status, "timestamp": ts}},
	)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *MongoStore) SetRequestApplied(ctx context.Context, requestID string) error {
	res, err := s.db.Collection(collRequests).UpdateOne(ctx,
		bson.M{"request_id": requestID},
		bson.M{"$set": bson.M{"applied": true}},
	)
	if err != nil {
		return fmt.Errorf("update request applied: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *MongoStore) GetStock(ctx context.Context, symbol string) (*StockEntry, error) {
	var doc stockDoc
	err := s.db.Collection(collStocks).FindOne(ctx, bson.M{"symbol": symbol}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrStockNotFound
		}
		return nil, fmt.Errorf("find stock: %w", err)
	}
	return stockFromDoc(doc), nil
}

func (s *MongoStore) ListStocks(ctx context.Context, page, count int) ([]StockEntry, error) {
	if page < 1 {
		page = 1
	}
	if count < 1 {
		count = 25
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "symbol", Value: 1}}).
		SetSkip(int64((page - 1) * count)).
		SetLimit(int64(count))

	cur, err := s.db.Collection(collStocks).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	defer cur.Close(ctx)

	var out []StockEntry
	for cur.Next(ctx) {
		var doc stockDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode stock: %w", err)
		}
		out = append(out, *stockFromDoc(doc))
	}
	return out, cur.Err()
}

func (s *MongoStore) UpsertStock(ctx context.Context, entry StockEntry) error {
	doc := stockDoc{
		Symbol:    entry.Symbol,
		Quantity:  entry.Quantity,
		Price:     toDecimal128(entry.Price),
		LongName:  entry.LongName,
		Timestamp: entry.Timestamp,
	}
	_, err := s.db.Collection(collStocks).ReplaceOne(ctx,
		bson.M{"symbol": entry.Symbol}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert stock: %w", err)
	}
	return nil
}

// AdjustStockQuantity applies a quantity delta. Negative deltas carry a
// conditional filter so a concurrent or redelivered decrement can never
// drive the quantity below zero.
func (s *MongoStore) AdjustStockQuantity(ctx context.Context, symbol string, delta int64, ts time.Time) error {
	filter := bson.M{"symbol": symbol}
	if delta < 0 {
		filter["quantity"] = bson.M{"$gte": -delta}
	}
	res, err := s.db.Collection(collStocks).UpdateOne(ctx, filter,
		bson.M{"$inc": bson.M{"quantity": delta}, "$set": bson.M{"timestamp": ts}},
	)
	if err != nil {
		return fmt.Errorf("adjust stock quantity: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, getErr := s.GetStock(ctx, symbol); getErr != nil {
			return getErr
		}
		return ErrInsufficientStock
	}
	return nil
}

func (s *MongoStore) SetStockPrice(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) error {
	res, err := s.db.Collection(collStocks).UpdateOne(ctx,
		bson.M{"symbol": symbol},
		bson.M{"$set": bson.M{"price": toDecimal128(price), "timestamp": ts}},
	)
	if err != nil {
		return fmt.Errorf("update stock price: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrStockNotFound
	}
	return nil
}

func (s *MongoStore) CreateTransaction(ctx context.Context, tx Transaction) error {
	doc := transactionDoc{
		TransactionID: tx.TransactionID,
		RequestID:     tx.RequestID,
		UserID:        tx.UserID,
		Symbol:        tx.Symbol,
		Quantity:      tx.Quantity,
		Status:        tx.Status,
		ReceiptURL:    tx.ReceiptURL,
		Timestamp:     tx.Timestamp,
	}
	if _, err := s.db.Collection(collTransactions).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *MongoStore) GetTransactionByRequest(ctx context.Context, requestID string) (*Transaction, error) {
	var doc transactionDoc
	err := s.db.Collection(collTransactions).FindOne(ctx, bson.M{"request_id": requestID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return transactionFromDoc(doc), nil
}

func (s *MongoStore) ListTransactionsByUser(ctx context.Context, userID string, page, count int) ([]Transaction, error) {
	if page < 1 {
		page = 1
	}
	if count < 1 {
		count = 25
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64((page - 1) * count)).
		SetLimit(int64(count))

	cur, err := s.db.Collection(collTransactions).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer cur.Close(ctx)

	var out []Transaction
	for cur.Next(ctx) {
		var doc transactionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		out = append(out, *transactionFromDoc(doc))
	}
	return out, cur.Err()
}

func (s *MongoStore) SetTransactionStatus(ctx context.Context, requestID, status string, ts time.Time) error {
	res, err := s.db.Collection(collTransactions).UpdateOne(ctx,
		bson.M{"request_id": requestID},
		bson.M{"$set": bson.M{"status": status, "timestamp": ts}},
	)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (s *MongoStore) SetTransactionGain(ctx context.Context, requestID string, gain decimal.Decimal) error {
	value := toDecimal128(gain)
	res, err := s.db.Collection(collTransactions).UpdateOne(ctx,
		bson.M{"request_id": requestID},
		bson.M{"$set": bson.M{"estimated_gain": value}},
	)
	if err != nil {
		return fmt.Errorf("update transaction gain: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, userID string) (*UserWallet, error) {
	var doc userDoc
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &UserWallet{UserID: doc.UserID, Balance: fromDecimal128(doc.Balance), Timestamp: doc.Timestamp}, nil
}

// UpsertUser writes a wallet unconditionally. The reconciliation path
// never creates wallets, so only bootstrap tooling calls this.
func (s *MongoStore) UpsertUser(ctx context.Context, user UserWallet) error {
	_, err := s.db.Collection(collUsers).UpdateOne(ctx,
		bson.M{"user_id": user.UserID},
		bson.M{"$set": bson.M{"balance": toDecimal128(user.Balance), "timestamp": user.Timestamp}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// AdjustBalance applies the delta server-side. $inc on a Decimal128 keeps
// the adjustment a single atomic operation, so a writer in another process
// cannot interleave between a read and a write of the same wallet.
func (s *MongoStore) AdjustBalance(ctx context.Context, userID string, delta decimal.Decimal, ts time.Time) error {
	res, err := s.db.Collection(collUsers).UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$inc": bson.M{"balance": toDecimal128(delta)},
			"$set": bson.M{"timestamp": ts},
		},
	)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoStore) CreateOffer(ctx context.Context, offer AuctionOffer) error {
	if offer.Proposals == nil {
		offer.Proposals = []Proposal{}
	}
	_, err := s.db.Collection(collAuctionOffers).InsertOne(ctx, offer)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert auction offer: %w", err)
	}
	return nil
}

func (s *MongoStore) GetOffer(ctx context.Context, auctionID string) (*AuctionOffer, error) {
	var offer AuctionOffer
	err := s.db.Collection(collAuctionOffers).FindOne(ctx, bson.M{"auction_id": auctionID}).Decode(&offer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("find auction offer: %w", err)
	}
	return &offer, nil
}

func (s *MongoStore) AppendProposal(ctx context.Context, auctionID string, p Proposal) error {
	res, err := s.db.Collection(collAuctionOffers).UpdateOne(ctx,
		bson.M{"auction_id": auctionID},
		bson.M{"$push": bson.M{"proposals": p}},
	)
	if err != nil {
		return fmt.Errorf("append proposal: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrOfferNotFound
	}
	return nil
}

func (s *MongoStore) SetOfferStatus(ctx context.Context, auctionID, status string, ts time.Time) error {
	res, err := s.db.Collection(collAuctionOffers).UpdateOne(ctx,
		bson.M{"auction_id": auctionID},
		bson.M{"$set": bson.M{"status": status, "timestamp": ts}},
	)
	if err != nil {
		return fmt.Errorf("update offer status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrOfferNotFound
	}
	return nil
}

func (s *MongoStore) AddHolding(ctx context.Context, symbol string, quantity int64, ts time.Time) error {
	_, err := s.db.Collection(collAdminHoldings).UpdateOne(ctx,
		bson.M{"symbol": symbol},
		bson.M{"$inc": bson.M{"quantity": quantity}, "$set": bson.M{"timestamp": ts}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("add holding: %w", err)
	}
	return nil
}

func (s *MongoStore) AppendEvent(ctx context.Context, e EventLogEntry) error {
	doc := eventDoc{
		Type:      e.Type,
		Symbol:    e.Symbol,
		Quantity:  e.Quantity,
		GroupID:   e.GroupID,
		Price:     toDecimal128(e.Price),
		LongName:  e.LongName,
		Timestamp: e.Timestamp,
	}
	if _, err := s.db.Collection(collEventLog).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func stockFromDoc(doc stockDoc) *StockEntry {
	return &StockEntry{
		Symbol:    doc.Symbol,
		Quantity:  doc.Quantity,
		Price:     fromDecimal128(doc.Price),
		LongName:  doc.LongName,
		Timestamp: doc.Timestamp,
	}
}

func transactionFromDoc(doc transactionDoc) *Transaction {
	tx := &Transaction{
		TransactionID: doc.TransactionID,
		RequestID:     doc.RequestID,
		UserID:        doc.UserID,
		Symbol:        doc.Symbol,
		Quantity:      doc.Quantity,
		Status:        doc.Status,
		ReceiptURL:    doc.ReceiptURL,
		Timestamp:     doc.Timestamp,
	}
	if doc.EstimatedGain != nil {
		tx.EstimatedGain = fromDecimal128(*doc.EstimatedGain)
		tx.HasGain = true
	}
	return tx
}
