package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luzhania/E1-arquitectura-de-software/internal/storage"
)

// Seeds the shared database with a starter catalog and demo wallets for
// local development. Refuses to run outside dev/ci so it can never wipe a
// real deployment's prices.
func main() {
	env := getEnv("APP_ENV", "dev")
	if env != "dev" && env != "ci" {
		log.Fatalf("refusing to seed: APP_ENV must be 'dev' or 'ci' (got %q)", env)
	}

	uri := getEnv("MONGO_URI", "mongodb://localhost:27017")
	dbName := getEnv("MONGO_DB", "stocks_db")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := storage.Connect(ctx, uri, dbName)
	if err != nil {
		log.Fatalf("connect mongo: %v", err)
	}
	store := storage.NewMongoStore(db, nil)

	if err := store.EnsureIndexes(ctx); err != nil {
		log.Fatalf("ensure indexes: %v", err)
	}

	fmt.Println("Seeding", dbName, "...")

	if err := seedStocks(ctx, store); err != nil {
		log.Fatalf("seed stocks: %v", err)
	}
	fmt.Println("stocks seeded")

	if err := seedWallets(ctx, store); err != nil {
		log.Fatalf("seed wallets: %v", err)
	}
	fmt.Println("wallets seeded")

	fmt.Println("done")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func seedStocks(ctx context.Context, store *storage.MongoStore) error {
	now := time.Now().UTC()
	stocks := []struct {
		symbol   string
		quantity int64
		price    string
		longName string
	}{
		{"AAPL", 10000, "187.50", "Apple Inc."},
		{"MSFT", 8000, "415.20", "Microsoft Corporation"},
		{"NVDA", 5000, "120.50", "NVIDIA Corporation"},
		{"TSLA", 6000, "250.00", "Tesla, Inc."},
		{"GOOG", 4000, "172.80", "Alphabet Inc."},
	}

	for _, s := range stocks {
		price, err := decimal.NewFromString(s.price)
		if err != nil {
			return fmt.Errorf("price %s: %w", s.symbol, err)
		}
		if err := store.UpsertStock(ctx, storage.StockEntry{
			Symbol:    s.symbol,
			Quantity:  s.quantity,
			Price:     price,
			LongName:  s.longName,
			Timestamp: now,
		}); err != nil {
			return fmt.Errorf("upsert %s: %w", s.symbol, err)
		}
	}
	return nil
}

func seedWallets(ctx context.Context, store *storage.MongoStore) error {
	now := time.Now().UTC()
	wallets := []struct {
		userID  string
		balance string
	}{
		{"demo@example.com", "100000"},
		{"trader@example.com", "50000"},
	}

	for _, w := range wallets {
		balance, err := decimal.NewFromString(w.balance)
		if err != nil {
			return fmt.Errorf("balance %s: %w", w.userID, err)
		}
		if err := store.UpsertUser(ctx, storage.UserWallet{
			UserID:    w.userID,
			Balance:   balance,
			Timestamp: now,
		}); err != nil {
			return fmt.Errorf("upsert %s: %w", w.userID, err)
		}
	}
	return nil
}
