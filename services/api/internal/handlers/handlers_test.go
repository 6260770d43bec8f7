package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/luzhania/E1-arquitectura-de-software/internal/storage"
	"github.com/luzhania/E1-arquitectura-de-software/libs/auth"
)

var testSecret = []byte("test-secret")

type fakePublisher struct {
	published []string
	err       error
}

func (f *fakePublisher) PublishBuyRequest(symbol string, quantity int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	id := "req-" + symbol
	f.published = append(f.published, id)
	return id, nil
}

type fakeJobs struct {
	submitted []EstimationJob
	err       error
}

func (f *fakeJobs) Submit(_ context.Context, job EstimationJob) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, job)
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *storage.MemoryStore, *fakePublisher, *fakeJobs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStore()
	pub := &fakePublisher{}
	jobs := &fakeJobs{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(store, pub, jobs, time.Minute, logger)
	r := gin.New()
	h.Register(r, testSecret)
	return r, store, pub, jobs
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedStock(t *testing.T, store *storage.MemoryStore, symbol string, quantity int64, price string) {
	t.Helper()
	if err := store.UpsertStock(context.Background(), storage.StockEntry{
		Symbol:   symbol,
		Quantity: quantity,
		Price:    decimal.RequireFromString(price),
	}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func TestListStocks(t *testing.T) {
	r, store, _, _ := newTestRouter(t)
	seedStock(t, store, "AAPL", 100, "187.50")
	seedStock(t, store, "TSLA", 50, "250")

	w := doRequest(t, r, http.MethodGet, "/stocks", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Stocks []struct {
			Symbol string `json:"symbol"`
			Price  string `json:"price"`
		} `json:"stocks"`
		Page int `json:"page"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Stocks) != 2 || resp.Page != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Stocks[0].Symbol != "AAPL" || resp.Stocks[0].Price != "187.5" {
		t.Errorf("first stock = %+v", resp.Stocks[0])
	}
}

func TestListStocksServesCachedPage(t *testing.T) {
	r, store, _, _ := newTestRouter(t)
	seedStock(t, store, "AAPL", 100, "187.50")

	if w := doRequest(t, r, http.MethodGet, "/stocks", "", ""); w.Code != http.StatusOK {
		t.Fatalf("warmup status = %d", w.Code)
	}

	// A write after the first read is invisible until the cache expires.
	seedStock(t, store, "TSLA", 50, "250")

	w := doRequest(t, r, http.MethodGet, "/stocks", "", "")
	var resp struct {
		Stocks []json.RawMessage `json:"stocks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Stocks) != 1 {
		t.Errorf("cached page has %d stocks, want 1", len(resp.Stocks))
	}
}

func TestStockDetail(t *testing.T) {
	r, store, _, _ := newTestRouter(t)
	seedStock(t, store, "AAPL", 100, "187.50")

	w := doRequest(t, r, http.MethodGet, "/stocks/AAPL", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	if w := doRequest(t, r, http.MethodGet, "/stocks/GHOST", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown symbol status = %d, want 404", w.Code)
	}
}

func TestBuyRequiresAuth(t *testing.T) {
	r, store, _, _ := newTestRouter(t)
	seedStock(t, store, "AAPL", 100, "187.50")

	if w := doRequest(t, r, http.MethodPost, "/buy", `{"symbol":"AAPL","quantity":5}`, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token status = %d, want 401", w.Code)
	}
	if w := doRequest(t, r, http.MethodPost, "/buy", `{"symbol":"AAPL","quantity":5}`, "not-a-token"); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", w.Code)
	}
}

func TestBuyPublishesAndRecordsTransaction(t *testing.T) {
	r, store, pub, jobs := newTestRouter(t)
	seedStock(t, store, "AAPL", 100, "187.50")
	token := signToken(t, "u1")

	w := doRequest(t, r, http.MethodPost, "/buy", `{"symbol":"AAPL","quantity":5}`, token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RequestID == "" {
		t.Fatal("no request id returned")
	}
	if len(pub.published) != 1 {
		t.Errorf("published = %v", pub.published)
	}

	tx, err := store.GetTransactionByRequest(context.Background(), resp.RequestID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if tx.UserID != "u1" || tx.Symbol != "AAPL" || tx.Quantity != 5 || tx.Status != storage.StatusPending {
		t.Errorf("transaction = %+v", tx)
	}

	if len(jobs.submitted) != 1 {
		t.Fatalf("jobs submitted = %d, want 1", len(jobs.submitted))
	}
	if jobs.submitted[0].RequestID != resp.RequestID || jobs.submitted[0].UserID != "u1" {
		t.Errorf("job = %+v", jobs.submitted[0])
	}
}

func TestBuyUnknownSymbol(t *testing.T) {
	r, _, pub, _ := newTestRouter(t)
	token := signToken(t, "u1")

	w := doRequest(t, r, http.MethodPost, "/buy", `{"symbol":"GHOST","quantity":5}`, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if len(pub.published) != 0 {
		t.Errorf("published for unknown symbol: %v", pub.published)
	}
}

func TestBuyValidation(t *testing.T) {
	r, store, _, _ := newTestRouter(t)
	seedStock(t, store, "AAPL", 100, "187.50")
	token := signToken(t, "u1")

	for _, body := range []string{`{}`, `{"symbol":"AAPL"}`, `{"symbol":"AAPL","quantity":0}`, `{"symbol":"AAPL","quantity":-2}`} {
		if w := doRequest(t, r, http.MethodPost, "/buy", body, token); w.Code != http.StatusBadRequest {
			t.Errorf("body %s status = %d, want 400", body, w.Code)
		}
	}
}

func TestBuySurvivesJobSubmitFailure(t *testing.T) {
	r, store, _, jobs := newTestRouter(t)
	jobs.err = context.DeadlineExceeded
	seedStock(t, store, "AAPL", 100, "187.50")
	token := signToken(t, "u1")

	w := doRequest(t, r, http.MethodPost, "/buy", `{"symbol":"AAPL","quantity":5}`, token)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 despite estimation failure", w.Code)
	}
}

func TestWallet(t *testing.T) {
	r, store, _, _ := newTestRouter(t)
	store.PutUser(storage.UserWallet{UserID: "u1", Balance: decimal.RequireFromString("1050.25")})
	token := signToken(t, "u1")

	w := doRequest(t, r, http.MethodGet, "/me/wallet", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		UserID  string `json:"user_id"`
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UserID != "u1" || resp.Balance != "1050.25" {
		t.Errorf("resp = %+v", resp)
	}

	other := signToken(t, "ghost")
	if w := doRequest(t, r, http.MethodGet, "/me/wallet", "", other); w.Code != http.StatusNotFound {
		t.Errorf("unknown wallet status = %d, want 404", w.Code)
	}
}

func TestTransactionsOnlyOwn(t *testing.T) {
	r, store, _, _ := newTestRouter(t)
	ctx := context.Background()

	if err := store.CreateTransaction(ctx, storage.Transaction{
		TransactionID: "t1", RequestID: "r1", UserID: "u1", Symbol: "AAPL", Quantity: 5, Status: storage.StatusAccepted,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.CreateTransaction(ctx, storage.Transaction{
		TransactionID: "t2", RequestID: "r2", UserID: "u2", Symbol: "TSLA", Quantity: 1, Status: storage.StatusPending,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.SetTransactionGain(ctx, "r1", decimal.RequireFromString("46.875")); err != nil {
		t.Fatalf("set gain: %v", err)
	}

	token := signToken(t, "u1")
	w := doRequest(t, r, http.MethodGet, "/me/transactions", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Transactions []struct {
			RequestID     string `json:"request_id"`
			Status        string `json:"status"`
			EstimatedGain string `json:"estimated_gain"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Transactions) != 1 {
		t.Fatalf("transactions = %+v", resp.Transactions)
	}
	if resp.Transactions[0].RequestID != "r1" || resp.Transactions[0].EstimatedGain != "46.875" {
		t.Errorf("transaction = %+v", resp.Transactions[0])
	}
}
