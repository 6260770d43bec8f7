package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/luzhania/E1-arquitectura-de-software/internal/storage"
	"github.com/luzhania/E1-arquitectura-de-software/libs/auth"
	gocache "github.com/patrickmn/go-cache"
)

// BuyRequestPublisher is satisfied by publisher.BuyPublisher.
type BuyRequestPublisher interface {
	PublishBuyRequest(symbol string, quantity int64) (string, error)
}

type Handler struct {
	Store     storage.Store
	Publisher BuyRequestPublisher
	Jobs      JobSubmitter
	Cache     *gocache.Cache
	Logger    *slog.Logger
}

func New(store storage.Store, pub BuyRequestPublisher, jobs JobSubmitter, cacheTTL time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Handler{
		Store:     store,
		Publisher: pub,
		Jobs:      jobs,
		Cache:     gocache.New(cacheTTL, 2*cacheTTL),
		Logger:    logger,
	}
}

func (h *Handler) Register(r *gin.Engine, jwtSecret []byte) {
	r.GET("/stocks", h.ListStocks)
	r.GET("/stocks/:symbol", h.StockDetail)

	authGroup := r.Group("/", auth.Middleware(jwtSecret))
	authGroup.POST("/buy", h.Buy)
	authGroup.GET("/me/wallet", h.Wallet)
	authGroup.GET("/me/transactions", h.Transactions)
}

type stockResponse struct {
	Symbol    string `json:"symbol"`
	Quantity  int64  `json:"quantity"`
	Price     string `json:"price"`
	LongName  string `json:"longName,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type stocksResponse struct {
	Stocks []stockResponse `json:"stocks"`
	Page   int             `json:"page"`
	Count  int             `json:"count"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) ListStocks(c *gin.Context) {
	page := parsePositive(c.Query("page"), 1)
	count := parsePositive(c.Query("count"), 25)

	cacheKey := fmt.Sprintf("stocks:%d:%d", page, count)
	if cached, ok := h.Cache.Get(cacheKey); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	stocks, err := h.Store.ListStocks(c.Request.Context(), page, count)
	if err != nil {
		h.Logger.Error("list stocks failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	resp := stocksResponse{Stocks: make([]stockResponse, 0, len(stocks)), Page: page, Count: count}
	for _, s := range stocks {
		resp.Stocks = append(resp.Stocks, stockToResponse(s))
	}

	h.Cache.SetDefault(cacheKey, resp)
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) StockDetail(c *gin.Context) {
	symbol := c.Param("symbol")

	stock, err := h.Store.GetStock(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, storage.ErrStockNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "stock not found"})
			return
		}
		h.Logger.Error("stock lookup failed", "symbol", symbol, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, stockToResponse(*stock))
}

type buyRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required,gt=0"`
}

type buyResponse struct {
	RequestID string `json:"request_id"`
}

// Buy publishes a purchase request, records the externally visible
// transaction and enqueues a gain estimation. The transaction starts
// PENDING; the reconciliation engine mirrors the eventual resolution onto
// it.
func (h *Handler) Buy(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}

	var req buyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	if _, err := h.Store.GetStock(c.Request.Context(), req.Symbol); err != nil {
		if errors.Is(err, storage.ErrStockNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "stock not found"})
			return
		}
		h.Logger.Error("stock lookup failed", "symbol", req.Symbol, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	requestID, err := h.Publisher.PublishBuyRequest(req.Symbol, req.Quantity)
	if err != nil {
		h.Logger.Error("buy request publish failed", "symbol", req.Symbol, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "could not publish request"})
		return
	}

	tx := storage.Transaction{
		TransactionID: uuid.NewString(),
		RequestID:     requestID,
		UserID:        userID,
		Symbol:        req.Symbol,
		Quantity:      req.Quantity,
		Status:        storage.StatusPending,
		Timestamp:     time.Now().UTC(),
	}
	if err := h.Store.CreateTransaction(c.Request.Context(), tx); err != nil {
		h.Logger.Error("transaction create failed", "request_id", requestID, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "could not record transaction"})
		return
	}

	if h.Jobs != nil {
		if err := h.Jobs.Submit(c.Request.Context(), EstimationJob{
			RequestID: requestID,
			UserID:    userID,
			Symbol:    req.Symbol,
			Quantity:  req.Quantity,
		}); err != nil {
			// Estimation is best effort; the purchase flow does not
			// depend on it.
			h.Logger.Warn("gain estimation enqueue failed", "request_id", requestID, "error", err)
		}
	}

	c.JSON(http.StatusOK, buyResponse{RequestID: requestID})
}

type walletResponse struct {
	UserID  string `json:"user_id"`
	Balance string `json:"balance"`
}

func (h *Handler) Wallet(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}

	user, err := h.Store.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "wallet not found"})
			return
		}
		h.Logger.Error("wallet lookup failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, walletResponse{UserID: user.UserID, Balance: user.Balance.String()})
}

type transactionResponse struct {
	TransactionID string `json:"transaction_id"`
	RequestID     string `json:"request_id"`
	Symbol        string `json:"symbol"`
	Quantity      int64  `json:"quantity"`
	Status        string `json:"status"`
	EstimatedGain string `json:"estimated_gain,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
}

func (h *Handler) Transactions(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}

	page := parsePositive(c.Query("page"), 1)
	count := parsePositive(c.Query("count"), 25)

	txs, err := h.Store.ListTransactionsByUser(c.Request.Context(), userID, page, count)
	if err != nil {
		h.Logger.Error("list transactions failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		item := transactionResponse{
			TransactionID: tx.TransactionID,
			RequestID:     tx.RequestID,
			Symbol:        tx.Symbol,
			Quantity:      tx.Quantity,
			Status:        tx.Status,
		}
		if tx.HasGain {
			item.EstimatedGain = tx.EstimatedGain.String()
		}
		if !tx.Timestamp.IsZero() {
			item.Timestamp = tx.Timestamp.UTC().Format(time.RFC3339)
		}
		out = append(out, item)
	}

	c.JSON(http.StatusOK, gin.H{"transactions": out, "page": page, "count": count})
}

func stockToResponse(s storage.StockEntry) stockResponse {
	resp := stockResponse{
		Symbol:   s.Symbol,
		Quantity: s.Quantity,
		Price:    s.Price.String(),
		LongName: s.LongName,
	}
	if !s.Timestamp.IsZero() {
		resp.Timestamp = s.Timestamp.UTC().Format(time.RFC3339)
	}
	return resp
}

func userIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(auth.ContextUserIDKey)
	if !ok {
		return "", false
	}
	userID, ok := v.(string)
	return userID, ok && userID != ""
}

func parsePositive(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
