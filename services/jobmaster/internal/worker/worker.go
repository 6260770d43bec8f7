package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luzhania/E1-arquitectura-de-software/internal/storage"
	"github.com/luzhania/E1-arquitectura-de-software/services/jobmaster/internal/queue"
)

const dequeueTimeout = 5 * time.Second

// Queue is the subset of the job queue the worker consumes.
type Queue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	SetResult(ctx context.Context, result queue.Result) error
}

// Worker drains the estimation queue: for each job it looks up the current
// price of the requested stock, projects the gain of the purchase under the
// configured drift, and records it on the pending transaction.
type Worker struct {
	queue   Queue
	stocks  storage.StockStore
	txs     storage.TransactionStore
	drift   decimal.Decimal
	logger  *slog.Logger
	metrics *Metrics
}

func New(q Queue, store storage.Store, drift float64, logger *slog.Logger, metrics *Metrics) *Worker {
	return &Worker{
		queue:   q,
		stocks:  store,
		txs:     store,
		drift:   decimal.NewFromFloat(drift),
		logger:  logger,
		metrics: metrics,
	}
}

// Run consumes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("estimation worker started")
	for {
		job, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("estimation worker stopped")
				return
			}
			w.logger.Error("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	gain, err := w.Estimate(ctx, job.Symbol, job.Quantity)
	if err != nil {
		w.logger.Warn("estimation failed",
			"job_id", job.JobID, "symbol", job.Symbol, "error", err)
		w.metrics.IncJob("failed")
		w.storeResult(ctx, queue.Result{
			JobID: job.JobID,
			State: queue.StateFailed,
			Error: err.Error(),
		})
		return
	}

	if job.RequestID != "" {
		if err := w.txs.SetTransactionGain(ctx, job.RequestID, gain); err != nil {
			if errors.Is(err, storage.ErrTransactionNotFound) {
				w.logger.Warn("no transaction for estimated request",
					"job_id", job.JobID, "request_id", job.RequestID)
			} else {
				w.logger.Error("store gain failed",
					"job_id", job.JobID, "request_id", job.RequestID, "error", err)
			}
		}
	}

	w.logger.Info("estimation done",
		"job_id", job.JobID, "symbol", job.Symbol, "gain", gain.String())
	w.metrics.IncJob("done")
	w.storeResult(ctx, queue.Result{
		JobID:         job.JobID,
		State:         queue.StateDone,
		Symbol:        job.Symbol,
		Quantity:      job.Quantity,
		EstimatedGain: gain.String(),
	})
}

// Estimate projects the gain of buying quantity shares at the current price:
// quantity * price * drift.
func (w *Worker) Estimate(ctx context.Context, symbol string, quantity int64) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	stock, err := w.stocks.GetStock(ctx, symbol)
	if err != nil {
		if errors.Is(err, storage.ErrStockNotFound) {
			return decimal.Zero, fmt.Errorf("unknown stock %q", symbol)
		}
		return decimal.Zero, err
	}
	return stock.Price.Mul(decimal.NewFromInt(quantity)).Mul(w.drift), nil
}

func (w *Worker) storeResult(ctx context.Context, result queue.Result) {
	if err := w.queue.SetResult(ctx, result); err != nil {
		w.logger.Error("store job result failed", "job_id", result.JobID, "error", err)
	}
}
