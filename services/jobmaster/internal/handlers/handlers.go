package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/luzhania/E1-arquitectura-de-software/services/jobmaster/internal/queue"
)

// JobQueue is what the HTTP surface needs from the queue.
type JobQueue interface {
	Enqueue(ctx context.Context, job queue.Job) error
	GetResult(ctx context.Context, jobID string) (*queue.Result, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	queue  JobQueue
	logger *slog.Logger
}

func New(q JobQueue, logger *slog.Logger) *Handler {
	return &Handler{queue: q, logger: logger}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/heartbeat", h.Heartbeat)
	r.POST("/job", h.CreateJob)
	r.GET("/job/:id", h.GetJob)
}

// Heartbeat reports whether the queue backend is reachable.
func (h *Handler) Heartbeat(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.queue.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"alive": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alive": true})
}

type createJobRequest struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	Symbol    string `json:"symbol" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
}

func (h *Handler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job := queue.Job{
		JobID:     uuid.NewString(),
		RequestID: req.RequestID,
		UserID:    req.UserID,
		Symbol:    req.Symbol,
		Quantity:  req.Quantity,
	}
	if err := h.queue.Enqueue(c.Request.Context(), job); err != nil {
		h.logger.Error("enqueue failed", "symbol", req.Symbol, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not enqueue job"})
		return
	}

	h.logger.Info("job enqueued", "job_id", job.JobID, "symbol", job.Symbol)
	c.JSON(http.StatusCreated, gin.H{"job_id": job.JobID, "state": queue.StateProcessing})
}

func (h *Handler) GetJob(c *gin.Context) {
	jobID := c.Param("id")
	result, err := h.queue.GetResult(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("load job failed", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load job"})
		return
	}
	c.JSON(http.StatusOK, result)
}
