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

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/luzhania/E1-arquitectura-de-software/services/jobmaster/internal/queue"
)

func newTestRouter(t *testing.T) (*gin.Engine, *queue.RedisQueue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	q := queue.NewRedisQueue(client, "jobs:test", time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := gin.New()
	New(q, logger).Register(r)
	return r, q
}

func TestHeartbeat(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/heartbeat", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestCreateJobEnqueues(t *testing.T) {
	r, q := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/job", strings.NewReader(`{"request_id":"r1","user_id":"u1","symbol":"AAPL","quantity":5}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		JobID string `json:"job_id"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID == "" || resp.State != queue.StateProcessing {
		t.Errorf("resp = %+v", resp)
	}

	job, err := q.Dequeue(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job == nil || job.JobID != resp.JobID || job.Symbol != "AAPL" {
		t.Errorf("queued job = %+v", job)
	}
}

func TestCreateJobValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, body := range []string{`{}`, `{"symbol":"AAPL"}`, `{"symbol":"AAPL","quantity":0}`} {
		req := httptest.NewRequest(http.MethodPost, "/job", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s status = %d, want 400", body, w.Code)
		}
	}
}

func TestGetJob(t *testing.T) {
	r, q := newTestRouter(t)

	if err := q.SetResult(context.Background(), queue.Result{
		JobID:         "j1",
		State:         queue.StateDone,
		Symbol:        "AAPL",
		Quantity:      5,
		EstimatedGain: "46.875",
	}); err != nil {
		t.Fatalf("seed result: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/job/j1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var result queue.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.State != queue.StateDone || result.EstimatedGain != "46.875" {
		t.Errorf("result = %+v", result)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/job/ghost", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", w.Code)
	}
}
