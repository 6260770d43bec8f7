package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type EstimationJob struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	Symbol    string `json:"symbol"`
	Quantity  int64  `json:"quantity"`
}

type JobSubmitter interface {
	Submit(ctx context.Context, job EstimationJob) error
}

// HTTPJobClient submits estimation jobs to the jobmaster service.
type HTTPJobClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPJobClient(baseURL string) *HTTPJobClient {
	return &HTTPJobClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPJobClient) Submit(ctx context.Context, job EstimationJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/job", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build job request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("submit job: jobmaster returned %d", resp.StatusCode)
	}
	return nil
}
