// Package classifier wraps the external mood-classification service. The
// service is a remote HTTP contract: POST /infer {"text"} returns a mood
// label and an intensity score. It is never implemented here.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Provider interface {
	Classify(ctx context.Context, text string) (*Result, error)
}

type Result struct {
	Mood      string  `json:"mood"`
	Intensity float64 `json:"intensity"`
}

type inferRequest struct {
	Text string `json:"text"`
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds a client with a hard per-call timeout. Classifier
// latency must never leak into the connection-handling path, so the timeout
// is owned here rather than by callers.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Classify(ctx context.Context, text string) (*Result, error) {
	body, err := json.Marshal(inferRequest{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/infer", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer res.Body.Close()

	resBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error from classifier response, code %d, body %s", res.StatusCode, string(resBytes))
	}

	var result Result
	if err := json.Unmarshal(resBytes, &result); err != nil {
		return nil, fmt.Errorf("malformed classifier response: %w", err)
	}
	if result.Mood == "" || result.Intensity < 0 || result.Intensity > 1 {
		return nil, fmt.Errorf("malformed classifier response: mood=%q intensity=%f", result.Mood, result.Intensity)
	}

	return &result, nil
}
