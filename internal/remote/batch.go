package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// BatchRequest is one logical request inside a $batch call.
type BatchRequest struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    any               `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// BatchResponse is the server's answer to one batched request, correlated by
// ID.
type BatchResponse struct {
	ID     string          `json:"id"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// NewBatchRequest builds a BatchRequest with a generated id.
func NewBatchRequest(method, url string) BatchRequest {
	return BatchRequest{ID: uuid.NewString(), Method: method, URL: url}
}

// Batch serializes requests into one network round trip. Responses come back
// in request order; a request the server did not answer yields a synthetic
// 502 entry so callers always get len(requests) responses.
func (c *Client) Batch(ctx context.Context, requests []BatchRequest) ([]BatchResponse, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	resp, err := c.Request(ctx, http.MethodPost, "/$batch", map[string]any{
		"requests": requests,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("batch call: %w", err)
	}

	var envelope struct {
		Responses []BatchResponse `json:"responses"`
	}
	if err := resp.JSON(&envelope); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}

	byID := make(map[string]BatchResponse, len(envelope.Responses))
	for _, r := range envelope.Responses {
		byID[r.ID] = r
	}

	out := make([]BatchResponse, len(requests))
	for i, req := range requests {
		if r, ok := byID[req.ID]; ok {
			out[i] = r
			continue
		}
		out[i] = BatchResponse{ID: req.ID, Status: http.StatusBadGateway}
	}
	return out, nil
}
