package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// DefaultChunkSize is the chunk size for resumable uploads when the caller
// does not choose one. Must stay a multiple of 320 KiB per the upload
// session contract.
const DefaultChunkSize = 10 << 20

// UploadResult describes the item the server created or replaced.
type UploadResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// uploadSession is the server's answer to a createUploadSession request.
type uploadSession struct {
	UploadURL string `json:"uploadUrl"`
}

// UploadBytes pushes data to endpoint. Payloads at or below chunkSize go up
// as a single PUT; larger payloads open a resumable upload session and send
// sequential Content-Range chunks until the server signals completion.
// Chunks of one session must never be parallelized: each range depends on
// the previously acknowledged offset.
func (c *Client) UploadBytes(ctx context.Context, endpoint string, data []byte, fileName, mimeType string, chunkSize int64) (*UploadResult, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	if int64(len(data)) <= chunkSize {
		return c.uploadSimple(ctx, endpoint, data, mimeType)
	}
	return c.uploadChunked(ctx, endpoint, data, fileName, mimeType, chunkSize)
}

func (c *Client) uploadSimple(ctx context.Context, endpoint string, data []byte, mimeType string) (*UploadResult, error) {
	resp, err := c.doWithRetry(ctx, http.MethodPut, c.resolve(endpoint), data, map[string]string{
		"Content-Type": mimeType,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status < 200 || resp.Status > 299 {
		return nil, httpError(resp)
	}
	return decodeUploadResult(resp.Body)
}

func (c *Client) uploadChunked(ctx context.Context, endpoint string, data []byte, fileName, mimeType string, chunkSize int64) (*UploadResult, error) {
	session, err := c.createUploadSession(ctx, endpoint, fileName)
	if err != nil {
		return nil, fmt.Errorf("create upload session: %w", err)
	}

	total := int64(len(data))
	for start := int64(0); start < total; start += chunkSize {
		end := start + chunkSize - 1
		if end > total-1 {
			end = total - 1
		}
		chunk := data[start : end+1]

		resp, err := c.doWithRetry(ctx, http.MethodPut, session.UploadURL, chunk, map[string]string{
			"Content-Type":  mimeType,
			"Content-Range": fmt.Sprintf("bytes %d-%d/%d", start, end, total),
		})
		if err != nil {
			return nil, fmt.Errorf("upload chunk %d-%d: %w", start, end, err)
		}

		switch resp.Status {
		case http.StatusOK, http.StatusCreated:
			// Final chunk accepted; the body carries the item.
			return decodeUploadResult(resp.Body)
		case http.StatusAccepted:
			// Server expects more chunks.
			slog.Debug("chunk accepted", "start", start, "end", end, "total", total)
		default:
			return nil, &UploadChunkError{Status: resp.Status, Offset: start}
		}
	}
	return nil, &UploadIncompleteError{Sent: total, Total: total}
}

func (c *Client) createUploadSession(ctx context.Context, endpoint, fileName string) (*uploadSession, error) {
	body := map[string]any{
		"item": map[string]any{
			"@microsoft.graph.conflictBehavior": "replace",
			"name":                              fileName,
		},
	}
	resp, err := c.Request(ctx, http.MethodPost, endpoint+"/createUploadSession", body, nil)
	if err != nil {
		return nil, err
	}
	var session uploadSession
	if err := resp.JSON(&session); err != nil {
		return nil, fmt.Errorf("decode upload session: %w", err)
	}
	if session.UploadURL == "" {
		return nil, fmt.Errorf("upload session response missing uploadUrl")
	}
	return &session, nil
}

func decodeUploadResult(body []byte) (*UploadResult, error) {
	var result UploadResult
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decode upload result: %w", err)
		}
	}
	return &result, nil
}
