package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mib = 1 << 20

func TestUploadBytesSimplePut(t *testing.T) {
	var puts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/items/a/content", r.URL.Path)
		puts++
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(UploadResult{ID: "item1", Name: "a.txt", Size: int64(len(body))})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testTokens(), fastPolicy(2))
	result, err := c.UploadBytes(context.Background(), "/items/a/content", []byte("small payload"), "a.txt", "text/plain", 10*mib)
	require.NoError(t, err)
	assert.Equal(t, 1, puts)
	assert.Equal(t, "item1", result.ID)
	assert.Equal(t, int64(len("small payload")), result.Size)
}

// chunkServer records Content-Range headers and plays the resumable-upload
// protocol: 202 for intermediate chunks, final status for the last.
type chunkServer struct {
	ranges      []string
	total       int64
	received    int64
	finalStatus int
}

func (cs *chunkServer) handler(srv func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{"uploadUrl": srv() + "/upload-session/xyz"})
		case r.Method == http.MethodPut:
			cs.ranges = append(cs.ranges, r.Header.Get("Content-Range"))
			body, _ := io.ReadAll(r.Body)
			cs.received += int64(len(body))
			if cs.received >= cs.total {
				w.WriteHeader(cs.finalStatus)
				json.NewEncoder(w).Encode(UploadResult{ID: "big", Size: cs.received})
				return
			}
			w.WriteHeader(http.StatusAccepted)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func TestUploadBytesChunked(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 25*mib)

	cs := &chunkServer{total: int64(len(payload)), finalStatus: http.StatusCreated}
	var srv *httptest.Server
	srv = httptest.NewServer(cs.handler(func() string { return srv.URL }))
	defer srv.Close()

	c := NewClient(srv.URL, testTokens(), fastPolicy(2))
	result, err := c.UploadBytes(context.Background(), "/items/big/content", payload, "big.bin", "application/octet-stream", 10*mib)
	require.NoError(t, err)
	assert.Equal(t, int64(25*mib), result.Size)

	// 25 MiB at a 10 MiB chunk size is exactly 3 PUTs: 10, 10, 5.
	require.Len(t, cs.ranges, 3)
	assert.Equal(t, fmt.Sprintf("bytes 0-%d/%d", 10*mib-1, 25*mib), cs.ranges[0])
	assert.Equal(t, fmt.Sprintf("bytes %d-%d/%d", 10*mib, 20*mib-1, 25*mib), cs.ranges[1])
	assert.Equal(t, fmt.Sprintf("bytes %d-%d/%d", 20*mib, 25*mib-1, 25*mib), cs.ranges[2])
}

func TestUploadBytesChunkFailure(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 3*mib)

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"uploadUrl": srv.URL + "/upload-session/xyz"})
			return
		}
		// A conflict is terminal for the whole upload.
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testTokens(), fastPolicy(2))
	_, err := c.UploadBytes(context.Background(), "/items/x/content", payload, "x.bin", "", mib)

	var chunkErr *UploadChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, http.StatusConflict, chunkErr.Status)
	assert.Equal(t, int64(0), chunkErr.Offset)
}

func TestUploadBytesIncomplete(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 2*mib)

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"uploadUrl": srv.URL + "/upload-session/xyz"})
			return
		}
		// Server keeps asking for more chunks even after the last byte.
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testTokens(), fastPolicy(2))
	_, err := c.UploadBytes(context.Background(), "/items/x/content", payload, "x.bin", "", mib)

	var incErr *UploadIncompleteError
	require.ErrorAs(t, err, &incErr)
	assert.Equal(t, int64(2*mib), incErr.Sent)
}

func TestBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/$batch", r.URL.Path)

		var envelope struct {
			Requests []BatchRequest `json:"requests"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		require.Len(t, envelope.Requests, 3)

		// Answer out of order and drop the third request entirely.
		fmt.Fprintf(w, `{"responses":[
			{"id":%q,"status":200,"body":{"n":2}},
			{"id":%q,"status":404,"body":null}
		]}`, envelope.Requests[1].ID, envelope.Requests[0].ID)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testTokens(), fastPolicy(2))
	reqs := []BatchRequest{
		NewBatchRequest(http.MethodGet, "/items/1"),
		NewBatchRequest(http.MethodGet, "/items/2"),
		NewBatchRequest(http.MethodGet, "/items/3"),
	}
	responses, err := c.Batch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, responses, 3)

	assert.Equal(t, reqs[0].ID, responses[0].ID)
	assert.Equal(t, 404, responses[0].Status)
	assert.Equal(t, 200, responses[1].Status)
	// Unanswered request degrades to a synthetic 502.
	assert.Equal(t, http.StatusBadGateway, responses[2].Status)
}

func TestBatchEmpty(t *testing.T) {
	c := NewClient("http://unused", testTokens(), fastPolicy(2))
	responses, err := c.Batch(context.Background(), nil)
	if err != nil || responses != nil {
		t.Errorf("Batch(nil) = %v, %v; want nil, nil", responses, err)
	}
}
