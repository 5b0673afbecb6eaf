// Package graphapi implements ingest.Client against the hosted
// knowledge-graph service's REST API.
package graphapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/poiesic/chunkflow/core"
	"github.com/poiesic/chunkflow/ingest"
)

const defaultRequestTimeout = 30 * time.Second

// Client pushes chunks to the graph service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ ingest.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New creates a graph service client.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pushRequest struct {
	ChunkId     string `json:"chunk_id"`
	DocumentId  string `json:"document_id"`
	Content     string `json:"content"`
	ChunkNumber int    `json:"chunk_number"`
	TotalChunks int    `json:"total_chunks"`
}

type pushResponse struct {
	Id string `json:"id"`
}

// Push submits one chunk. Failures come back as classified ingest errors;
// no retrying happens here.
func (c *Client) Push(ctx context.Context, chunk *core.Chunk) (*ingest.PushResult, error) {
	payload, err := json.Marshal(pushRequest{
		ChunkId:     chunk.Id,
		DocumentId:  chunk.DocumentId,
		Content:     chunk.Content,
		ChunkNumber: chunk.ChunkNumber,
		TotalChunks: chunk.TotalChunks,
	})
	if err != nil {
		return nil, &ingest.Error{Kind: ingest.KindValidation, Message: "encoding chunk payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chunks", bytes.NewReader(payload))
	if err != nil {
		return nil, &ingest.Error{Kind: ingest.KindValidation, Message: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, ingest.StatusError(resp.StatusCode, string(body))
	}

	var decoded pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &ingest.Error{Kind: ingest.KindServer, Message: "decoding response", Err: err}
	}
	if decoded.Id == "" {
		return nil, &ingest.Error{Kind: ingest.KindServer, Message: "response missing chunk id"}
	}

	return &ingest.PushResult{RemoteId: decoded.Id}, nil
}

func classifyTransportError(err error) *ingest.Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ingest.Error{Kind: ingest.KindTimeout, Message: err.Error(), Err: err}
	}
	return &ingest.Error{Kind: ingest.KindNetwork, Message: err.Error(), Err: err}
}

// String formats the client target for logs.
func (c *Client) String() string {
	return fmt.Sprintf("graphapi(%s)", c.baseURL)
}
