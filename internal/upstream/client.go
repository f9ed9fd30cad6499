package upstream

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

const (
	// DefaultBaseURL is the NVIDIA NIM OpenAI-compatible endpoint.
	DefaultBaseURL = "https://integrate.api.nvidia.com/v1"

	requestTimeout = 300 * time.Second

	// SSE data lines carrying tool arguments can get long; keep the scanner
	// generous.
	scanBufferSize   = 64 * 1024
	maxScanTokenSize = 10 * 1024 * 1024
)

// Client talks to the upstream chat completions API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a client for the given endpoint. An empty baseURL selects
// the default NIM endpoint.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

// Complete performs a non-streaming chat completion call.
func (c *Client) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyReader, err := decompressReader(resp)
	if err != nil {
		return nil, transportError(err)
	}

	body, err := io.ReadAll(bodyReader)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, transportError(fmt.Errorf("decode response: %w", err))
	}

	return &chatResp, nil
}

// Stream performs a streaming chat completion call. The caller must Close
// the returned stream.
func (c *Client) Stream(ctx context.Context, req *ChatRequest) (*Stream, error) {
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		return nil, classifyStatus(resp.StatusCode, body)
	}

	bodyReader, err := decompressReader(resp)
	if err != nil {
		resp.Body.Close()

		return nil, transportError(err)
	}

	scanner := bufio.NewScanner(bodyReader)
	scanner.Buffer(make([]byte, scanBufferSize), maxScanTokenSize)

	return &Stream{scanner: scanner, body: resp.Body}, nil
}

func (c *Client) post(ctx context.Context, req *ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, transportError(fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, transportError(err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept-Encoding", "gzip, br")

	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("upstream request",
		"url", httpReq.URL.String(),
		"stream", req.Stream,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
	)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}

	return resp, nil
}

// Stream iterates the upstream SSE response chunk by chunk.
type Stream struct {
	scanner *bufio.Scanner
	body    io.Closer
	done    bool
}

// Next returns the next delta chunk, or io.EOF once the upstream has sent
// its [DONE] frame or closed the stream.
func (s *Stream) Next() (*StreamChunk, error) {
	if s.done {
		return nil, io.EOF
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())

		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		if line == "data: [DONE]" {
			s.done = true

			return nil, io.EOF
		}

		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, transportError(fmt.Errorf("decode stream chunk: %w", err))
		}

		return &chunk, nil
	}

	s.done = true

	if err := s.scanner.Err(); err != nil {
		return nil, transportError(err)
	}

	return nil, io.EOF
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	return s.body.Close()
}

// decompressReader unwraps the response body per its Content-Encoding.
func decompressReader(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}
