package driverapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DRIVER CLIENT
// ═══════════════════════════════════════════════════════════════════════════════
//
// A typed POST/JSON round-trip to one solver driver. One Client wraps one
// driver's base URL and is shared across ticks as a pool of HTTP
// connections — it carries no per-tick state.
// ═══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultResponseSizeLimit bounds a driver's reply when NewClient is
	// given a zero limit; exceeding it fails Oversize. config.Config.
	// ResponseSizeLimit is the operator-facing knob for this.
	DefaultResponseSizeLimit = 10_000_000 // 10 MB

	// DefaultHTTPTotalTimeout is the connect+read safety net used when
	// NewClient is given a zero timeout. config.Config.HTTPTotalTimeout is
	// the operator-facing knob for this.
	DefaultHTTPTotalTimeout = 60 * time.Second
)

var (
	ErrOversize = errors.New("driverapi: response exceeds size limit")
)

// BadStatusError is returned when a driver answers with a non-200 status.
type BadStatusError struct {
	Code       int
	BodyExcerpt string
}

func (e *BadStatusError) Error() string {
	return fmt.Sprintf("bad status %d, body %q", e.Code, e.BodyExcerpt)
}

// BadJSONError wraps a decode failure on an otherwise-200 response.
type BadJSONError struct {
	Err error
}

func (e *BadJSONError) Error() string { return fmt.Sprintf("bad json: %v", e.Err) }
func (e *BadJSONError) Unwrap() error { return e.Err }

// TransportError wraps a network-level failure: DNS, TCP, TLS, I/O.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Client is a single driver's HTTP endpoint.
type Client struct {
	Name              string // for logging only, e.g. "driver-a"
	baseURL           string
	httpClient        *http.Client
	responseSizeLimit int64
}

// NewClient builds a driver client bound to baseURL, e.g.
// "https://solver.example.com". httpTimeout and responseSizeLimit are
// config.Config.HTTPTotalTimeout and config.Config.ResponseSizeLimit; pass
// zero for either to take the matching Default*.
func NewClient(name, baseURL string, httpTimeout time.Duration, responseSizeLimit int64) *Client {
	if httpTimeout == 0 {
		httpTimeout = DefaultHTTPTotalTimeout
	}
	if responseSizeLimit == 0 {
		responseSizeLimit = DefaultResponseSizeLimit
	}
	return &Client{
		Name:    name,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: httpTimeout,
		},
		responseSizeLimit: responseSizeLimit,
	}
}

// Solve asks the driver to propose a solution for the auction.
func (c *Client) Solve(ctx context.Context, req *SolveRequest) (*SolveResponse, error) {
	var resp SolveResponse
	if err := c.requestResponse(ctx, "solve", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Execute instructs the driver to broadcast its previously-proposed
// solution. The path is "settle/{id}" for wire compatibility even though
// the operation is semantically execute.
func (c *Client) Execute(ctx context.Context, solutionID string, req *ExecuteRequest) (*ExecuteResponse, error) {
	var resp ExecuteResponse
	if err := c.requestResponse(ctx, "settle/"+solutionID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) requestResponse(ctx context.Context, path string, body any, out any) error {
	url := c.baseURL + "/" + path

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		log.Trace().Str("driver", c.Name).Str("path", path).RawJSON("body", encoded).Msg("driver request")
		reqBody = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, c.responseSizeLimit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return &TransportError{Err: err}
	}
	if int64(len(data)) > c.responseSizeLimit {
		return ErrOversize
	}

	log.Trace().Str("driver", c.Name).Str("path", path).Int("status", resp.StatusCode).Bytes("body", data).Msg("driver response")

	if resp.StatusCode != http.StatusOK {
		excerpt := string(data)
		if len(excerpt) > 256 {
			excerpt = excerpt[:256]
		}
		return &BadStatusError{Code: resp.StatusCode, BodyExcerpt: excerpt}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &BadJSONError{Err: err}
	}
	return nil
}
