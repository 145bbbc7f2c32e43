package gateway

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/muurk/powerview-ble/internal/logging"
)

const (
	// DefaultURL is the gateway's mDNS hostname
	DefaultURL = "http://powerview-g3.local"

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed requests
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default delay before the first retry
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 30 * time.Second
)

// Client talks to a PowerView Gen 3 gateway
type Client struct {
	// BaseURL is the base URL for the gateway (e.g., "http://192.168.4.16")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the maximum number of retry attempts for failed requests
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration
}

// NewClient creates a new gateway client
// ip: Gateway IP address (e.g., "192.168.4.16")
// port: Gateway HTTP port (typically 80)
func NewClient(ip string, port int) *Client {
	return NewClientWithURL(fmt.Sprintf("http://%s:%d", ip, port))
}

// NewClientWithURL creates a new client with a full base URL
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// ListShades returns the shades known to the gateway
func (c *Client) ListShades(ctx context.Context) ([]ShadeRecord, error) {
	var shades []ShadeRecord
	err := c.retry(ctx, func() error {
		body, err := c.do(ctx, http.MethodGet, "/home/shades", nil)
		if err != nil {
			return err
		}
		shades = nil
		if err := json.Unmarshal(body, &shades); err != nil {
			return NewParseError("failed to parse shade list", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shades, nil
}

// Exec relays a raw frame to the shade named bleName and returns the shade's
// decoded response.
func (c *Client) Exec(ctx context.Context, bleName string, frame []byte) (*Response, error) {
	payload, err := json.Marshal(execRequest{Hex: hex.EncodeToString(frame)})
	if err != nil {
		return nil, NewParseError("failed to encode request", err)
	}
	path := "/home/shades/exec?shades=" + url.QueryEscape(bleName)

	var result execResponse
	err = c.retry(ctx, func() error {
		body, err := c.do(ctx, http.MethodPost, path, payload)
		if err != nil {
			return err
		}
		result = execResponse{}
		if err := json.Unmarshal(body, &result); err != nil {
			return NewParseError("failed to parse exec response", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Err != 0 || len(result.Responses) != 1 {
		return nil, NewProtocolError(fmt.Sprintf("gateway exec failed for %s: err=%d, %d responses", bleName, result.Err, len(result.Responses)), nil)
	}

	raw, err := hex.DecodeString(result.Responses[0].Hex)
	if err != nil {
		return nil, NewParseError("response is not hex", err)
	}
	logging.LogRawBytes("gateway response "+bleName, raw)

	resp, err := DecodeResponse(raw)
	if err != nil {
		return nil, NewProtocolError("malformed shade response", err)
	}
	return resp, nil
}

// GetShadeKey asks the shade named bleName for its home key
func (c *Client) GetShadeKey(ctx context.Context, bleName string) ([]byte, error) {
	resp, err := c.Exec(ctx, bleName, GetShadeKeyRequest(1))
	if err != nil {
		return nil, err
	}
	if resp.ErrorCode != 0 {
		return nil, NewProtocolError(fmt.Sprintf("shade %s returned error code %d", bleName, resp.ErrorCode), nil)
	}
	if len(resp.Data) != homeKeyLength {
		return nil, NewProtocolError(fmt.Sprintf("expected %d byte home key, got %d", homeKeyLength, len(resp.Data)), nil)
	}
	return resp.Data, nil
}

// ExtractKeys lists the gateway's shades and requests each shade's key.
// Per-shade failures are reported in ShadeKey.Err; only a failure to list
// the shades is returned as an error.
func (c *Client) ExtractKeys(ctx context.Context) ([]ShadeKey, error) {
	shades, err := c.ListShades(ctx)
	if err != nil {
		return nil, err
	}

	logging.Info("Interrogating shades", zap.Int("count", len(shades)), zap.String("gateway", c.BaseURL))

	keys := make([]ShadeKey, 0, len(shades))
	for _, s := range shades {
		key, err := c.GetShadeKey(ctx, s.BLEName)
		if err != nil {
			logging.Warn("GetShadeKey failed", zap.String("device", s.BLEName), zap.Error(err))
		}
		keys = append(keys, ShadeKey{Shade: s, Key: key, Err: err})
	}
	return keys, nil
}

// HomeKey returns the key shared by the extracted shades. It fails when no
// shade returned a key or when shades disagree.
func HomeKey(keys []ShadeKey) ([]byte, error) {
	var home []byte
	for _, k := range keys {
		if k.Err != nil {
			continue
		}
		if home == nil {
			home = k.Key
			continue
		}
		if !bytes.Equal(home, k.Key) {
			return nil, fmt.Errorf("shades report different home keys (%s and %s)", hex.EncodeToString(home), k.Hex())
		}
	}
	if home == nil {
		return nil, fmt.Errorf("no shade returned a home key")
	}
	return home, nil
}

// retry runs op with exponential backoff, stopping early on errors that are
// not retryable
func (c *Client) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryDelay
	b.MaxInterval = c.MaxRetryDelay
	b.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		logging.Debug("Gateway request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		return err
	}

	retries := c.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx))
}

// do performs a single request and returns the body of a 2xx response
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, ClassifyNetworkError("failed to create request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, ClassifyNetworkError(method+" "+path+" failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ClassifyNetworkError("failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewHTTPError(resp.StatusCode, fmt.Sprintf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data))))
	}
	return data, nil
}
