package myuplink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/heatpump-sync/internal/infrastructure/config"
	"github.com/nerrad567/heatpump-sync/internal/parameter"
)

const (
	// DefaultBaseURL is the public myUplink API endpoint.
	DefaultBaseURL = "https://api.myuplink.com"

	defaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 512

	// maxResponseBody bounds successful response bodies.
	maxResponseBody = 4 << 20
)

// TokenSource supplies a bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}

// Logger is the logging surface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client talks to the myUplink API.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	userAgent  string
	logger     Logger
}

// New creates a client from configuration. A nil tokens falls back to the
// configured static token.
func New(cfg config.UplinkConfig, tokens TokenSource) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if tokens == nil {
		tokens = StaticToken(cfg.Token)
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		userAgent:  cfg.UserAgent,
		logger:     noopLogger{},
	}
}

// SetLogger sets the client logger.
func (c *Client) SetLogger(l Logger) {
	if l != nil {
		c.logger = l
	}
}

// FetchDataPoints reads the given parameters of a device. The result may omit
// identifiers the device does not report.
func (c *Client) FetchDataPoints(ctx context.Context, deviceID string, ids []parameter.ID) ([]parameter.DataPoint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}

	path := fmt.Sprintf("/v2/devices/%s/points?parameters=%s",
		url.PathEscape(deviceID), url.QueryEscape(strings.Join(parts, ",")))

	var raw []point
	if err := c.do(ctx, "fetch points", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	points := make([]parameter.DataPoint, 0, len(raw))
	for _, p := range raw {
		dp, ok := p.toDataPoint()
		if !ok {
			c.logger.Warn("skipping data point without parameter id", "device_id", deviceID, "name", p.ParameterName)
			continue
		}
		points = append(points, dp)
	}
	c.logger.Debug("fetched data points", "device_id", deviceID, "requested", len(ids), "returned", len(points))
	return points, nil
}

// WriteParameters sets several parameters of a device in one request.
func (c *Client) WriteParameters(ctx context.Context, deviceID string, values map[parameter.ID]float64) error {
	if len(values) == 0 {
		return nil
	}
	body := make(map[string]float64, len(values))
	for id, v := range values {
		body[id.String()] = v
	}
	path := fmt.Sprintf("/v2/devices/%s/points", url.PathEscape(deviceID))
	return c.do(ctx, "write points", http.MethodPatch, path, body, nil)
}

// DeviceInfo returns product and firmware details of a device.
func (c *Client) DeviceInfo(ctx context.Context, deviceID string) (*DeviceInfo, error) {
	var info DeviceInfo
	path := fmt.Sprintf("/v2/devices/%s", url.PathEscape(deviceID))
	if err := c.do(ctx, "device info", http.MethodGet, path, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListDevices returns every device of every system the token can see.
func (c *Client) ListDevices(ctx context.Context) ([]SystemDevice, error) {
	var resp systemsResponse
	if err := c.do(ctx, "list systems", http.MethodGet, "/v2/systems/me", nil, &resp); err != nil {
		return nil, err
	}
	var out []SystemDevice
	for _, s := range resp.Systems {
		for _, d := range s.Devices {
			out = append(out, SystemDevice{
				SystemID:        s.SystemID,
				SystemName:      s.Name,
				DeviceID:        d.ID,
				ProductName:     d.Product.Name,
				SerialNumber:    d.Product.SerialNumber,
				ConnectionState: d.ConnectionState,
			})
		}
	}
	return out, nil
}

// do performs one request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: %s: encoding body: %w", ErrTransport, op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort error detail
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody)) //nolint:errcheck // drain for connection reuse
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decoding response: %w", ErrTransport, op, err)
	}
	return nil
}
