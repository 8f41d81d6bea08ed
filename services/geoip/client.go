package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/upb/eloboost/models"
	"go.uber.org/zap"
)

const (
	defaultIPInfoBaseURL = "https://ipinfo.io"
	defaultIPifyURL      = "https://api.ipify.org?format=json"
	defaultTimeout       = 5 * time.Second
	maxBodyBytes         = 64 << 10
)

// Config holds the lookup service settings
type Config struct {
	// Tokens for ipinfo.io. One is picked at random per lookup. Lookups are
	// disabled when the list is empty.
	Tokens []string

	Timeout       time.Duration
	IPInfoBaseURL string
	IPifyURL      string
}

// Client resolves client IPs to locations. Lookup never fails the caller;
// problems are recorded in the returned IPInfo.Error.
type Client struct {
	tokens     []string
	baseURL    string
	ipifyURL   string
	httpClient *http.Client
	logger     *zap.Logger
	pick       func(n int) int
}

// NewClient creates a geo lookup client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.IPInfoBaseURL == "" {
		cfg.IPInfoBaseURL = defaultIPInfoBaseURL
	}
	if cfg.IPifyURL == "" {
		cfg.IPifyURL = defaultIPifyURL
	}

	tokens := make([]string, 0, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}

	return &Client{
		tokens:     tokens,
		baseURL:    strings.TrimRight(cfg.IPInfoBaseURL, "/"),
		ipifyURL:   cfg.IPifyURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		pick:       rand.IntN,
	}
}

// Enabled reports whether any ipinfo token is configured
func (c *Client) Enabled() bool {
	return len(c.tokens) > 0
}

// ResolvePublicIP swaps a loopback address for the machine's public IP so
// local development logins still get a meaningful location. Any failure
// returns ip unchanged.
func (c *Client) ResolvePublicIP(ctx context.Context, ip string) string {
	if !IsLoopback(ip) || !c.Enabled() {
		return ip
	}

	var body struct {
		IP string `json:"ip"`
	}
	status, err := c.getJSON(ctx, c.ipifyURL, &body)
	if err != nil || status != http.StatusOK || body.IP == "" {
		c.logger.Debug("public ip lookup failed",
			zap.String("ip", ip),
			zap.Int("status", status),
			zap.Error(err))
		return ip
	}
	return body.IP
}

// Lookup returns location data for ip. It returns nil when lookups are
// disabled or ip is empty.
func (c *Client) Lookup(ctx context.Context, ip string) *models.IPInfo {
	if !c.Enabled() || ip == "" {
		return nil
	}

	token := c.tokens[c.pick(len(c.tokens))]
	endpoint := fmt.Sprintf("%s/%s?token=%s", c.baseURL, url.PathEscape(ip), url.QueryEscape(token))

	var info models.IPInfo
	status, err := c.getJSON(ctx, endpoint, &info)
	if err != nil {
		c.logger.Warn("ip lookup failed", zap.String("ip", ip), zap.Error(err))
		return &models.IPInfo{IP: ip, Error: err.Error()}
	}
	if status != http.StatusOK {
		return &models.IPInfo{IP: ip, Error: fmt.Sprintf("API request failed with status code %d", status)}
	}

	info.Error = ""
	return &info
}

// getJSON decodes a 200 body into out and reports the status otherwise
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// redact strips the request URL, which carries the API token, from
// transport errors before they are stored or logged
func redact(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return ue.Err
	}
	return err
}

// ClientIP returns the first X-Forwarded-For hop, falling back to the
// request's remote address without its port
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IsLoopback reports whether ip names the local machine
func IsLoopback(ip string) bool {
	if ip == "localhost" {
		return true
	}
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
