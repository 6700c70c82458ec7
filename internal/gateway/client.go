package gateway

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

	"recibo/internal/config"
	"recibo/internal/constants"
	"recibo/internal/logger"
)

// Client talks to an UltraMsg-style messaging gateway: one endpoint for
// outbound chat texts, one for authenticated media downloads by id, plus
// plain GETs for CDN-hosted media URLs.
type Client struct {
	baseURL     string
	instance    string
	token       string
	sendClient  *http.Client
	fetchClient *http.Client
	logger      logger.Logger
}

func NewClient(cfg config.GatewayConfig, log logger.Logger) *Client {
	sendTimeout := time.Duration(cfg.SendTimeoutSeconds) * time.Second
	if sendTimeout <= 0 {
		sendTimeout = constants.DefaultSendTimeout
	}
	fetchTimeout := time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	if fetchTimeout <= 0 {
		fetchTimeout = constants.DefaultFetchTimeout
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		instance:    cfg.Instance,
		token:       cfg.Token,
		sendClient:  &http.Client{Timeout: sendTimeout},
		fetchClient: &http.Client{Timeout: fetchTimeout},
		logger:      log,
	}
}

type sendTextRequest struct {
	Token string `json:"token"`
	To    string `json:"to"`
	Body  string `json:"body"`
}

// SendText posts one chat message. Delivery is best-effort from the
// pipeline's point of view; the caller logs and moves on.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(sendTextRequest{
		Token: c.token,
		To:    to,
		Body:  body,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages/chat", c.baseURL, c.instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.sendClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	return nil
}

// FetchByURL downloads media from a directly fetchable URL, usually the
// gateway's CDN. No gateway credentials are attached; the URL is expected to
// be self-authorizing.
func (c *Client) FetchByURL(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.download(req)
}

// FetchByID downloads media through the gateway's authenticated media
// endpoint using the opaque id from the webhook payload.
func (c *Client) FetchByID(ctx context.Context, mediaID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s/media/%s?token=%s",
		c.baseURL, c.instance, url.PathEscape(mediaID), url.QueryEscape(c.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.download(req)
}

func (c *Client) download(req *http.Request) ([]byte, error) {
	resp, err := c.fetchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read media body: %w", err)
	}

	return data, nil
}

// Name implements health.Checker.
func (c *Client) Name() string {
	return "gateway"
}

// Check implements health.Checker by probing the gateway instance status
// endpoint.
func (c *Client) Check(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/%s/instance/status?token=%s",
		c.baseURL, c.instance, url.QueryEscape(c.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.sendClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		return fmt.Errorf("gateway status endpoint returned %d", resp.StatusCode)
	}

	return nil
}
