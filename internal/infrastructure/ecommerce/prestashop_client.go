package ecommerce

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// maxResponseSize is the maximum allowed response size from the webservice (10MB)
const maxResponseSize = 10 * 1024 * 1024

// PrestaShopClient implements integration.CommerceClient against the
// PrestaShop webservice.
type PrestaShopClient struct {
	config     *PrestaShopConfig
	auth       Authenticator
	httpClient *http.Client
}

// NewPrestaShopClient creates a new client. auth defaults to a static key
// authenticator for the configured scheme.
func NewPrestaShopClient(config *PrestaShopConfig, auth Authenticator) (*PrestaShopClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if auth == nil {
		auth = NewKeyAuthenticator(config.AuthScheme, config.APIKey, nil)
	}
	return &PrestaShopClient{
		config: config,
		auth:   auth,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// SearchPath returns the configured primary search path
func (c *PrestaShopClient) SearchPath() string {
	return c.config.SearchPath
}

// Get implements integration.CommerceClient
func (c *PrestaShopClient) Get(ctx context.Context, path string) (*integration.CommerceResponse, error) {
	return c.do(ctx, http.MethodGet, path, nil, "")
}

// Patch implements integration.CommerceClient
func (c *PrestaShopClient) Patch(ctx context.Context, path string, payload map[string]any) (*integration.CommerceResponse, error) {
	body, contentType, err := EncodePayload(payload, c.config.UseXML, "product")
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPatch, path, body, contentType)
}

// do sends the request and, on 401/403, performs at most one credential
// refresh and retry. When the retry cannot be made or also fails, the
// original response is returned.
func (c *PrestaShopClient) do(ctx context.Context, method, path string, body []byte, contentType string) (*integration.CommerceResponse, error) {
	resp, err := c.send(ctx, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	if resp.Code != http.StatusUnauthorized && resp.Code != http.StatusForbidden {
		return resp, nil
	}

	log := logger.L(ctx).With(zap.String("method", method), zap.String("path", path), zap.Int("code", resp.Code))
	refreshed, err := c.auth.Refresh(ctx)
	if err != nil {
		log.Warn("PrestaShop credential refresh failed", zap.Error(err))
		return resp, nil
	}
	if !refreshed {
		log.Warn("PrestaShop rejected credentials, no refresh available")
		return resp, nil
	}

	retry, err := c.send(ctx, method, path, body, contentType)
	if err != nil {
		log.Warn("PrestaShop retry after refresh failed", zap.Error(err))
		return resp, nil
	}
	if !retry.IsSuccess() {
		log.Warn("PrestaShop retry after refresh rejected", zap.Int("retry_code", retry.Code))
		return resp, nil
	}
	return retry, nil
}

func (c *PrestaShopClient) send(ctx context.Context, method, path string, body []byte, contentType string) (*integration.CommerceResponse, error) {
	target := c.config.BaseURL + "/" + strings.TrimLeft(path, "/")
	if !c.config.UseXML {
		// the webservice answers in XML unless asked otherwise
		target = appendQuery(target, "output_format", "JSON")
	}
	target = c.auth.Sign(target)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("prestashop: failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.config.UseXML {
		req.Header.Set("Accept", "application/xml")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	c.auth.Apply(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", integration.ErrPlatformUnavailable, err)
	}

	logger.L(ctx).Debug("PrestaShop response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("code", resp.StatusCode),
	)

	return &integration.CommerceResponse{
		Code: resp.StatusCode,
		Body: DecodeBody(raw),
		Raw:  raw,
	}, nil
}

func appendQuery(rawURL, key, value string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + key + "=" + url.QueryEscape(value)
}

var _ integration.CommerceClient = (*PrestaShopClient)(nil)
