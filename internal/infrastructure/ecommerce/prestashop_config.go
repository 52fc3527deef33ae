package ecommerce

import (
	"errors"
	"strings"
)

// AuthScheme selects how the PrestaShop API key is presented
type AuthScheme string

const (
	// AuthSchemeBearer sends "Authorization: Bearer <key>"
	AuthSchemeBearer AuthScheme = "bearer"
	// AuthSchemeBasic sends the key as basic auth user with an empty password
	AuthSchemeBasic AuthScheme = "basic"
	// AuthSchemeWSKey signs the URL with ?ws_key=<key>
	AuthSchemeWSKey AuthScheme = "ws_key"
)

// IsValid returns true if the scheme is supported
func (s AuthScheme) IsValid() bool {
	switch s {
	case AuthSchemeBearer, AuthSchemeBasic, AuthSchemeWSKey:
		return true
	}
	return false
}

// PrestaShopConfig holds configuration for the PrestaShop webservice
type PrestaShopConfig struct {
	// BaseURL is the webservice root, e.g. https://shop.example.com/api
	BaseURL string
	// APIKey is the webservice key
	APIKey string
	// AuthScheme selects header or URL based authentication
	AuthScheme AuthScheme
	// UseXML encodes PATCH payloads as XML instead of JSON
	UseXML bool
	// SearchPath is the primary product search path
	SearchPath string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Errors for PrestaShop configuration
var (
	ErrPrestaShopConfigMissingBaseURL = errors.New("prestashop: base URL is required")
	ErrPrestaShopConfigMissingAPIKey  = errors.New("prestashop: api key is required")
	ErrPrestaShopConfigInvalidScheme  = errors.New("prestashop: unsupported auth scheme")
)

// NewPrestaShopConfig creates a PrestaShop configuration with defaults
func NewPrestaShopConfig(baseURL, apiKey string) *PrestaShopConfig {
	return &PrestaShopConfig{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		AuthScheme:     AuthSchemeBearer,
		UseXML:         true,
		SearchPath:     "/products",
		TimeoutSeconds: 30,
	}
}

// Validate validates the configuration and fills defaults
func (c *PrestaShopConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrPrestaShopConfigMissingBaseURL
	}
	if c.APIKey == "" {
		return ErrPrestaShopConfigMissingAPIKey
	}
	if c.AuthScheme == "" {
		c.AuthScheme = AuthSchemeBearer
	}
	if !c.AuthScheme.IsValid() {
		return ErrPrestaShopConfigInvalidScheme
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.SearchPath == "" {
		c.SearchPath = "/products"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
