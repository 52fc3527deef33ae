package ecommerce

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestPrestaShopConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *PrestaShopConfig
		wantErr error
	}{
		{name: "valid config", config: &PrestaShopConfig{BaseURL: "https://shop/api/", APIKey: "k"}},
		{name: "missing base url", config: &PrestaShopConfig{APIKey: "k"}, wantErr: ErrPrestaShopConfigMissingBaseURL},
		{name: "missing key", config: &PrestaShopConfig{BaseURL: "https://shop"}, wantErr: ErrPrestaShopConfigMissingAPIKey},
		{
			name:    "invalid scheme",
			config:  &PrestaShopConfig{BaseURL: "https://shop", APIKey: "k", AuthScheme: "oauth"},
			wantErr: ErrPrestaShopConfigInvalidScheme,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://shop/api", tt.config.BaseURL)
			assert.Equal(t, AuthSchemeBearer, tt.config.AuthScheme)
			assert.Equal(t, "/products", tt.config.SearchPath)
			assert.Equal(t, 30, tt.config.TimeoutSeconds)
		})
	}
}

// ---------------------------------------------------------------------------
// Client Tests
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, serverURL string, scheme AuthScheme, useXML bool, auth Authenticator) *PrestaShopClient {
	t.Helper()
	cfg := NewPrestaShopConfig(serverURL, "KEY1")
	cfg.AuthScheme = scheme
	cfg.UseXML = useXML
	client, err := NewPrestaShopClient(cfg, auth)
	require.NoError(t, err)
	return client
}

func TestPrestaShopClient_AuthSchemes(t *testing.T) {
	tests := []struct {
		scheme AuthScheme
		check  func(t *testing.T, r *http.Request)
	}{
		{
			scheme: AuthSchemeBearer,
			check: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "Bearer KEY1", r.Header.Get("Authorization"))
				assert.Empty(t, r.URL.Query().Get("ws_key"))
			},
		},
		{
			scheme: AuthSchemeBasic,
			check: func(t *testing.T, r *http.Request) {
				want := "Basic " + base64.StdEncoding.EncodeToString([]byte("KEY1:"))
				assert.Equal(t, want, r.Header.Get("Authorization"))
			},
		},
		{
			scheme: AuthSchemeWSKey,
			check: func(t *testing.T, r *http.Request) {
				assert.Empty(t, r.Header.Get("Authorization"))
				assert.Equal(t, "KEY1", r.URL.Query().Get("ws_key"))
				assert.Equal(t, "1", r.URL.Query().Get("limit"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.scheme), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.check(t, r)
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"products":[{"id":42}]}`)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, tt.scheme, false, nil)
			resp, err := client.Get(context.Background(), "/products?filters[reference]=A1&limit=1")
			require.NoError(t, err)
			assert.True(t, resp.IsSuccess())

			id, ok := resp.Body.FindID("id")
			assert.True(t, ok)
			assert.Equal(t, int64(42), id)
		})
	}
}

func TestPrestaShopClient_OutputFormat(t *testing.T) {
	tests := []struct {
		name      string
		useXML    bool
		path      string
		wantQuery string
	}{
		{name: "json mode", useXML: false, path: "/products/42", wantQuery: "output_format=JSON&ws_key=KEY1"},
		{name: "json mode with filters", useXML: false, path: "/products?limit=1", wantQuery: "limit=1&output_format=JSON&ws_key=KEY1"},
		{name: "xml mode", useXML: true, path: "/products/42", wantQuery: "ws_key=KEY1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.RawQuery
				_, _ = io.WriteString(w, `{"product":{"id":42}}`)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, AuthSchemeWSKey, tt.useXML, nil)
			_, err := client.Get(context.Background(), tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, gotQuery)
		})
	}
}

func TestPrestaShopClient_Get_XMLBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/xml", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<prestashop xmlns:xlink="http://www.w3.org/1999/xlink">
  <product><id><![CDATA[42]]></id><quantity>5</quantity></product>
</prestashop>`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, AuthSchemeBearer, true, nil)
	resp, err := client.Get(context.Background(), "products/42")
	require.NoError(t, err)

	id, ok := resp.Body.FindID("id")
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestPrestaShopClient_Patch_JSON(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/products/42", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = io.WriteString(w, `{"product":{"id":42}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, AuthSchemeBearer, false, nil)
	resp, err := client.Patch(context.Background(), "/products/42", map[string]any{"quantity": 3})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"quantity":3}`, gotBody)
}

func TestPrestaShopClient_Patch_XML(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, AuthSchemeBearer, true, nil)
	_, err := client.Patch(context.Background(), "/products/42", map[string]any{"quantity": 3})
	require.NoError(t, err)
	assert.Contains(t, gotBody, "<product>")
	assert.Contains(t, gotBody, "<quantity>3</quantity>")
}

// refreshingAuth counts refresh attempts and optionally swaps credentials
type refreshingAuth struct {
	*KeyAuthenticator
	refreshes atomic.Int32
}

func (a *refreshingAuth) Refresh(ctx context.Context) (bool, error) {
	a.refreshes.Add(1)
	return a.KeyAuthenticator.Refresh(ctx)
}

func TestPrestaShopClient_AuthRetry(t *testing.T) {
	t.Run("retries once after successful refresh", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			if r.Header.Get("Authorization") != "Bearer KEY2" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"id":1}`)
		}))
		defer server.Close()

		auth := &refreshingAuth{KeyAuthenticator: NewKeyAuthenticator(AuthSchemeBearer, "KEY1", func(context.Context) (string, error) {
			return "KEY2", nil
		})}
		client := newTestClient(t, server.URL, AuthSchemeBearer, false, auth)

		resp, err := client.Get(context.Background(), "/products/1")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, int32(1), auth.refreshes.Load())
	})

	t.Run("returns original response when retry also fails", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := calls.Add(1)
			if n == 1 {
				w.WriteHeader(http.StatusForbidden)
				_, _ = io.WriteString(w, `{"error":"first"}`)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		rotating := 0
		auth := &refreshingAuth{KeyAuthenticator: NewKeyAuthenticator(AuthSchemeBearer, "KEY1", func(context.Context) (string, error) {
			rotating++
			return "KEY-" + string(rune('A'+rotating)), nil
		})}
		client := newTestClient(t, server.URL, AuthSchemeBearer, false, auth)

		resp, err := client.Get(context.Background(), "/products/1")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.Code)
		assert.Contains(t, string(resp.Raw), "first")
		assert.Equal(t, int32(2), calls.Load(), "exactly one retry")
		assert.Equal(t, int32(1), auth.refreshes.Load())
	})

	t.Run("no retry when refresh yields nothing", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, AuthSchemeBearer, false, nil)
		resp, err := client.Get(context.Background(), "/products/1")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("refresh error keeps original response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		auth := NewKeyAuthenticator(AuthSchemeBearer, "KEY1", func(context.Context) (string, error) {
			return "", errors.New("vault down")
		})
		client := newTestClient(t, server.URL, AuthSchemeBearer, false, auth)
		resp, err := client.Get(context.Background(), "/products/1")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

func TestPrestaShopClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, url, AuthSchemeBearer, false, nil)
	_, err := client.Get(context.Background(), "/products/1")
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrPlatformUnavailable)
}
