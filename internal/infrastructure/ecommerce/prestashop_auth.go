package ecommerce

import (
	"context"
	"net/http"
	"sync"
)

// Authenticator applies credentials to outgoing requests and can try to
// obtain fresh credentials after a 401/403.
type Authenticator interface {
	// Sign returns the URL to call, signed when the scheme carries the key in the query.
	Sign(rawURL string) string
	// Apply sets credential headers on req.
	Apply(req *http.Request)
	// Refresh reports whether new credentials were obtained.
	Refresh(ctx context.Context) (bool, error)
}

// KeySource fetches the current API key, e.g. from a secrets file.
type KeySource func(ctx context.Context) (string, error)

// KeyAuthenticator authenticates with a static webservice key. When a
// KeySource is configured, Refresh re-reads the key and reports a refresh
// only if it changed.
type KeyAuthenticator struct {
	scheme AuthScheme
	source KeySource

	mu  sync.RWMutex
	key string
}

// NewKeyAuthenticator creates an authenticator for scheme. source may be nil.
func NewKeyAuthenticator(scheme AuthScheme, key string, source KeySource) *KeyAuthenticator {
	return &KeyAuthenticator{scheme: scheme, key: key, source: source}
}

func (a *KeyAuthenticator) currentKey() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.key
}

// Sign implements Authenticator
func (a *KeyAuthenticator) Sign(rawURL string) string {
	if a.scheme != AuthSchemeWSKey {
		return rawURL
	}
	return appendQuery(rawURL, "ws_key", a.currentKey())
}

// Apply implements Authenticator
func (a *KeyAuthenticator) Apply(req *http.Request) {
	switch a.scheme {
	case AuthSchemeBearer:
		req.Header.Set("Authorization", "Bearer "+a.currentKey())
	case AuthSchemeBasic:
		req.SetBasicAuth(a.currentKey(), "")
	}
}

// Refresh implements Authenticator
func (a *KeyAuthenticator) Refresh(ctx context.Context) (bool, error) {
	if a.source == nil {
		return false, nil
	}
	fresh, err := a.source(ctx)
	if err != nil {
		return false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if fresh == "" || fresh == a.key {
		return false, nil
	}
	a.key = fresh
	return true, nil
}

var _ Authenticator = (*KeyAuthenticator)(nil)
