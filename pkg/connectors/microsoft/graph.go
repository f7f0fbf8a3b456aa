// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package microsoft

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// graphBase is the Graph API root
const graphBase = "https://graph.microsoft.com/v1.0"

// pacingDelay spaces Graph requests to stay under backend rate limits
const pacingDelay = 100 * time.Millisecond

// tokenRefreshMargin refreshes app tokens well before they expire so an
// in-flight request never crosses the expiry
const tokenRefreshMargin = 600 * time.Second

// Pacer serialises Graph traffic: one request in flight at a time with a
// pacing delay after acquiring the slot. One Pacer is shared by every
// Graph connector in the process.
type Pacer struct {
	mu sync.Mutex
}

// NewPacer builds a pacer
func NewPacer() *Pacer { return &Pacer{} }

// Do runs fn holding the Graph slot
func (p *Pacer) Do(ctx context.Context, fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-time.After(pacingDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return fn()
}

// TokenCache caches one app-only Graph access token acquired through the
// client-credentials flow. Acquisition is serialised; the token is
// refreshed when now plus the refresh margin reaches the expiry.
type TokenCache struct {
	mu     sync.Mutex
	conf   *clientcredentials.Config
	token  string
	expiry time.Time
}

// NewTokenCache builds a token cache for one tenant app registration
func NewTokenCache(tenantID, clientID, clientSecret string) *TokenCache {
	return &TokenCache{
		conf: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     "https://login.microsoftonline.com/" + tenantID + "/oauth2/v2.0/token",
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		},
	}
}

// Token returns a valid access token, refreshing when needed
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Add(tokenRefreshMargin).Before(c.expiry) {
		return c.token, nil
	}
	tok, err := c.conf.Token(ctx)
	if err != nil {
		return "", err
	}
	c.token = tok.AccessToken
	c.expiry = tok.Expiry
	return c.token, nil
}
