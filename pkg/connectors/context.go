// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package connectors

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nandam/nandam/pkg/downloader"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/storage"
	"github.com/nandam/nandam/pkg/uri"
)

// Credential is a per-request auth override for one realm: either a raw
// bearer token or a complete Authorization header value
type Credential struct {
	Token  string `yaml:"token,omitempty"`
	Header string `yaml:"header,omitempty"`
}

// AuthHeader renders the Authorization header value
func (c Credential) AuthHeader() string {
	if c.Header != "" {
		return c.Header
	}
	if c.Token != "" {
		return BearerAuthHeader(c.Token)
	}
	return ""
}

// BearerAuthHeader builds a Bearer Authorization header value
func BearerAuthHeader(token string) string {
	return "Bearer " + token
}

// BasicAuthHeader builds a Basic Authorization header value
func BasicAuthHeader(username, password string) string {
	return "Basic " + ident.EncodeBase64Std([]byte(username+":"+password))
}

// Context carries the state of one gateway request: identity, credential
// overrides, the outbound collaborators and the request-private caches.
// It is released at request end and never shared across requests.
type Context struct {
	// ID tags log lines and upstream calls of this request
	ID string
	// Downloader is the outbound I/O surface
	Downloader downloader.Interface
	// Storage is the persistence service
	Storage *storage.Service
	// CacheResolve memoises locator inference and resolution
	CacheResolve *ResolveCache
	// CacheStorage memoises loaded resource histories
	CacheStorage *StorageCache
	// CacheConnector memoises per-realm backend lookups
	CacheConnector *ConnectorCache

	creds map[string]Credential
}

// NewContext starts a request
func NewContext(dl downloader.Interface, store *storage.Service, creds map[string]Credential) *Context {
	return &Context{
		ID:             uuid.NewString(),
		Downloader:     dl,
		Storage:        store,
		CacheResolve:   newResolveCache(),
		CacheStorage:   newStorageCache(),
		CacheConnector: newConnectorCache(),
		creds:          creds,
	}
}

// Credential returns the per-request override for a realm
func (c *Context) Credential(realm string) (Credential, bool) {
	cred, ok := c.creds[realm]
	return cred, ok
}

// AuthHeader returns the per-request Authorization value for a realm,
// falling back to the given configured public header
func (c *Context) AuthHeader(realm, configured string) string {
	if cred, ok := c.creds[realm]; ok {
		if h := cred.AuthHeader(); h != "" {
			return h
		}
	}
	return configured
}

// resolveOutcome is one memoised resolution; failed resolutions are
// cached too and re-raise the original error
type resolveOutcome struct {
	view *model.ResourceView
	err  error
}

// ResolveCache memoises per-request locator inference and resolution.
// The coordinator fans out within a request, so access is serialised.
type ResolveCache struct {
	mu       sync.Mutex
	inferred map[string]locatorOutcome
	resolved map[uri.ResourceURI]resolveOutcome
}

type locatorOutcome struct {
	locator locators.Locator
	err     error
}

func newResolveCache() *ResolveCache {
	return &ResolveCache{
		inferred: map[string]locatorOutcome{},
		resolved: map[uri.ResourceURI]resolveOutcome{},
	}
}

// GetInferred returns the memoised inference of a reference string
func (c *ResolveCache) GetInferred(reference string) (locators.Locator, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, ok := c.inferred[reference]
	return out.locator, out.err, ok
}

// SetInferred memoises the inference of a reference string
func (c *ResolveCache) SetInferred(reference string, loc locators.Locator, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inferred[reference] = locatorOutcome{locator: loc, err: err}
}

// GetResolved returns the memoised resolution of a URI
func (c *ResolveCache) GetResolved(u uri.ResourceURI) (*model.ResourceView, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, ok := c.resolved[u]
	return out.view, out.err, ok
}

// SetResolved memoises the resolution of a URI
func (c *ResolveCache) SetResolved(u uri.ResourceURI, view *model.ResourceView, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved[u] = resolveOutcome{view: view, err: err}
}

// ConnectorCache memoises per-realm backend lookups (default branches,
// branch probes, repo configuration, derived API clients) for one
// request. Connectors hold nothing beyond their fixed options, so
// lookups made under one caller's credentials never serve another.
// Keys are realm-prefixed by convention.
type ConnectorCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
}

func newConnectorCache() *ConnectorCache {
	return &ConnectorCache{entries: map[string]interface{}{}}
}

// Get returns a memoised entry; a stored nil reports found
func (c *ConnectorCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	return value, ok
}

// Set memoises an entry
func (c *ConnectorCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

// StorageCache memoises resource-history loads for one request
type StorageCache struct {
	mu        sync.Mutex
	histories map[uri.ResourceURI]*model.ResourceHistory
}

func newStorageCache() *StorageCache {
	return &StorageCache{histories: map[uri.ResourceURI]*model.ResourceHistory{}}
}

// GetHistory loads a resource history through the cache. A negative
// lookup is cached as a nil entry.
func (c *StorageCache) GetHistory(ctx context.Context, store *storage.Service, u uri.ResourceURI) (*model.ResourceHistory, bool, error) {
	c.mu.Lock()
	if history, ok := c.histories[u]; ok {
		c.mu.Unlock()
		return history, history != nil, nil
	}
	c.mu.Unlock()
	history, found, err := store.GetHistory(ctx, u)
	if err != nil {
		return nil, false, fmt.Errorf("loading history of %s: %w", u, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !found {
		c.histories[u] = nil
		return nil, false, nil
	}
	c.histories[u] = history
	return history, true, nil
}

// PutHistory refreshes the cached entry after a persist
func (c *StorageCache) PutHistory(u uri.ResourceURI, history *model.ResourceHistory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.histories[u] = history
}
