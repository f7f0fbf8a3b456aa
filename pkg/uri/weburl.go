// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package uri

import (
	"fmt"
	"net/url"
	"strings"
)

// WebURL is a parsed http(s) URL. Unlike url.Values, query pairs keep their
// document order.
type WebURL struct {
	u url.URL
}

// QueryPair is one name=value occurrence in document order
type QueryPair struct {
	Name  string
	Value string
}

// ParseWebURL parses an absolute http(s) URL
func ParseWebURL(s string) (*WebURL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("URL %q is not an http(s) URL", s)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("URL %q has no host", s)
	}
	return &WebURL{u: *u}, nil
}

// TryParseWebURL is the non-failing variant of ParseWebURL
func TryParseWebURL(s string) (*WebURL, bool) {
	u, err := ParseWebURL(s)
	return u, err == nil
}

func (w *WebURL) String() string { return w.u.String() }

// Scheme returns "http" or "https"
func (w *WebURL) Scheme() string { return w.u.Scheme }

// Host returns the host without the port
func (w *WebURL) Host() string { return w.u.Hostname() }

// Port returns the explicit port or ""
func (w *WebURL) Port() string { return w.u.Port() }

// Path returns the decoded URL path
func (w *WebURL) Path() string { return w.u.Path }

// Fragment returns the decoded fragment
func (w *WebURL) Fragment() string { return w.u.Fragment }

// PathSegments returns the non-empty path segments
func (w *WebURL) PathSegments() []string {
	var out []string
	for _, p := range strings.Split(w.u.Path, "/") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// QueryPairs returns the query pairs in document order
func (w *WebURL) QueryPairs() []QueryPair {
	if w.u.RawQuery == "" {
		return nil
	}
	var out []QueryPair
	for _, kv := range strings.Split(w.u.RawQuery, "&") {
		if kv == "" {
			continue
		}
		name, value, _ := strings.Cut(kv, "=")
		n, err := url.QueryUnescape(name)
		if err != nil {
			n = name
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			v = value
		}
		out = append(out, QueryPair{Name: n, Value: v})
	}
	return out
}

// GetQuery returns the first value of the named query parameter
func (w *WebURL) GetQuery(name string) (string, bool) {
	for _, p := range w.QueryPairs() {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// TryJoinHref resolves a relative href against w with standard URL-join
// semantics (protocol-relative, absolute-path and relative references). The
// result never contains "." or ".." segments.
func (w *WebURL) TryJoinHref(href string) (*WebURL, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return nil, err
	}
	joined := w.u.ResolveReference(ref)
	if joined.Scheme != "http" && joined.Scheme != "https" {
		return nil, fmt.Errorf("href %q resolves outside http(s)", href)
	}
	if joined.Host == "" {
		return nil, fmt.Errorf("href %q resolves to no host", href)
	}
	return &WebURL{u: *joined}, nil
}
