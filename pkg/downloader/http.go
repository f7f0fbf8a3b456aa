// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/peterbourgon/diskv"
	"k8s.io/klog/v2"

	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

// Client implements Interface over a caching HTTP transport and the
// documents-parser subservice
type Client struct {
	httpClient *http.Client
	parserBase string
}

// NewClient builds a downloader. When cacheDir is non-empty, responses
// are cached on disk so repeated refreshes do not re-download unchanged
// artifacts. parserBase is the documents-parser subservice endpoint and
// may be empty when no parsing is needed.
func NewClient(cacheDir, parserBase string) *Client {
	httpClient := http.DefaultClient
	if cacheDir != "" {
		flatTransform := func(s string) []string { return []string{} }
		d := diskv.New(diskv.Options{
			BasePath:     cacheDir,
			Transform:    flatTransform,
			CacheSizeMax: 1024 * 1024 * 1024,
		})
		cacheTransport := &httpcache.Transport{
			Transport:           http.DefaultTransport,
			Cache:               diskcache.NewWithDiskv(d),
			MarkCachedResponses: true,
		}
		httpClient = cacheTransport.Client()
	}
	return &Client{httpClient: httpClient, parserBase: strings.TrimSuffix(parserBase, "/")}
}

// NewClientWithHTTP builds a downloader over a caller-provided client
func NewClientWithHTTP(httpClient *http.Client, parserBase string) *Client {
	return &Client{httpClient: httpClient, parserBase: strings.TrimSuffix(parserBase, "/")}
}

func statusError(url string, status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return UnavailableError(fmt.Sprintf("%s is unavailable (status %d)", url, status))
	}
	return DownloadError{Status: status, URL: url}
}

func (c *Client) do(ctx context.Context, method, url string, headers http.Header, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, statusError(url, resp.StatusCode)
	}
	return resp, nil
}

// FetchBytes implements Interface
func (c *Client) FetchBytes(ctx context.Context, url *uri.WebURL, headers http.Header) ([]byte, ident.MimeType, http.Header, error) {
	resp, err := c.do(ctx, http.MethodGet, url.String(), headers, nil)
	if err != nil {
		return nil, "", nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", nil, err
	}
	mime := contentTypeMime(resp.Header)
	return data, mime, resp.Header, nil
}

// FetchHead implements Interface
func (c *Client) FetchHead(ctx context.Context, url *uri.WebURL, headers http.Header) (http.Header, error) {
	resp, err := c.do(ctx, http.MethodHead, url.String(), headers, nil)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp.Header, nil
}

// FetchJSON implements Interface
func (c *Client) FetchJSON(ctx context.Context, url *uri.WebURL, headers http.Header, out interface{}) (http.Header, error) {
	resp, err := c.do(ctx, http.MethodGet, url.String(), headers, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("decoding JSON from %s: %w", url, err)
	}
	return resp.Header, nil
}

// wire shapes of the parser subservice
type readDownloadRequest struct {
	URL           string            `json:"url"`
	Authorization string            `json:"authorization,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Options       ReadOptions       `json:"options,omitempty"`
}

type readBlobRequest struct {
	Name     string      `json:"name"`
	MimeType string      `json:"mime_type"`
	Blob     string      `json:"blob"`
	Options  ReadOptions `json:"options,omitempty"`
}

type readResponse struct {
	Name     string            `json:"name"`
	MimeType string            `json:"mime_type"`
	Headers  map[string]string `json:"headers,omitempty"`
	Mode     string            `json:"mode"`
	Text     string            `json:"text"`
	Blobs    map[string]string `json:"blobs,omitempty"`
}

func (r *readResponse) typed() (*DocumentsReadResponse, error) {
	out := &DocumentsReadResponse{
		Name:     r.Name,
		MimeType: ident.MimeType(r.MimeType),
		Headers:  http.Header{},
		Mode:     model.FragmentMode(r.Mode),
		Text:     r.Text,
	}
	for name, v := range r.Headers {
		out.Headers.Set(name, v)
	}
	if len(r.Blobs) > 0 {
		out.Blobs = map[uri.FragmentURI]ident.DataURI{}
		for key, value := range r.Blobs {
			frag, err := uri.DecodeFragmentURI(key)
			if err != nil {
				return nil, fmt.Errorf("parser blob key: %w", err)
			}
			data, err := ident.DecodeDataURI(value)
			if err != nil {
				return nil, fmt.Errorf("parser blob %s: %w", key, err)
			}
			out.Blobs[frag] = data
		}
	}
	return out, nil
}

func (c *Client) readCall(ctx context.Context, path string, payload interface{}) (*DocumentsReadResponse, error) {
	if c.parserBase == "" {
		return nil, UnavailableError("no documents parser endpoint configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	resp, err := c.do(ctx, http.MethodPost, c.parserBase+path, headers, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var wire readResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding parser response: %w", err)
	}
	return wire.typed()
}

// ReadDownload implements Interface
func (c *Client) ReadDownload(ctx context.Context, url *uri.WebURL, authorization string, headers http.Header, opts ReadOptions) (*DocumentsReadResponse, error) {
	klog.V(6).Infof("parsing document at %s", url)
	req := readDownloadRequest{URL: url.String(), Authorization: authorization, Options: opts}
	if len(headers) > 0 {
		req.Headers = map[string]string{}
		for name := range headers {
			req.Headers[name] = headers.Get(name)
		}
	}
	return c.readCall(ctx, "/read/download", req)
}

// ReadBlob implements Interface
func (c *Client) ReadBlob(ctx context.Context, name string, mime ident.MimeType, blob []byte, opts ReadOptions) (*DocumentsReadResponse, error) {
	klog.V(6).Infof("parsing uploaded blob %s (%s, %d bytes)", name, mime, len(blob))
	req := readBlobRequest{Name: name, MimeType: string(mime), Blob: ident.EncodeBase64Std(blob), Options: opts}
	return c.readCall(ctx, "/read/blob", req)
}

func contentTypeMime(headers http.Header) ident.MimeType {
	ct := headers.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mimePart, _, _ := strings.Cut(ct, ";")
	mime, err := ident.DecodeMimeType(strings.TrimSpace(mimePart))
	if err != nil {
		return ""
	}
	return mime
}
