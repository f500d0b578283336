// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tap implements the synchronous Table Access Protocol (TAP) request
// used by ESASky: an ADQL query is sent as a GET request to <base>/tap/sync and
// the result is returned as a VOTABLE document.
//
// The HTTP client is taken from the context (see fetch.UseClient), so its
// timeout and transport are controlled by the caller.
package tap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// SyncPath is the path of the synchronous query endpoint relative to the
// service base URL.
const SyncPath = "/tap/sync"

// Payload is the set of request parameters of a synchronous TAP query. It is
// a plain value: two payloads built from the same query are equal.
type Payload struct {
	Request string // always "doQuery"
	Lang    string // always "ADQL"
	Format  string // always "VOTABLE"
	Query   string
}

// NewPayload creates the request payload for the ADQL query.
func NewPayload(query string) Payload {
	return Payload{
		Request: "doQuery",
		Lang:    "ADQL",
		Format:  "VOTABLE",
		Query:   query,
	}
}

// Map returns the payload as a map of request parameters.
func (p Payload) Map() map[string]string {
	return map[string]string{
		"REQUEST": p.Request,
		"LANG":    p.Lang,
		"FORMAT":  p.Format,
		"QUERY":   p.Query,
	}
}

// Values returns the URL query values of the payload. Each call creates a new
// object.
func (p Payload) Values() url.Values {
	v := make(url.Values)
	for k, s := range p.Map() {
		v.Set(k, s)
	}
	return v
}

// RemoteFetchError is returned when an HTTP request to the service fails,
// including the failure to decode its response.
type RemoteFetchError struct {
	URL string
	Err error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %s", e.URL, e.Err.Error())
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// Response is the raw result of a TAP request.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Wait blocks until the limiter allows another request. A nil limiter never
// blocks.
func Wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}

// Get fetches the URI and reads the whole response body. Responses with a
// status other than 200 OK are errors.
func Get(ctx context.Context, uri string, query url.Values) (*Response, error) {
	resp, err := fetch.GetRetry(ctx, uri, query, nil)
	if err != nil {
		return nil, &RemoteFetchError{URL: uri, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteFetchError{
			URL: uri,
			Err: errors.Reason("HTTP status %s", resp.Status),
		}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteFetchError{
			URL: uri,
			Err: errors.Annotate(err, "failed to read response body"),
		}
	}
	return &Response{
		URL:        uri,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Executor sends queries to a TAP service.
type Executor struct {
	baseURL string
	limiter *rate.Limiter
	cache   *lru.Cache[string, *Response]
}

// NewExecutor creates an Executor for the service at baseURL. The limiter may
// be nil. A positive cacheSize enables an in-memory cache of that many
// responses, used only by requests which ask for it.
func NewExecutor(baseURL string, limiter *rate.Limiter, cacheSize int) (*Executor, error) {
	e := &Executor{baseURL: baseURL, limiter: limiter}
	if cacheSize > 0 {
		c, err := lru.New[string, *Response](cacheSize)
		if err != nil {
			return nil, errors.Annotate(err, "failed to create response cache")
		}
		e.cache = c
	}
	return e, nil
}

// URL of the synchronous query endpoint.
func (e *Executor) URL() string {
	return e.baseURL + SyncPath
}

// Execute sends the payload to the synchronous endpoint and returns the raw
// response. When useCache is true and caching is enabled, an identical earlier
// request is answered from the cache.
func (e *Executor) Execute(ctx context.Context, p Payload, useCache bool) (*Response, error) {
	query := p.Values()
	key := e.URL() + "?" + query.Encode()
	if useCache && e.cache != nil {
		if r, ok := e.cache.Get(key); ok {
			logging.Debugf(ctx, "TAP: cache hit for %s", p.Query)
			return r, nil
		}
	}
	if err := Wait(ctx, e.limiter); err != nil {
		return nil, errors.Annotate(err, "rate limiter")
	}
	logging.Debugf(ctx, "TAP: %s", p.Query)
	r, err := Get(ctx, e.URL(), query)
	if err != nil {
		return nil, err
	}
	if useCache && e.cache != nil {
		e.cache.Add(key, r)
	}
	return r, nil
}
