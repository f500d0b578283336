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

package esasky

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/esasky/coords"
	"github.com/stockparfait/esasky/tap"
	"github.com/stockparfait/fetch"

	"golang.org/x/time/rate"
)

const (
	// DefaultURL of the ESASky TAP service.
	DefaultURL = "https://sky.esa.int/esasky-tap"
	// DefaultTimeout of a single HTTP request.
	DefaultTimeout = 1000 * time.Second
	// DefaultDownloadFolder is the folder for downloaded maps.
	DefaultDownloadFolder = "Maps"
)

// Config of the Client. Zero fields are replaced by the defaults, except
// ExcludedMissions where only nil means the default, and RateLimit and
// CacheSize where zero disables the feature.
type Config struct {
	URL              string
	Timeout          time.Duration
	RateLimit        float64 // requests per second
	CacheSize        int     // number of cached TAP responses
	DownloadFolder   string
	ScratchDir       string   // for temporary archives; os.TempDir() when empty
	ExcludedMissions []string // never downloaded
	// HTTPClient overrides Timeout when set.
	HTTPClient *http.Client
	Resolver   coords.Resolver
	Opener     Opener
}

// DefaultConfig of the Client.
func DefaultConfig() Config {
	return Config{
		URL:              DefaultURL,
		Timeout:          DefaultTimeout,
		DownloadFolder:   DefaultDownloadFolder,
		ExcludedMissions: []string{"INTEGRAL"},
		Resolver:         coords.NewSesame(""),
		Opener:           &FITSOpener{},
	}
}

func (c *Config) setDefaults() {
	d := DefaultConfig()
	c.URL = strings.TrimRight(c.URL, "/")
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.DownloadFolder == "" {
		c.DownloadFolder = d.DownloadFolder
	}
	if c.ExcludedMissions == nil {
		c.ExcludedMissions = d.ExcludedMissions
	}
	if c.Resolver == nil {
		c.Resolver = d.Resolver
	}
	if c.Opener == nil {
		c.Opener = d.Opener
	}
}

// Client of the ESASky service. It holds no mutable state beyond the
// optional response cache and rate limiter.
type Client struct {
	config   Config
	client   *http.Client
	limiter  *rate.Limiter
	registry *Registry
	executor *tap.Executor
}

// NewClient creates a Client with the given configuration.
func NewClient(config Config) (*Client, error) {
	config.setDefaults()
	if config.Timeout < 0 {
		return nil, errors.Reason("timeout must be non-negative: %s", config.Timeout)
	}
	if config.RateLimit < 0 {
		return nil, errors.Reason("rate limit must be non-negative: %g", config.RateLimit)
	}
	c := &Client{config: config, client: config.HTTPClient}
	if c.client == nil {
		c.client = &http.Client{Timeout: config.Timeout}
	}
	if config.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}
	c.registry = NewRegistry(config.URL, c.limiter)
	var err error
	c.executor, err = tap.NewExecutor(config.URL, c.limiter, config.CacheSize)
	if err != nil {
		return nil, errors.Annotate(err, "failed to create TAP executor")
	}
	return c, nil
}

// Config of the client with the defaults filled in.
func (c *Client) Config() Config { return c.config }

// use injects the client's HTTP client into the context.
func (c *Client) use(ctx context.Context) context.Context {
	return fetch.UseClient(ctx, c.client)
}

func (c *Client) excluded(mission string) bool {
	return contains(c.config.ExcludedMissions, mission)
}
