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
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/esasky/table"
	"github.com/stockparfait/esasky/tap"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
)

// Columns of a map table used for downloads.
const (
	ObservationIDColumn = "observation_id"
	ProductURLColumn    = "product_url"
	FilterColumn        = "filter"
)

// Observation is the downloaded data of a single observation. Exactly one of
// Product and Filters is set.
type Observation struct {
	ID      string
	Product Product
	Filters map[string]Product // by filter name, for multi-filter missions
}

// Products of the observation. Filters are sorted by name.
func (o *Observation) Products() []Product {
	if o.Product != nil {
		return []Product{o.Product}
	}
	var res []Product
	for _, f := range sortedKeys(o.Filters) {
		res = append(res, o.Filters[f])
	}
	return res
}

// Close all the products of the observation. The first error is returned.
func (o *Observation) Close() error {
	var res error
	for _, p := range o.Products() {
		if err := p.Close(); err != nil && res == nil {
			res = err
		}
	}
	return res
}

// DownloadResult maps mission names to observation IDs to the downloaded
// observations.
type DownloadResult map[string]map[string]*Observation

// Missions in the result, sorted.
func (r DownloadResult) Missions() []string {
	return sortedKeys(r)
}

// Close all the products in the result. The first error is returned.
func (r DownloadResult) Close() error {
	var res error
	for _, obs := range r {
		for _, o := range obs {
			if err := o.Close(); err != nil && res == nil {
				res = err
			}
		}
	}
	return res
}

// GetMaps downloads the products of the missions in result which are selected
// by sel into the folder, one subfolder per mission. An empty folder means the
// configured default.
func (c *Client) GetMaps(ctx context.Context, result QueryResult, sel Selector, folder string) (DownloadResult, error) {
	if result == nil {
		return nil, &InputValidationError{
			Arg: "result", Err: errors.Reason("no query result to download")}
	}
	if err := sel.validate(); err != nil {
		return nil, err
	}
	ctx = c.use(ctx)
	names := sel.Names()
	if sel.IsAll() {
		ds, err := c.registry.Fetch(ctx, Observations)
		if err != nil {
			return nil, err
		}
		names = ds.Names()
	}
	return c.download(ctx, result, names, folder)
}

// GetImages queries the maps in the cone around the position and downloads
// all of them.
func (c *Client) GetImages(ctx context.Context, position, radius string, sel Selector, folder string) (DownloadResult, error) {
	result, err := c.QueryRegion(ctx, Observations, position, radius, sel)
	if err != nil {
		return nil, err
	}
	return c.download(c.use(ctx), result, result.Missions(), folder)
}

// download the missions of result listed in names.
func (c *Client) download(ctx context.Context, result QueryResult, names []string, folder string) (DownloadResult, error) {
	if folder == "" {
		folder = c.config.DownloadFolder
	}
	res := make(DownloadResult)
	for _, mission := range result.Missions() {
		if !contains(names, mission) {
			continue
		}
		if c.excluded(mission) {
			logging.Infof(ctx, "%s is not supported for download, skipping", mission)
			continue
		}
		obs, err := c.downloadMission(ctx, mission, result[mission], folder)
		if err != nil {
			logging.Errorf(ctx, "failed to download %s data", mission)
			res.Close()
			return nil, err
		}
		res[mission] = obs
	}
	if len(result) > 0 {
		if abs, err := filepath.Abs(folder); err == nil {
			folder = abs
		}
		logging.Infof(ctx, "maps available at %s", folder)
	} else {
		logging.Infof(ctx, "no maps found")
	}
	return res, nil
}

func isHerschel(mission string) bool {
	return strings.EqualFold(mission, "HERSCHEL")
}

func (c *Client) downloadMission(ctx context.Context, mission string, t *table.Table, folder string) (map[string]*Observation, error) {
	res := make(map[string]*Observation)
	if t.Len() == 0 || !t.HasColumn(ProductURLColumn) {
		logging.Warningf(ctx, "%s has no product URLs, skipping", mission)
		return res, nil
	}
	urls, err := t.Column(ProductURLColumn)
	if err != nil {
		return nil, errors.Annotate(err, "missing product URLs")
	}
	ids, err := t.Column(ObservationIDColumn)
	if err != nil {
		return nil, errors.Annotate(err, "missing observation IDs")
	}
	var filters []string
	if isHerschel(mission) {
		if filters, err = t.Column(FilterColumn); err != nil {
			return nil, errors.Annotate(err, "missing filters")
		}
	}
	dir := filepath.Join(folder, mission)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Annotate(err, "failed to create '%s'", dir)
	}
	logging.Infof(ctx, "starting download of %s data (%d files)", mission, len(urls))
	closeAll := func() {
		for _, o := range res {
			o.Close()
		}
	}
	for i, uri := range urls {
		logging.Infof(ctx, "downloading observation ID %s from %s", ids[i], uri)
		o := &Observation{ID: ids[i]}
		if isHerschel(mission) {
			o.Filters, err = c.getFilterArchive(ctx, uri, dir, splitFilters(filters[i]))
		} else {
			o.Product, err = c.getProduct(ctx, uri, dir)
		}
		if err != nil {
			closeAll()
			return nil, err
		}
		if prev, ok := res[o.ID]; ok {
			prev.Close()
		}
		res[o.ID] = o
		logging.Infof(ctx, "observation ID %s downloaded", ids[i])
	}
	logging.Infof(ctx, "download of %s data complete", mission)
	return res, nil
}

func splitFilters(s string) []string {
	var res []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			res = append(res, f)
		}
	}
	return res
}

// fetchProduct starts the download of the URL. The caller must close the
// response body.
func (c *Client) fetchProduct(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	if err := tap.Wait(ctx, c.limiter); err != nil {
		return nil, "", errors.Annotate(err, "rate limiter")
	}
	resp, err := fetch.GetRetry(ctx, uri, nil, nil)
	if err != nil {
		return nil, "", &tap.RemoteFetchError{URL: uri, Err: err}
	}
	if resp.StatusCode != 200 {
		resp.Body.Close()
		return nil, "", &tap.RemoteFetchError{
			URL: uri, Err: errors.Reason("HTTP status %s", resp.Status)}
	}
	return resp.Body, resp.Header.Get("Content-Disposition"), nil
}

// writeFile copies r into a new file at path.
func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Annotate(err, "failed to create '%s'", path)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errors.Annotate(err, "failed to write '%s'", path)
	}
	if err := f.Close(); err != nil {
		return errors.Annotate(err, "failed to close '%s'", path)
	}
	return nil
}

// getProduct downloads a single file product into dir and opens it.
func (c *Client) getProduct(ctx context.Context, uri, dir string) (Product, error) {
	body, disposition, err := c.fetchProduct(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var name string
	if HasFITSExtension(uri) {
		name = FileNameFromURL(uri)
	} else if name, err = FileNameFromContentDisposition(disposition); err != nil {
		return nil, err
	}
	name = filepath.Base(name)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return nil, errors.Reason("invalid file name for %s", uri)
	}
	path := filepath.Join(dir, name)
	if err := writeFile(path, body); err != nil {
		return nil, err
	}
	return c.config.Opener.Open(path)
}
