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
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/esasky/coords"
	"github.com/stockparfait/esasky/table"
	"github.com/stockparfait/esasky/tap"
	"github.com/stockparfait/logging"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ObjectRadius is the search radius of the object queries.
const ObjectRadius = "0 arcmin"

// QueryResult maps upper-cased mission names to their result tables. Missions
// with no results are not included.
type QueryResult map[string]*table.Table

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// Missions in the result, sorted.
func (r QueryResult) Missions() []string { return sortedKeys(r) }

// PayloadResult maps upper-cased mission names to the TAP request payloads
// which would have been sent.
type PayloadResult map[string]tap.Payload

// Missions in the result, sorted.
func (r PayloadResult) Missions() []string { return sortedKeys(r) }

// ListNames lists the mission names of the given kind in the registry order.
func (c *Client) ListNames(ctx context.Context, kind Kind) ([]string, error) {
	ds, err := c.registry.Fetch(c.use(ctx), kind)
	if err != nil {
		return nil, err
	}
	return ds.Names(), nil
}

// ListMaps lists the missions with maps (observations).
func (c *Client) ListMaps(ctx context.Context) ([]string, error) {
	return c.ListNames(ctx, Observations)
}

// ListCatalogs lists the available catalogs.
func (c *Client) ListCatalogs(ctx context.Context) ([]string, error) {
	return c.ListNames(ctx, Catalogs)
}

func validateKind(kind Kind) error {
	if !kind.valid() {
		return &InputValidationError{
			Arg: "kind", Err: errors.Reason("unsupported kind '%s'", kind)}
	}
	return nil
}

// parseInputs validates all the arguments before resolving the position,
// which may require a network request.
func (c *Client) parseInputs(ctx context.Context, kind Kind, position, radius string, sel Selector) (coords.Coordinates, coords.Angle, error) {
	if err := validateKind(kind); err != nil {
		return coords.Coordinates{}, 0, err
	}
	if err := sel.validate(); err != nil {
		return coords.Coordinates{}, 0, err
	}
	r, err := coords.ParseAngle(radius)
	if err != nil {
		return coords.Coordinates{}, 0, &InputValidationError{Arg: "radius", Err: err}
	}
	if strings.TrimSpace(position) == "" {
		return coords.Coordinates{}, 0, &InputValidationError{
			Arg: "position", Err: errors.Reason("empty position")}
	}
	pos, err := coords.Parse(c.use(ctx), position, c.config.Resolver)
	if err != nil {
		return coords.Coordinates{}, 0, &InputValidationError{Arg: "position", Err: err}
	}
	return pos, r, nil
}

// QueryRegion queries the missions of the given kind selected by sel for the
// cone of the given radius around the position.
func (c *Client) QueryRegion(ctx context.Context, kind Kind, position, radius string, sel Selector) (QueryResult, error) {
	pos, r, err := c.parseInputs(ctx, kind, position, radius, sel)
	if err != nil {
		return nil, err
	}
	return c.QueryAt(ctx, kind, pos, r, sel)
}

// QueryRegionPayload is like QueryRegion, but only builds the request
// payloads without sending them.
func (c *Client) QueryRegionPayload(ctx context.Context, kind Kind, position, radius string, sel Selector) (PayloadResult, error) {
	pos, r, err := c.parseInputs(ctx, kind, position, radius, sel)
	if err != nil {
		return nil, err
	}
	return c.PayloadAt(ctx, kind, pos, r, sel)
}

// QueryRegionMaps queries the maps (observations) in the cone.
func (c *Client) QueryRegionMaps(ctx context.Context, position, radius string, sel Selector) (QueryResult, error) {
	return c.QueryRegion(ctx, Observations, position, radius, sel)
}

// QueryRegionCatalogs queries the catalog sources in the cone.
func (c *Client) QueryRegionCatalogs(ctx context.Context, position, radius string, sel Selector) (QueryResult, error) {
	return c.QueryRegion(ctx, Catalogs, position, radius, sel)
}

// QueryObjectMaps queries the maps (observations) containing the position.
func (c *Client) QueryObjectMaps(ctx context.Context, position string, sel Selector) (QueryResult, error) {
	return c.QueryRegion(ctx, Observations, position, ObjectRadius, sel)
}

// QueryObjectCatalogs queries the catalog sources at the position.
func (c *Client) QueryObjectCatalogs(ctx context.Context, position string, sel Selector) (QueryResult, error) {
	return c.QueryRegion(ctx, Catalogs, position, ObjectRadius, sel)
}

// payloads returns the upper-cased names of the selected missions and their
// request payloads, in the selection order.
func (c *Client) payloads(ctx context.Context, kind Kind, pos coords.Coordinates, radius coords.Angle, sel Selector) ([]string, []tap.Payload, error) {
	if err := validateKind(kind); err != nil {
		return nil, nil, err
	}
	if err := sel.validate(); err != nil {
		return nil, nil, err
	}
	if radius < 0 {
		return nil, nil, &InputValidationError{
			Arg: "radius", Err: errors.Reason("negative radius %s", radius)}
	}
	ds, err := c.registry.Fetch(ctx, kind)
	if err != nil {
		return nil, nil, err
	}
	var names []string
	var payloads []tap.Payload
	for _, m := range sel.resolve(ds) {
		d, err := ds.Find(kind, m)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, strings.ToUpper(m))
		payloads = append(payloads, tap.NewPayload(d.Query(pos, radius)))
	}
	return names, payloads, nil
}

// QueryAt queries the selected missions for the cone around pos.
func (c *Client) QueryAt(ctx context.Context, kind Kind, pos coords.Coordinates, radius coords.Angle, sel Selector) (QueryResult, error) {
	ctx = c.use(ctx)
	names, payloads, err := c.payloads(ctx, kind, pos, radius, sel)
	if err != nil {
		return nil, err
	}
	res := make(QueryResult)
	for i, p := range payloads {
		logging.Infof(ctx, "querying %s for %s", names[i], kind)
		resp, err := c.executor.Execute(ctx, p, true)
		if err != nil {
			return nil, err
		}
		t, err := tap.Parse(resp)
		if err != nil {
			return nil, err
		}
		if t.Len() == 0 {
			logging.Debugf(ctx, "no results for %s", names[i])
			continue
		}
		res[names[i]] = t
	}
	return res, nil
}

// PayloadAt builds the request payloads for the selected missions without
// sending them.
func (c *Client) PayloadAt(ctx context.Context, kind Kind, pos coords.Coordinates, radius coords.Angle, sel Selector) (PayloadResult, error) {
	names, payloads, err := c.payloads(c.use(ctx), kind, pos, radius, sel)
	if err != nil {
		return nil, err
	}
	res := make(PayloadResult)
	for i, p := range payloads {
		res[names[i]] = p
	}
	return res, nil
}
