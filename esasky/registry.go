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
	"encoding/json"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/esasky/coords"
	"github.com/stockparfait/esasky/tap"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/iterator"

	"golang.org/x/time/rate"
)

// Kind of the registry document.
type Kind string

// Values of Kind. The value is both the endpoint path and the top level key of
// the JSON document.
const (
	Observations = Kind("observations")
	Catalogs     = Kind("catalogs")
)

func (k Kind) valid() bool {
	return k == Observations || k == Catalogs
}

// MetadataColumn is a column of a mission's TAP table.
type MetadataColumn struct {
	Label   string `json:"label"`
	TapName string `json:"tapName"`
}

// Descriptor of a mission or a catalog. It is implemented by
// *ObservationDescriptor and *CatalogDescriptor.
type Descriptor interface {
	Kind() Kind
	Mission() string  // display name
	TapTable() string // unique within its Kind
	Columns() []MetadataColumn
	// PositionColumn is the column used in the spatial predicate.
	PositionColumn() string
	// Query builds the ADQL query for the cone around c.
	Query(c coords.Coordinates, radius coords.Angle) string
}

// ObservationDescriptor describes a mission with maps (observations).
type ObservationDescriptor struct {
	MissionName string
	Table       string
	IsSurvey    bool
	Metadata    []MetadataColumn
}

var _ Descriptor = &ObservationDescriptor{}

func (d *ObservationDescriptor) Kind() Kind                { return Observations }
func (d *ObservationDescriptor) Mission() string           { return d.MissionName }
func (d *ObservationDescriptor) TapTable() string          { return d.Table }
func (d *ObservationDescriptor) Columns() []MetadataColumn { return d.Metadata }

// PositionColumn is "pos" for survey missions, and "fov" (field of view)
// otherwise.
func (d *ObservationDescriptor) PositionColumn() string {
	if d.IsSurvey {
		return "pos"
	}
	return "fov"
}

func (d *ObservationDescriptor) Query(c coords.Coordinates, radius coords.Angle) string {
	return BuildObservationQuery(c, radius, d)
}

// CatalogDescriptor describes a source catalog.
type CatalogDescriptor struct {
	MissionName       string
	Table             string
	SourceLimit       int
	OrderBy           string
	PosColumn         string
	PolygonNameColumn string
	PolygonRAColumn   string
	PolygonDecColumn  string
	Metadata          []MetadataColumn
}

var _ Descriptor = &CatalogDescriptor{}

func (d *CatalogDescriptor) Kind() Kind                { return Catalogs }
func (d *CatalogDescriptor) Mission() string           { return d.MissionName }
func (d *CatalogDescriptor) TapTable() string          { return d.Table }
func (d *CatalogDescriptor) Columns() []MetadataColumn { return d.Metadata }
func (d *CatalogDescriptor) PositionColumn() string    { return d.PosColumn }

func (d *CatalogDescriptor) Query(c coords.Coordinates, radius coords.Angle) string {
	return BuildCatalogQuery(c, radius, d)
}

// descriptorJSON is the union of the observation and catalog entries of the
// registry documents.
type descriptorJSON struct {
	Mission              string           `json:"mission"`
	TapTable             string           `json:"tapTable"`
	IsSurveyMission      bool             `json:"isSurveyMission"`
	SourceLimit          int              `json:"sourceLimit"`
	OrderBy              string           `json:"orderBy"`
	PosTapColumn         string           `json:"posTapColumn"`
	PolygonNameTapColumn string           `json:"polygonNameTapColumn"`
	PolygonRaTapColumn   string           `json:"polygonRaTapColumn"`
	PolygonDecTapColumn  string           `json:"polygonDecTapColumn"`
	Metadata             []MetadataColumn `json:"metadata"`
}

func (j *descriptorJSON) descriptor(kind Kind) (Descriptor, error) {
	if j.Mission == "" {
		return nil, errors.Reason("missing mission name")
	}
	if j.TapTable == "" {
		return nil, errors.Reason("missing tapTable for %s", j.Mission)
	}
	if kind == Observations {
		return &ObservationDescriptor{
			MissionName: j.Mission,
			Table:       j.TapTable,
			IsSurvey:    j.IsSurveyMission,
			Metadata:    j.Metadata,
		}, nil
	}
	if j.PosTapColumn == "" || j.OrderBy == "" {
		return nil, errors.Reason("catalog %s must have posTapColumn and orderBy",
			j.Mission)
	}
	if j.SourceLimit <= 0 {
		return nil, errors.Reason("catalog %s must have a positive sourceLimit, got %d",
			j.Mission, j.SourceLimit)
	}
	return &CatalogDescriptor{
		MissionName:       j.Mission,
		Table:             j.TapTable,
		SourceLimit:       j.SourceLimit,
		OrderBy:           j.OrderBy,
		PosColumn:         j.PosTapColumn,
		PolygonNameColumn: j.PolygonNameTapColumn,
		PolygonRAColumn:   j.PolygonRaTapColumn,
		PolygonDecColumn:  j.PolygonDecTapColumn,
		Metadata:          j.Metadata,
	}, nil
}

// Descriptors is the ordered content of a registry document.
type Descriptors []Descriptor

// Names of the missions in the registry order.
func (ds Descriptors) Names() []string {
	return iterator.Reduce[Descriptor, []string](
		iterator.FromSlice([]Descriptor(ds)), []string{},
		func(d Descriptor, names []string) []string {
			return append(names, d.Mission())
		})
}

// Resolve finds the TAP table name of the mission by its case-insensitive
// display name.
func (ds Descriptors) Resolve(kind Kind, mission string) (string, error) {
	for _, d := range ds {
		if strings.EqualFold(d.Mission(), mission) {
			return d.TapTable(), nil
		}
	}
	return "", &UnknownMissionError{Kind: kind, Name: mission}
}

// Lookup finds the descriptor by its exact TAP table name.
func (ds Descriptors) Lookup(kind Kind, tapTable string) (Descriptor, error) {
	for _, d := range ds {
		if d.TapTable() == tapTable {
			return d, nil
		}
	}
	return nil, &UnknownMissionError{Kind: kind, Name: tapTable}
}

// Find resolves the mission name and looks up its descriptor.
func (ds Descriptors) Find(kind Kind, mission string) (Descriptor, error) {
	tapTable, err := ds.Resolve(kind, mission)
	if err != nil {
		return nil, err
	}
	return ds.Lookup(kind, tapTable)
}

// Registry fetches the mission metadata documents. It does not cache them:
// every Fetch requests the document anew.
type Registry struct {
	baseURL string
	limiter *rate.Limiter
}

// NewRegistry creates a Registry for the service at baseURL. The limiter may
// be nil.
func NewRegistry(baseURL string, limiter *rate.Limiter) *Registry {
	return &Registry{baseURL: baseURL, limiter: limiter}
}

// URL of the registry document of the given kind.
func (r *Registry) URL(kind Kind) string {
	return r.baseURL + "/" + string(kind)
}

// Fetch downloads and parses the registry document of the given kind. The HTTP
// client is taken from the context.
func (r *Registry) Fetch(ctx context.Context, kind Kind) (Descriptors, error) {
	if !kind.valid() {
		return nil, &InputValidationError{
			Arg: "kind", Err: errors.Reason("unsupported kind '%s'", kind)}
	}
	uri := r.URL(kind)
	if err := tap.Wait(ctx, r.limiter); err != nil {
		return nil, errors.Annotate(err, "rate limiter")
	}
	var doc map[string]json.RawMessage
	if err := fetch.FetchJSON(ctx, uri, &doc, nil, nil); err != nil {
		return nil, &tap.RemoteFetchError{URL: uri, Err: err}
	}
	raw, ok := doc[string(kind)]
	if !ok {
		return nil, &tap.RemoteFetchError{
			URL: uri, Err: errors.Reason("no '%s' key in the document", kind)}
	}
	var entries []descriptorJSON
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &tap.RemoteFetchError{
			URL: uri, Err: errors.Annotate(err, "malformed '%s' list", kind)}
	}
	res := make(Descriptors, 0, len(entries))
	seen := make(map[string]struct{})
	for i := range entries {
		d, err := entries[i].descriptor(kind)
		if err != nil {
			return nil, &tap.RemoteFetchError{
				URL: uri, Err: errors.Annotate(err, "invalid entry %d", i)}
		}
		if _, ok := seen[d.TapTable()]; ok {
			return nil, &tap.RemoteFetchError{
				URL: uri, Err: errors.Reason("duplicate tapTable %s", d.TapTable())}
		}
		seen[d.TapTable()] = struct{}{}
		res = append(res, d)
	}
	return res, nil
}
