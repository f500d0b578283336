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

package tap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/esasky/table"

	"golang.org/x/text/encoding/htmlindex"
)

// TableParseError is returned when a response cannot be decoded as a VOTABLE
// table. It keeps the raw response for inspection.
type TableParseError struct {
	Response *Response
	Err      error
}

func (e *TableParseError) Error() string {
	return fmt.Sprintf("failed to parse VOTABLE result: %s", e.Err.Error())
}

func (e *TableParseError) Unwrap() error { return e.Err }

// The subset of the VOTABLE schema needed to extract tables. Unknown elements
// and attributes are ignored.
type voTable struct {
	XMLName   xml.Name     `xml:"VOTABLE"`
	Version   string       `xml:"version,attr,omitempty"`
	Resources []voResource `xml:"RESOURCE"`
}

type voResource struct {
	Type      string       `xml:"type,attr,omitempty"`
	Infos     []voInfo     `xml:"INFO"`
	Tables    []voTableElt `xml:"TABLE"`
	Resources []voResource `xml:"RESOURCE"`
}

type voInfo struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
	Text  string `xml:",chardata"`
}

type voTableElt struct {
	Name   string    `xml:"name,attr,omitempty"`
	Fields []voField `xml:"FIELD"`
	Data   *voData   `xml:"DATA"`
}

type voField struct {
	Name      string    `xml:"name,attr,omitempty"`
	ID        string    `xml:"ID,attr,omitempty"`
	Datatype  string    `xml:"datatype,attr,omitempty"`
	ArraySize string    `xml:"arraysize,attr,omitempty"`
	Unit      string    `xml:"unit,attr,omitempty"`
	Values    *voValues `xml:"VALUES"`
}

type voValues struct {
	Null string `xml:"null,attr,omitempty"`
}

type voData struct {
	TableData *voTableData `xml:"TABLEDATA"`
	Binary    *voStream    `xml:"BINARY"`
	Binary2   *voStream    `xml:"BINARY2"`
	FITS      *voStream    `xml:"FITS"`
}

type voStream struct {
	Stream voStreamContent `xml:"STREAM"`
}

type voStreamContent struct {
	Encoding string `xml:"encoding,attr,omitempty"`
	Href     string `xml:"href,attr,omitempty"`
	Text     string `xml:",chardata"`
}

type voTableData struct {
	Rows []voRow `xml:"TR"`
}

type voRow struct {
	Cells []string `xml:"TD"`
}

// firstTable searches resources depth-first for the first TABLE.
func firstTable(resources []voResource) *voTableElt {
	for i := range resources {
		if len(resources[i].Tables) > 0 {
			return &resources[i].Tables[0]
		}
		if t := firstTable(resources[i].Resources); t != nil {
			return t
		}
	}
	return nil
}

// errorInfo returns the text of the first QUERY_STATUS=ERROR INFO element, if
// any, which services use to report failed queries.
func errorInfo(resources []voResource) string {
	for _, r := range resources {
		for _, info := range r.Infos {
			if info.Name == "QUERY_STATUS" && info.Value == "ERROR" {
				return strings.TrimSpace(info.Text)
			}
		}
		if s := errorInfo(r.Resources); s != "" {
			return s
		}
	}
	return ""
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, errors.Annotate(err, "unsupported charset '%s'", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// decode converts the VOTABLE document into a table. Column names come from
// FIELD names, falling back to IDs for unnamed fields. Cells of all
// serializations are rendered as in TABLEDATA, with nulls as empty strings.
func decode(body []byte) (*table.Table, error) {
	d := xml.NewDecoder(bytes.NewReader(body))
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charsetReader

	var vt voTable
	if err := d.Decode(&vt); err != nil {
		return nil, errors.Annotate(err, "malformed VOTABLE document")
	}
	t := firstTable(vt.Resources)
	if t == nil {
		if msg := errorInfo(vt.Resources); msg != "" {
			return nil, errors.Reason("query failed: %s", msg)
		}
		return nil, errors.Reason("no TABLE in VOTABLE document")
	}
	columns := make([]table.Column, len(t.Fields))
	for i, f := range t.Fields {
		name := f.Name
		if name == "" {
			name = f.ID
		}
		columns[i] = table.Column{Name: name, Datatype: f.Datatype, Unit: f.Unit}
	}
	res := table.NewTable(columns...)
	if t.Data == nil {
		return res, nil
	}
	switch {
	case t.Data.TableData != nil:
	case t.Data.Binary != nil || t.Data.Binary2 != nil:
		rows, err := decodeBinary(t.Data, t.Fields)
		if err != nil {
			return nil, err
		}
		res.AddRow(rows...)
		return res, nil
	case t.Data.FITS != nil:
		return nil, errors.Reason("FITS serialization of DATA is not supported")
	default:
		return nil, errors.Reason("DATA has no TABLEDATA, BINARY or BINARY2")
	}
	for i, tr := range t.Data.TableData.Rows {
		if len(tr.Cells) != len(columns) {
			return nil, errors.Reason("row %d has %d cells, expected %d",
				i, len(tr.Cells), len(columns))
		}
		row := make(table.Row, len(tr.Cells))
		for j, c := range tr.Cells {
			row[j] = strings.TrimSpace(c)
		}
		res.AddRow(row)
	}
	return res, nil
}

// Parse decodes the response body as a VOTABLE document and returns its first
// table. Any failure is reported as *TableParseError.
func Parse(r *Response) (*table.Table, error) {
	if r == nil {
		return nil, &TableParseError{Err: errors.Reason("no response")}
	}
	t, err := decode(r.Body)
	if err != nil {
		return nil, &TableParseError{Response: r, Err: err}
	}
	return t, nil
}

// TestVOTable renders the table as a VOTABLE document, as returned by a TAP
// service. For use in tests.
func TestVOTable(t *table.Table) (string, error) {
	elt := voTableElt{Name: "results", Data: &voData{TableData: &voTableData{}}}
	for _, c := range t.Columns {
		elt.Fields = append(elt.Fields, voField{
			Name: c.Name, Datatype: c.Datatype, Unit: c.Unit})
	}
	for _, r := range t.Rows {
		elt.Data.TableData.Rows = append(elt.Data.TableData.Rows, voRow{Cells: r})
	}
	vt := voTable{
		Version:   "1.3",
		Resources: []voResource{{Type: "results", Tables: []voTableElt{elt}}},
	}
	b, err := xml.MarshalIndent(&vt, "", "  ")
	if err != nil {
		return "", errors.Annotate(err, "failed to marshal VOTABLE")
	}
	return xml.Header + string(b), nil
}
