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
	"fmt"
	"strings"

	"github.com/stockparfait/esasky/coords"
)

// circle is the ADQL region of the cone around c. RA is expressed as hours
// multiplied by 15 to obtain degrees.
func circle(c coords.Coordinates, radius coords.Angle) string {
	return fmt.Sprintf("CIRCLE('ICRS', %f, %f, %f)",
		c.RAHours()*15.0, c.Dec, radius.Degrees())
}

func columnList(cols []MetadataColumn) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.TapName
	}
	return strings.Join(names, ", ")
}

// BuildObservationQuery creates the ADQL query for the observations of the
// mission which intersect the cone around c.
func BuildObservationQuery(c coords.Coordinates, radius coords.Angle, d *ObservationDescriptor) string {
	return fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE 1=CONTAINS(%s, %s);",
		columnList(d.Metadata), d.Table, d.PositionColumn(), circle(c, radius))
}

// BuildCatalogQuery creates the ADQL query for at most d.SourceLimit catalog
// sources in the cone around c, in the catalog's order.
func BuildCatalogQuery(c coords.Coordinates, radius coords.Angle, d *CatalogDescriptor) string {
	return fmt.Sprintf(
		"SELECT TOP %d %s FROM %s WHERE 1=CONTAINS(%s, %s) ORDER BY %s;",
		d.SourceLimit, columnList(d.Metadata), d.Table, d.PosColumn,
		circle(c, radius), d.OrderBy)
}
