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

package coords

import (
	"bufio"
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
)

// SesameURL is the default CDS Sesame name resolver endpoint.
const SesameURL = "https://cds.unistra.fr/cgi-bin/nph-sesame"

// Sesame resolves object names using the CDS Sesame service. The HTTP client
// is taken from the context, see fetch.UseClient.
type Sesame struct {
	URL string // base URL of the service; default: SesameURL
}

var _ Resolver = &Sesame{}

// NewSesame creates a resolver for the given base URL.
func NewSesame(baseURL string) *Sesame {
	if baseURL == "" {
		baseURL = SesameURL
	}
	return &Sesame{URL: baseURL}
}

// Resolve implements Resolver. It requests the plain text output of all the
// Sesame databases and returns the first "%J" (J2000 decimal degrees) entry.
func (s *Sesame) Resolve(ctx context.Context, name string) (Coordinates, error) {
	uri := s.URL + "/-oI/A?" + url.PathEscape(name)
	resp, err := fetch.GetRetry(ctx, uri, nil, nil)
	if err != nil {
		return Coordinates{}, errors.Annotate(err, "failed to query Sesame for '%s'", name)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "%J ") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "%J "))
		if len(fields) < 2 {
			return Coordinates{}, errors.Reason("malformed Sesame line: '%s'", line)
		}
		ra, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return Coordinates{}, errors.Annotate(err, "invalid RA in '%s'", line)
		}
		dec, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return Coordinates{}, errors.Annotate(err, "invalid Dec in '%s'", line)
		}
		logging.Debugf(ctx, "Sesame: resolved '%s' to %f %f", name, ra, dec)
		return NewCoordinates(ra, dec)
	}
	if err := scanner.Err(); err != nil {
		return Coordinates{}, errors.Annotate(err, "failed to read Sesame response")
	}
	return Coordinates{}, errors.Reason("Sesame could not resolve '%s'", name)
}
