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

// Package coords implements sky positions and angles as used by the ESASky
// client: ICRS coordinates, radii with units, and resolution of object names
// such as "M51" into coordinates.
//
// Positions are accepted in three forms:
//
//	"265.05, 69.0"               - decimal degrees, comma or space separated
//	"13h29m52.7s +47d11m43s"     - sexagesimal with unit letters
//	"13:29:52.7 +47:11:43"       - sexagesimal with colons (or spaces)
//
// Anything else is treated as an object name and requires a Resolver.
package coords

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
)

// Coordinates is an ICRS sky position in degrees.
type Coordinates struct {
	RA  float64 // right ascension, degrees in [0, 360)
	Dec float64 // declination, degrees in [-90, 90]
}

// NewCoordinates creates Coordinates from RA and Dec in degrees.
func NewCoordinates(ra, dec float64) (Coordinates, error) {
	if math.IsNaN(ra) || math.IsInf(ra, 0) || ra < 0 || ra >= 360 {
		return Coordinates{}, errors.Reason("RA=%g is out of range [0, 360)", ra)
	}
	if math.IsNaN(dec) || dec < -90 || dec > 90 {
		return Coordinates{}, errors.Reason("Dec=%g is out of range [-90, 90]", dec)
	}
	return Coordinates{RA: ra, Dec: dec}, nil
}

// RAHours returns the right ascension in hours.
func (c Coordinates) RAHours() float64 {
	return c.RA / 15.0
}

// String representation of the value.
func (c Coordinates) String() string {
	return fmt.Sprintf("(%f, %f)", c.RA, c.Dec)
}

// Resolver converts an object name into its coordinates.
type Resolver interface {
	Resolve(ctx context.Context, name string) (Coordinates, error)
}

// Parse converts a position string into Coordinates. Strings which are not
// recognized as numeric coordinates are resolved as object names using r. A
// nil r makes object names an error.
func Parse(ctx context.Context, position string, r Resolver) (Coordinates, error) {
	s := strings.TrimSpace(position)
	if s == "" {
		return Coordinates{}, errors.Reason("empty position")
	}
	// Names like "3C 273" look numeric at first, so fall back to the resolver
	// when one is available.
	if c, ok, err := parseNumeric(s); ok && (err == nil || r == nil) {
		return c, err
	}
	if r == nil {
		return Coordinates{}, errors.Reason(
			"'%s' is not a coordinate and no name resolver is configured", s)
	}
	c, err := r.Resolve(ctx, s)
	if err != nil {
		return Coordinates{}, errors.Annotate(err, "failed to resolve '%s'", s)
	}
	return c, nil
}

// parseNumeric attempts to parse s as decimal or sexagesimal coordinates. The
// second value is false when s does not look like coordinates at all, in which
// case it should be treated as a name.
func parseNumeric(s string) (Coordinates, bool, error) {
	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	if len(fields) == 0 || !looksNumeric(fields[0]) {
		return Coordinates{}, false, nil
	}
	switch len(fields) {
	case 2:
		if strings.ContainsAny(fields[0], "hms:") || strings.ContainsAny(fields[1], "dms:") {
			ra, err := parseSexagesimal(fields[0], "hms")
			if err != nil {
				return Coordinates{}, true, errors.Annotate(err, "invalid RA '%s'", fields[0])
			}
			dec, err := parseSexagesimal(fields[1], "dms")
			if err != nil {
				return Coordinates{}, true, errors.Annotate(err, "invalid Dec '%s'", fields[1])
			}
			c, err := NewCoordinates(ra*15.0, dec)
			return c, true, err
		}
		ra, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return Coordinates{}, true, errors.Annotate(err, "invalid RA '%s'", fields[0])
		}
		dec, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return Coordinates{}, true, errors.Annotate(err, "invalid Dec '%s'", fields[1])
		}
		c, err := NewCoordinates(ra, dec)
		return c, true, err
	case 6: // "hh mm ss dd mm ss"
		ra, err := parseSexagesimal(strings.Join(fields[0:3], ":"), "hms")
		if err != nil {
			return Coordinates{}, true, errors.Annotate(err, "invalid RA")
		}
		dec, err := parseSexagesimal(strings.Join(fields[3:6], ":"), "dms")
		if err != nil {
			return Coordinates{}, true, errors.Annotate(err, "invalid Dec")
		}
		c, err := NewCoordinates(ra*15.0, dec)
		return c, true, err
	}
	return Coordinates{}, true, errors.Reason(
		"expected 2 or 6 coordinate fields, got %d: '%s'", len(fields), s)
}

func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	if c == '+' || c == '-' || c == '.' {
		return len(s) > 1
	}
	return c >= '0' && c <= '9'
}

// parseSexagesimal parses "12h30m49.4s", "+12d23m28s" or "12:30:49.4" into a
// single value in the leading unit (hours or degrees). Units is the three
// letters used as separators, e.g. "hms" or "dms".
func parseSexagesimal(s, units string) (float64, error) {
	sign := 1.0
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1.0
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	s = strings.TrimSuffix(s, string(units[2]))
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ':' || strings.ContainsRune(units, r)
	})
	if len(parts) == 0 || len(parts) > 3 {
		return 0, errors.Reason("expected 1 to 3 components in '%s'", s)
	}
	var v float64
	scale := 1.0
	for i, p := range parts {
		x, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, errors.Annotate(err, "invalid component '%s'", p)
		}
		if x < 0 || (i > 0 && x >= 60) {
			return 0, errors.Reason("component '%s' is out of range", p)
		}
		v += x / scale
		scale *= 60
	}
	return sign * v, nil
}
