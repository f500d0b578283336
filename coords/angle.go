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
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
)

// Angle is an angular size, such as a search radius, stored in degrees.
type Angle float64

// Common angle units.
const (
	Degree    Angle = 1.0
	Arcminute Angle = Degree / 60.0
	Arcsecond Angle = Arcminute / 60.0
	Radian    Angle = 180.0 / math.Pi
)

// unitNames maps recognized unit spellings to their values. Longer spellings
// must be checked before their prefixes, see unitSuffixes.
var unitNames = map[string]Angle{
	"deg":     Degree,
	"degree":  Degree,
	"degrees": Degree,
	"d":       Degree,
	"°":       Degree,
	"arcmin":  Arcminute,
	"amin":    Arcminute,
	"'":       Arcminute,
	"arcsec":  Arcsecond,
	"asec":    Arcsecond,
	"\"":      Arcsecond,
	"rad":     Radian,
}

// unitSuffixes is the order in which unit names are matched against the end of
// the string.
var unitSuffixes = []string{
	"degrees", "degree", "arcmin", "arcsec", "amin", "asec", "deg", "rad",
	"°", "'", "\"", "d",
}

// Degrees returns the value of the angle in degrees.
func (a Angle) Degrees() float64 { return float64(a) }

// Arcminutes returns the value of the angle in arcminutes.
func (a Angle) Arcminutes() float64 { return float64(a / Arcminute) }

// String representation of the value.
func (a Angle) String() string {
	return fmt.Sprintf("%g deg", a.Degrees())
}

// ParseAngle parses a number with a unit, e.g. "14'", "14 arcmin", "0.5 deg",
// "30\"" or "0 arcmin". The unit is required, and the value must not be
// negative.
func ParseAngle(s string) (Angle, error) {
	str := strings.TrimSpace(s)
	if str == "" {
		return 0, errors.Reason("empty angle")
	}
	var unit Angle
	var number string
	for _, u := range unitSuffixes {
		if strings.HasSuffix(str, u) {
			unit = unitNames[u]
			number = strings.TrimSpace(strings.TrimSuffix(str, u))
			break
		}
	}
	if unit == 0 {
		return 0, errors.Reason("missing or unknown unit in angle '%s'", s)
	}
	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, errors.Annotate(err, "invalid number in angle '%s'", s)
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Reason("angle must be a finite non-negative value: '%s'", s)
	}
	return Angle(v) * unit, nil
}
