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
	"strings"

	"github.com/stockparfait/errors"
)

// AllMissions is the selector value standing for every mission in the
// registry.
const AllMissions = "all"

// Selector chooses the missions an operation applies to: either all the
// missions of the registry, or an explicit list of names.
type Selector struct {
	all   bool
	names []string
}

// All selects every mission in the registry.
func All() Selector { return Selector{all: true} }

// Missions selects the listed missions. Names are taken literally: "all" in a
// list is a mission name, not the wildcard.
func Missions(names ...string) Selector {
	return Selector{names: names}
}

// ParseSelector interprets a command line value: a single "all"
// (case-insensitive) selects all missions, otherwise the value is a comma
// separated list of names.
func ParseSelector(s string) Selector {
	if strings.EqualFold(strings.TrimSpace(s), AllMissions) {
		return All()
	}
	var names []string
	for _, n := range strings.Split(s, ",") {
		names = append(names, strings.TrimSpace(n))
	}
	return Missions(names...)
}

// IsAll is true for the wildcard selector.
func (s Selector) IsAll() bool { return s.all }

// Names of the explicitly selected missions; nil for the wildcard.
func (s Selector) Names() []string { return s.names }

func (s Selector) String() string {
	if s.all {
		return AllMissions
	}
	return strings.Join(s.names, ",")
}

func (s Selector) validate() error {
	if s.all {
		return nil
	}
	if len(s.names) == 0 {
		return &InputValidationError{
			Arg: "missions", Err: errors.Reason("no missions selected")}
	}
	for _, n := range s.names {
		if n == "" {
			return &InputValidationError{
				Arg: "missions", Err: errors.Reason("empty mission name")}
		}
	}
	return nil
}

// resolve expands the selector against the registry content.
func (s Selector) resolve(ds Descriptors) []string {
	if s.all {
		return ds.Names()
	}
	return s.names
}

// contains checks case-insensitively whether the mission is among names.
func contains(names []string, mission string) bool {
	for _, n := range names {
		if strings.EqualFold(n, mission) {
			return true
		}
	}
	return false
}
