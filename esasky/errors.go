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
)

// InputValidationError is returned by the public methods for arguments of the
// wrong shape, before any network request is made.
type InputValidationError struct {
	Arg string // name of the offending argument
	Err error
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Arg, e.Err.Error())
}

func (e *InputValidationError) Unwrap() error { return e.Err }

// UnknownMissionError is returned when a mission name or a TAP table is not in
// the registry.
type UnknownMissionError struct {
	Kind Kind
	Name string
}

func (e *UnknownMissionError) Error() string {
	return fmt.Sprintf("%s '%s' is not available", e.Kind, e.Name)
}

// HeaderParseError is returned when a file name cannot be extracted from the
// Content-Disposition header of a product download.
type HeaderParseError struct {
	Header string
}

func (e *HeaderParseError) Error() string {
	return fmt.Sprintf("could not find file name in header; Content-Disposition: '%s'",
		e.Header)
}

// FilterMismatchError is returned when the number of files in a multi-filter
// archive differs from the number of filters listed for the observation.
type FilterMismatchError struct {
	Filters []string
	Members []string
}

func (e *FilterMismatchError) Error() string {
	return fmt.Sprintf("%d filters [%s] for %d archive files [%s]",
		len(e.Filters), strings.Join(e.Filters, ", "),
		len(e.Members), strings.Join(e.Members, ", "))
}
