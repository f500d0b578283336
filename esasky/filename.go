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

import "strings"

// Extensions of product URLs which name the FITS file directly.
var fitsURLExtensions = []string{".fits", ".fit", ".fits.gz", ".ftz"}

// Suffixes recognized in the Content-Disposition file name, in the order of
// preference.
var headerSuffixes = []string{".fits", ".FTZ", ".tar"}

// HasFITSExtension checks whether the product URL ends in a FITS file name.
func HasFITSExtension(uri string) bool {
	lower := strings.ToLower(uri)
	for _, ext := range fitsURLExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// FileNameFromURL is the last path segment of the URL.
func FileNameFromURL(uri string) string {
	return uri[strings.LastIndex(uri, "/")+1:]
}

// FileNameFromContentDisposition extracts the file name following
// "filename=" in the header value. An optional opening quote is skipped, and
// the name ends with the first known suffix found after its first character.
func FileNameFromContentDisposition(header string) (string, error) {
	const key = "filename="
	i := strings.Index(header, key)
	if i < 0 {
		return "", &HeaderParseError{Header: header}
	}
	start := i + len(key)
	if start < len(header) && header[start] == '"' {
		start++
	}
	if start+1 >= len(header) {
		return "", &HeaderParseError{Header: header}
	}
	for _, suffix := range headerSuffixes {
		j := strings.Index(header[start+1:], suffix)
		if j < 0 {
			continue
		}
		return header[start : start+1+j+len(suffix)], nil
	}
	return "", &HeaderParseError{Header: header}
}
