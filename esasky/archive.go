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
	"archive/tar"
	"bufio"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// Instruments whose files are extracted from multi-filter archives.
var archiveInstruments = []string{"hspire", "hpacs"}

func isInstrumentMember(name string) bool {
	lower := strings.ToLower(name)
	for _, inst := range archiveInstruments {
		if strings.Contains(lower, inst) {
			return true
		}
	}
	return false
}

// stripTopDirectory removes the first path element of the archive member
// name. Absolute names and names escaping the destination are rejected.
func stripTopDirectory(name string) (string, error) {
	if path.IsAbs(name) || filepath.IsAbs(name) {
		return "", errors.Reason("absolute archive member '%s'", name)
	}
	for _, el := range strings.Split(name, "/") {
		if el == ".." {
			return "", errors.Reason("archive member '%s' escapes destination", name)
		}
	}
	if i := strings.Index(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "", errors.Reason("empty archive member name")
	}
	return name, nil
}

// extractMembers writes the instrument files of the plain or gzip-compressed
// tar archive into dir, and returns their paths in the archive order.
func extractMembers(r io.Reader, dir string) ([]string, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if isGzip(br) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Annotate(err, "failed to decompress archive")
		}
		defer gz.Close()
		src = gz
	}
	tr := tar.NewReader(src)
	var paths []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Annotate(err, "failed to read archive")
		}
		if hdr.Typeflag != tar.TypeReg || !isInstrumentMember(hdr.Name) {
			continue
		}
		name, err := stripTopDirectory(hdr.Name)
		if err != nil {
			return nil, err
		}
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, errors.Annotate(err, "failed to create directory for '%s'", p)
		}
		if err := writeFile(p, tr); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// getFilterArchive downloads a multi-filter tar archive, extracts the
// instrument files into dir and opens them. The files are paired with the
// filters in order.
func (c *Client) getFilterArchive(ctx context.Context, uri, dir string, filters []string) (map[string]Product, error) {
	scratch, err := os.CreateTemp(c.config.ScratchDir, "esasky-*.tar")
	if err != nil {
		return nil, errors.Annotate(err, "failed to create scratch file")
	}
	defer func() {
		scratch.Close()
		os.Remove(scratch.Name())
	}()

	body, _, err := c.fetchProduct(ctx, uri)
	if err != nil {
		return nil, err
	}
	_, err = io.Copy(scratch, body)
	body.Close()
	if err != nil {
		return nil, errors.Annotate(err, "failed to download archive %s", uri)
	}
	if _, err := scratch.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Annotate(err, "failed to rewind scratch file")
	}
	paths, err := extractMembers(scratch, dir)
	if err != nil {
		return nil, errors.Annotate(err, "failed to extract %s", uri)
	}
	if len(paths) != len(filters) {
		return nil, &FilterMismatchError{Filters: filters, Members: paths}
	}
	res := make(map[string]Product)
	for i, p := range paths {
		prod, err := c.config.Opener.Open(p)
		if err != nil {
			for _, opened := range res {
				opened.Close()
			}
			return nil, err
		}
		logging.Debugf(ctx, "filter %s: %s", filters[i], p)
		if prev, ok := res[filters[i]]; ok {
			prev.Close()
		}
		res[filters[i]] = prod
	}
	return res, nil
}
