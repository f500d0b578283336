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
	"bufio"
	"io"
	"os"

	"github.com/astrogo/fitsio"
	"github.com/klauspost/compress/gzip"
	"github.com/stockparfait/errors"
)

// Product is a downloaded file opened for reading. It must be closed by the
// caller.
type Product interface {
	Path() string
	Close() error
}

// Opener opens a downloaded file as a Product.
type Opener interface {
	Open(path string) (Product, error)
}

// FITSOpener opens plain or gzip-compressed FITS files.
type FITSOpener struct{}

var _ Opener = &FITSOpener{}

// FITSProduct is an open FITS file.
type FITSProduct struct {
	path    string
	file    *os.File
	gz      io.Closer
	content *fitsio.File
}

var _ Product = &FITSProduct{}

func (p *FITSProduct) Path() string { return p.path }

// FITS file handle.
func (p *FITSProduct) FITS() *fitsio.File { return p.content }

// HDUs of the FITS file, primary first.
func (p *FITSProduct) HDUs() []fitsio.HDU { return p.content.HDUs() }

// Close the FITS handle and the underlying file. The first error is returned.
func (p *FITSProduct) Close() error {
	var res error
	if p.content != nil {
		res = p.content.Close()
	}
	if p.gz != nil {
		if err := p.gz.Close(); err != nil && res == nil {
			res = err
		}
	}
	if err := p.file.Close(); err != nil && res == nil {
		res = err
	}
	return res
}

// isGzip checks the gzip magic number without consuming the input.
func isGzip(r *bufio.Reader) bool {
	b, err := r.Peek(2)
	return err == nil && b[0] == 0x1f && b[1] == 0x8b
}

// Open the FITS file at path. Gzip compression is detected from the content
// regardless of the file name.
func (o *FITSOpener) Open(path string) (Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open '%s'", path)
	}
	p := &FITSProduct{path: path, file: f}
	br := bufio.NewReader(f)
	var r io.Reader = br
	if isGzip(br) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			p.Close()
			return nil, errors.Annotate(err, "failed to decompress '%s'", path)
		}
		p.gz = gz
		r = gz
	}
	content, err := fitsio.Open(r)
	if err != nil {
		p.Close()
		return nil, errors.Annotate(err, "failed to read FITS file '%s'", path)
	}
	p.content = content
	return p, nil
}
