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
	"encoding/base64"
	"encoding/binary"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/esasky/table"
)

// Size in bytes of a single element of each VOTABLE datatype. Bit arrays are
// packed and handled separately.
var datatypeSize = map[string]int{
	"boolean":       1,
	"unsignedByte":  1,
	"short":         2,
	"int":           4,
	"long":          8,
	"char":          1,
	"unicodeChar":   2,
	"float":         4,
	"double":        8,
	"floatComplex":  8,
	"doubleComplex": 16,
}

// streamBytes returns the decoded content of a BINARY or BINARY2 STREAM.
func streamBytes(s *voStream) ([]byte, error) {
	if s.Stream.Href != "" {
		return nil, errors.Reason("remote STREAM href='%s' is not supported",
			s.Stream.Href)
	}
	if enc := s.Stream.Encoding; enc != "" && enc != "base64" {
		return nil, errors.Reason("unsupported STREAM encoding '%s'", enc)
	}
	text := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s.Stream.Text)
	b, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, errors.Annotate(err, "malformed base64 STREAM")
	}
	return b, nil
}

// parseArraySize returns the number of elements of a field, or -1 when the
// array has variable length and is prefixed by its element count.
func parseArraySize(s string) (int, error) {
	if s == "" {
		return 1, nil
	}
	n := 1
	for _, dim := range strings.Split(s, "x") {
		if strings.HasSuffix(dim, "*") {
			return -1, nil
		}
		k, err := strconv.Atoi(dim)
		if err != nil || k < 0 {
			return 0, errors.Reason("invalid arraysize '%s'", s)
		}
		n *= k
	}
	return n, nil
}

type binaryReader struct {
	buf []byte
	pos int
}

func (r *binaryReader) next(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *binaryReader) done() bool { return r.pos >= len(r.buf) }

// decodeBinary extracts the rows of a BINARY or BINARY2 serialization.
func decodeBinary(data *voData, fields []voField) ([]table.Row, error) {
	stream := data.Binary
	nullFlags := false
	if stream == nil {
		stream = data.Binary2
		nullFlags = true
	}
	buf, err := streamBytes(stream)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		if len(buf) > 0 {
			return nil, errors.Reason("binary DATA for a TABLE without FIELDs")
		}
		return nil, nil
	}
	r := &binaryReader{buf: buf}
	var rows []table.Row
	for i := 0; !r.done(); i++ {
		var mask []byte
		if nullFlags {
			if mask, err = r.next((len(fields) + 7) / 8); err != nil {
				return nil, errors.Annotate(err, "row %d: null flags", i)
			}
		}
		row := make(table.Row, len(fields))
		for j := range fields {
			v, err := readValue(r, &fields[j])
			if err != nil {
				return nil, errors.Annotate(err, "row %d, field %d", i, j)
			}
			if mask != nil && mask[j/8]&(0x80>>(j%8)) != 0 {
				v = ""
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// readValue reads one field value and renders it as its TABLEDATA text.
func readValue(r *binaryReader, f *voField) (string, error) {
	count, err := parseArraySize(f.ArraySize)
	if err != nil {
		return "", err
	}
	if count < 0 {
		b, err := r.next(4)
		if err != nil {
			return "", err
		}
		count = int(binary.BigEndian.Uint32(b))
	}
	if f.Datatype == "bit" {
		b, err := r.next((count + 7) / 8)
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for i := 0; i < count; i++ {
			if b[i/8]&(0x80>>(i%8)) != 0 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		return sb.String(), nil
	}
	size, ok := datatypeSize[f.Datatype]
	if !ok {
		return "", errors.Reason("unsupported datatype '%s'", f.Datatype)
	}
	b, err := r.next(size * count)
	if err != nil {
		return "", err
	}
	switch f.Datatype {
	case "char":
		if k := strings.IndexByte(string(b), 0); k >= 0 {
			b = b[:k]
		}
		return strings.TrimSpace(string(b)), nil
	case "unicodeChar":
		u := make([]uint16, count)
		for i := range u {
			u[i] = binary.BigEndian.Uint16(b[2*i:])
		}
		for i, c := range u {
			if c == 0 {
				u = u[:i]
				break
			}
		}
		return strings.TrimSpace(string(utf16.Decode(u))), nil
	}
	if count == 0 {
		return "", nil
	}
	elts := make([]string, count)
	for i := range elts {
		elts[i] = formatElement(f.Datatype, b[i*size:(i+1)*size])
	}
	if count == 1 {
		if elts[0] == "NaN" {
			return "", nil
		}
		if f.Values != nil && f.Values.Null != "" && elts[0] == f.Values.Null {
			return "", nil
		}
	}
	return strings.Join(elts, " "), nil
}

// formatElement renders a single big-endian element of the given datatype.
func formatElement(datatype string, b []byte) string {
	switch datatype {
	case "boolean":
		switch b[0] {
		case 'T', 't', '1':
			return "T"
		case 'F', 'f', '0':
			return "F"
		}
		return ""
	case "unsignedByte":
		return strconv.FormatUint(uint64(b[0]), 10)
	case "short":
		return strconv.FormatInt(int64(int16(binary.BigEndian.Uint16(b))), 10)
	case "int":
		return strconv.FormatInt(int64(int32(binary.BigEndian.Uint32(b))), 10)
	case "long":
		return strconv.FormatInt(int64(binary.BigEndian.Uint64(b)), 10)
	case "float":
		return formatFloat32(b)
	case "double":
		return formatFloat64(b)
	case "floatComplex":
		return formatFloat32(b[:4]) + " " + formatFloat32(b[4:])
	case "doubleComplex":
		return formatFloat64(b[:8]) + " " + formatFloat64(b[8:])
	}
	return ""
}

func formatFloat32(b []byte) string {
	f := math.Float32frombits(binary.BigEndian.Uint32(b))
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func formatFloat64(b []byte) string {
	f := math.Float64frombits(binary.BigEndian.Uint64(b))
	return strconv.FormatFloat(f, 'g', -1, 64)
}
