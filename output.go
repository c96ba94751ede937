/*
Copyright © 2019 the modeprep authors.
This file is part of modeprep.

modeprep is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

modeprep is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with modeprep.  If not, see <http://www.gnu.org/licenses/>.
*/

package modeprep

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ctessum/cdf"
	"github.com/ghodss/yaml"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/modeprep/cloud"
	"github.com/spf13/cast"
)

// FillValue is written in place of missing values in netCDF output.
const FillValue = -9999

// Output formats for attribute records.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Sink receives processing results.
type Sink interface {
	// Put emits one result.
	Put(ctx context.Context, r *Result) error
	// Close flushes any buffered output.
	Close() error
}

// CheckFormat returns an error if format is not a valid output format.
func CheckFormat(format string) error {
	if format != FormatJSON && format != FormatYAML {
		return fmt.Errorf("modeprep: output format %q is invalid; valid options are %s and %s", format, FormatJSON, FormatYAML)
	}
	return nil
}

// record is the representation of one result in a stream.
type record struct {
	Path  string                 `json:"path"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
	Error string                 `json:"error,omitempty"`
}

func marshal(v interface{}, format string) ([]byte, error) {
	if format == FormatYAML {
		return yaml.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}

// StreamSink writes one record per result, holding the input path and
// either the MET attributes or the error, to W. JSON records are written
// one per line; YAML records are written as separate documents.
type StreamSink struct {
	W      io.Writer
	Format string
}

// Put implements Sink.
func (s *StreamSink) Put(_ context.Context, r *Result) error {
	rec := record{Path: r.Path}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	} else {
		rec.Attrs = r.Attrs.Map()
	}
	var b []byte
	var err error
	if s.Format == FormatYAML {
		b, err = yaml.Marshal(rec)
		if err == nil {
			b = append([]byte("---\n"), b...)
		}
	} else {
		b, err = json.Marshal(rec)
		b = append(b, '\n')
	}
	if err != nil {
		return fmt.Errorf("modeprep: encoding attributes for %s: %v", r.Path, err)
	}
	_, err = s.W.Write(b)
	return err
}

// Close implements Sink.
func (s *StreamSink) Close() error { return nil }

// BucketSink writes, for each successful result, an attribute sidecar file
// named <name>.attrs.json (or .attrs.yaml) and optionally a netCDF file
// named <name>.met.nc holding the flipped field, where <name> is the input
// file name without its extension. If inputs in different directories
// share a name, later ones get a numeric suffix (<name>_2, <name>_3, ...).
// Failed results are not written.
type BucketSink struct {
	Location *cloud.Location
	Format   string

	// NetCDF specifies whether to write the field to a netCDF file.
	NetCDF bool

	Log logrus.FieldLogger

	mu    sync.Mutex
	names map[string]string // output name -> input path
}

// NewBucketSink opens the output location (a local directory or a
// 'file://', 'gs://' or 's3://' URL) and returns a sink writing to it.
func NewBucketSink(ctx context.Context, location, format string, netCDF bool, log logrus.FieldLogger) (*BucketSink, error) {
	if err := CheckFormat(format); err != nil {
		return nil, err
	}
	l, err := cloud.OpenLocation(ctx, location)
	if err != nil {
		return nil, err
	}
	return &BucketSink{Location: l, Format: format, NetCDF: netCDF, Log: log}, nil
}

// outputName returns the base name used for the output files of the
// input file at path.
func outputName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// uniqueName returns the output name for the input at path, which is
// distinct from the names of all other inputs written by s.
func (s *BucketSink) uniqueName(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names == nil {
		s.names = make(map[string]string)
	}
	base := outputName(path)
	name := base
	for i := 2; ; i++ {
		p, ok := s.names[name]
		if !ok || p == path {
			break
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
	if name != base && s.Log != nil {
		s.Log.WithFields(logrus.Fields{
			"file": path,
			"name": name,
		}).Warnf("output name %s is already used by %s", base, s.names[base])
	}
	s.names[name] = path
	return name
}

// Put implements Sink.
func (s *BucketSink) Put(ctx context.Context, r *Result) error {
	if r.Err != nil {
		return nil
	}
	name := s.uniqueName(r.Path)
	b, err := marshal(r.Attrs.Map(), s.Format)
	if err != nil {
		return fmt.Errorf("modeprep: encoding attributes for %s: %v", r.Path, err)
	}
	key := s.Location.Key(name + ".attrs." + s.Format)
	if err := cloud.WriteBlob(ctx, s.Location.Bucket, key, b, s.Log); err != nil {
		return err
	}
	if s.Log != nil {
		s.Log.WithField("key", key).Debug("wrote attributes")
	}
	if !s.NetCDF {
		return nil
	}
	b, err = encodeNetCDF(r)
	if err != nil {
		return fmt.Errorf("modeprep: writing netCDF for %s: %v", r.Path, err)
	}
	key = s.Location.Key(name + ".met.nc")
	if err := cloud.WriteBlob(ctx, s.Location.Bucket, key, b, s.Log); err != nil {
		return err
	}
	if s.Log != nil {
		s.Log.WithField("key", key).Debug("wrote field")
	}
	return nil
}

// Close implements Sink.
func (s *BucketSink) Close() error { return nil }

// encodeNetCDF returns the contents of a netCDF classic file holding the
// field and attributes of r.
func encodeNetCDF(r *Result) ([]byte, error) {
	tmp, err := ioutil.TempFile("", "modeprep")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if err := WriteNetCDF(tmp, r.Field, r.Attrs); err != nil {
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return ioutil.ReadAll(tmp)
}

// WriteNetCDF writes field and its attributes to w as a netCDF classic
// file. The field is stored as a float32 variable with dimensions (y, x)
// named after the field. Missing values are stored as FillValue. The MET
// attributes are stored as variable attributes and the grid parameters as
// global attributes.
func WriteNetCDF(w *os.File, field *Field, attrs *Attributes) error {
	name := attrs.Name
	h := cdf.NewHeader([]string{"y", "x"}, []int{field.Ny(), field.Nx()})
	h.AddAttribute("", "comment", "Gridded field and attributes for MET")
	h.AddVariable(name, []string{"y", "x"}, []float32{0})

	m := attrs.Map()
	grid, _ := m["grid"].(map[string]interface{})
	delete(m, "grid")
	addAttributes(h, name, m)
	h.AddAttribute(name, "_FillValue", []float32{FillValue})
	addAttributes(h, "", grid)
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return err
	}
	data32 := make([]float32, len(field.Elements))
	for i, e := range field.Elements {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			data32[i] = FillValue
		} else {
			data32[i] = float32(e)
		}
	}
	return writeVariable(f, name, data32)
}

// writeVariable writes all of the data of variable name. The writer
// reports io.EOF once the end of a fixed-size variable is reached, so
// that is not an error here.
func writeVariable(f *cdf.File, name string, data interface{}) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	if _, err := w.Write(data); err != nil && err != io.EOF {
		return fmt.Errorf("writing variable %s: %v", name, err)
	}
	return nil
}

// addAttributes adds the entries of m to variable v of h in sorted order.
// Non-empty strings are stored as text, numbers as doubles and anything else as its
// text representation.
func addAttributes(h *cdf.Header, v string, m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch val := m[k].(type) {
		case string:
			if val != "" {
				h.AddAttribute(v, k, val)
			}
		case bool:
			h.AddAttribute(v, k, fmt.Sprint(val))
		default:
			if f, err := cast.ToFloat64E(val); err == nil {
				h.AddAttribute(v, k, []float64{f})
			} else {
				h.AddAttribute(v, k, fmt.Sprint(val))
			}
		}
	}
}
