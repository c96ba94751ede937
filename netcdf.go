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
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/cdf"
	"github.com/spf13/cast"
)

var (
	magicCDF1 = []byte("CDF\x01")
	magicCDF2 = []byte("CDF\x02")
	magicHDF5 = []byte("\x89HDF\r\n\x1a\n")
)

// Dataset is an open netCDF file.
type Dataset interface {
	// Variables returns the names of the variables in the file.
	Variables() []string
	// Var reads the named variable.
	Var(name string) (*Variable, error)
	// Attrs returns the names of the global attributes.
	Attrs() []string
	// Attr returns the named global attribute.
	Attr(name string) (interface{}, bool)
	// Close closes the file.
	Close() error
}

// Variable holds the contents of a netCDF variable.
type Variable struct {
	Name  string
	Dims  []string
	Shape []int

	// Values holds the variable data in row-major order. Fill and
	// missing values are replaced with NaN and scale_factor and
	// add_offset have been applied.
	Values []float64

	Attrs map[string]interface{}
}

// AttrString returns the named attribute as a string, or "" if the
// attribute does not exist.
func (v *Variable) AttrString(name string) string {
	a, ok := v.Attrs[name]
	if !ok {
		return ""
	}
	if b, ok := a.([]byte); ok {
		return string(bytes.TrimRight(b, "\x00"))
	}
	return cast.ToString(a)
}

// attrFloat returns the first element of a numeric attribute, which may
// be a scalar or a slice.
func attrFloat(a interface{}) (float64, bool) {
	if a == nil {
		return 0, false
	}
	v := reflect.ValueOf(a)
	if v.Kind() == reflect.Slice {
		if v.Len() == 0 {
			return 0, false
		}
		v = v.Index(0)
	}
	return numericValue(v)
}

func numericValue(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Interface:
		return numericValue(v.Elem())
	}
	return 0, false
}

// OpenDataset opens the netCDF file at path. Classic and 64-bit offset
// files are read with github.com/ctessum/cdf, and netCDF-4 (HDF5) files
// with github.com/batchatco/go-native-netcdf.
func OpenDataset(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("modeprep: opening netCDF file: %v", err)
	}
	magic := make([]byte, len(magicHDF5))
	n, err := io.ReadFull(f, magic)
	if err != nil && err != io.ErrUnexpectedEOF {
		f.Close()
		return nil, fmt.Errorf("modeprep: reading %s: %v", path, err)
	}
	magic = magic[:n]
	switch {
	case bytes.HasPrefix(magic, magicCDF1), bytes.HasPrefix(magic, magicCDF2):
		ff, err := cdf.Open(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("modeprep: reading netCDF header of %s: %v", path, err)
		}
		return &classicDataset{path: path, f: f, ff: ff}, nil
	case bytes.HasPrefix(magic, magicHDF5):
		f.Close()
		g, err := netcdf.Open(path)
		if err != nil {
			return nil, fmt.Errorf("modeprep: opening netCDF-4 file %s: %v", path, err)
		}
		return &nativeDataset{path: path, g: g}, nil
	default:
		f.Close()
		return nil, fmt.Errorf("modeprep: %s is not a netCDF file", path)
	}
}

// classicDataset is a netCDF classic format file.
type classicDataset struct {
	path string
	f    *os.File
	ff   *cdf.File
}

func (d *classicDataset) Variables() []string {
	return d.ff.Header.Variables()
}

func (d *classicDataset) Attrs() []string {
	return d.ff.Header.Attributes("")
}

func (d *classicDataset) Attr(name string) (interface{}, bool) {
	a := d.ff.Header.GetAttribute("", name)
	return a, a != nil
}

func (d *classicDataset) Var(name string) (*Variable, error) {
	lengths := d.ff.Header.Lengths(name)
	if lengths == nil {
		return nil, fmt.Errorf("modeprep: variable %s not in file %s", name, d.path)
	}
	shape := make([]int, len(lengths))
	copy(shape, lengths)
	if d.ff.Header.IsRecordVariable(name) {
		fi, err := d.f.Stat()
		if err != nil {
			return nil, fmt.Errorf("modeprep: %v", err)
		}
		shape[0] = int(d.ff.Header.NumRecs(fi.Size()))
	}
	v := &Variable{
		Name:  name,
		Dims:  d.ff.Header.Dimensions(name),
		Shape: shape,
		Attrs: make(map[string]interface{}),
	}
	for _, a := range d.ff.Header.Attributes(name) {
		v.Attrs[a] = d.ff.Header.GetAttribute(name, a)
	}
	r := d.ff.Reader(name, nil, nil)
	buf := r.Zero(product(shape))
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("modeprep: reading netCDF variable %s from %s: %v", name, d.path, err)
	}
	var err error
	v.Values, _, err = flatten(buf)
	if err != nil {
		return nil, fmt.Errorf("modeprep: variable %s in %s: %v", name, d.path, err)
	}
	v.maskAndScale()
	return v, nil
}

func (d *classicDataset) Close() error { return d.f.Close() }

// nativeDataset is a netCDF-4 file.
type nativeDataset struct {
	path string
	g    api.Group
}

func (d *nativeDataset) Variables() []string {
	return d.g.ListVariables()
}

func (d *nativeDataset) Attrs() []string {
	attrs := d.g.Attributes()
	if attrs == nil {
		return nil
	}
	return attrs.Keys()
}

func (d *nativeDataset) Attr(name string) (interface{}, bool) {
	attrs := d.g.Attributes()
	if attrs == nil {
		return nil, false
	}
	return attrs.Get(name)
}

func (d *nativeDataset) Var(name string) (*Variable, error) {
	nv, err := d.g.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("modeprep: variable %s not in file %s: %v", name, d.path, err)
	}
	v := &Variable{
		Name:  name,
		Dims:  nv.Dimensions,
		Attrs: make(map[string]interface{}),
	}
	if nv.Attributes != nil {
		for _, k := range nv.Attributes.Keys() {
			v.Attrs[k], _ = nv.Attributes.Get(k)
		}
	}
	v.Values, v.Shape, err = flatten(nv.Values)
	if err != nil {
		return nil, fmt.Errorf("modeprep: variable %s in %s: %v", name, d.path, err)
	}
	v.maskAndScale()
	return v, nil
}

func (d *nativeDataset) Close() error {
	d.g.Close()
	return nil
}

// flatten converts a scalar, a slice, or nested slices of numbers into
// a row-major []float64 and returns the shape of the input.
func flatten(values interface{}) ([]float64, []int, error) {
	v := reflect.ValueOf(values)
	if v.Kind() != reflect.Slice {
		f, ok := numericValue(v)
		if !ok {
			return nil, nil, fmt.Errorf("unsupported value type %T", values)
		}
		return []float64{f}, nil, nil
	}
	var shape []int
	for t := v; ; {
		shape = append(shape, t.Len())
		if t.Type().Elem().Kind() != reflect.Slice || t.Len() == 0 {
			break
		}
		t = t.Index(0)
	}
	out := make([]float64, 0, product(shape))
	var walk func(v reflect.Value, depth int) error
	walk = func(v reflect.Value, depth int) error {
		if v.Len() != shape[depth] {
			return fmt.Errorf("ragged array at depth %d", depth)
		}
		if depth < len(shape)-1 {
			for i := 0; i < v.Len(); i++ {
				if err := walk(v.Index(i), depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			f, ok := numericValue(v.Index(i))
			if !ok {
				return fmt.Errorf("unsupported element type %s", v.Type().Elem())
			}
			out = append(out, f)
		}
		return nil
	}
	if err := walk(v, 0); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

func product(shape []int) int {
	n := 1
	for _, l := range shape {
		n *= l
	}
	return n
}

// maskAndScale replaces fill and missing values with NaN and applies
// the scale_factor and add_offset attributes.
func (v *Variable) maskAndScale() {
	var masks []float64
	for _, name := range []string{"_FillValue", "missing_value"} {
		if f, ok := attrFloat(v.Attrs[name]); ok {
			masks = append(masks, f)
		}
	}
	scale, hasScale := attrFloat(v.Attrs["scale_factor"])
	offset, hasOffset := attrFloat(v.Attrs["add_offset"])
	if !hasScale {
		scale = 1
	}
	for i, val := range v.Values {
		for _, m := range masks {
			if val == m {
				val = math.NaN()
				break
			}
		}
		if hasScale || hasOffset {
			val = val*scale + offset
		}
		v.Values[i] = val
	}
}

// DescribeDataset writes a listing of the variables in ds, with their
// dimensions, shapes and attributes, followed by the global attributes
// of ds, to w. Variables that cannot be read are listed with the error.
func DescribeDataset(w io.Writer, ds Dataset) error {
	names := ds.Variables()
	sort.Strings(names)
	for _, name := range names {
		v, err := ds.Var(name)
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", name, err)
			continue
		}
		fmt.Fprintf(w, "%s %v %v\n", name, v.Dims, v.Shape)
		keys := make([]string, 0, len(v.Attrs))
		for k := range v.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "\t%s: %v\n", k, attrDisplay(v.Attrs[k]))
		}
	}
	global := ds.Attrs()
	if len(global) == 0 {
		return nil
	}
	sort.Strings(global)
	fmt.Fprintln(w, "global attributes:")
	for _, k := range global {
		a, _ := ds.Attr(k)
		fmt.Fprintf(w, "\t%s: %v\n", k, attrDisplay(a))
	}
	return nil
}

func attrDisplay(a interface{}) interface{} {
	if b, ok := a.([]byte); ok {
		return string(bytes.TrimRight(b, "\x00"))
	}
	return a
}
