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
	"errors"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/cdf"
)

// testVar is a variable to be written to a test file.
type testVar struct {
	name  string
	dims  []string
	data  interface{} // []float32 or []float64
	attrs map[string]interface{}
}

// writeTestFile writes a netCDF classic file holding vars to path.
func writeTestFile(t *testing.T, path string, dims []string, lengths []int, vars ...testVar) {
	t.Helper()
	h := cdf.NewHeader(dims, lengths)
	for _, v := range vars {
		switch v.data.(type) {
		case []float32:
			h.AddVariable(v.name, v.dims, []float32{0})
		case []float64:
			h.AddVariable(v.name, v.dims, []float64{0})
		default:
			t.Fatalf("unsupported test data type %T", v.data)
		}
		keys := make([]string, 0, len(v.attrs))
		for k := range v.attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.AddAttribute(v.name, k, v.attrs[k])
		}
	}
	h.AddAttribute("", "source", "modeprep test")
	h.Define()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	ff, err := cdf.Create(f, h)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range vars {
		if err := writeVariable(ff, v.name, v.data); err != nil {
			t.Fatal(err)
		}
	}
}

// writeForecastFile writes a file like an HRRR composite reflectivity file
// with a ny x nx field initialized at the given number of seconds
// since 1970.
func writeForecastFile(t *testing.T, path string, ny, nx int, init float64, data []float32) {
	t.Helper()
	writeTestFile(t, path, []string{"time", "y", "x"}, []int{1, ny, nx},
		testVar{
			name:  "time",
			dims:  []string{"time"},
			data:  []float64{init},
			attrs: map[string]interface{}{"units": "seconds since 1970-01-01 00:00:00"},
		},
		testVar{
			name: "refc",
			dims: []string{"time", "y", "x"},
			data: data,
			attrs: map[string]interface{}{
				"units":      "dB",
				"_FillValue": []float32{9999},
			},
		},
	)
}

// writeObservationFile writes a file like an MRMS reflectivity file.
func writeObservationFile(t *testing.T, path string, ny, nx int, data []float32) {
	t.Helper()
	writeTestFile(t, path, []string{"lat", "lon"}, []int{ny, nx},
		testVar{
			name: "mrms_lcref",
			dims: []string{"lat", "lon"},
			data: data,
			attrs: map[string]interface{}{
				"units":         "dBZ",
				"long_name":     "Lowest composite reflectivity",
				"missing_value": []float32{-999},
			},
		},
	)
}

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "modeprep")
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestOpenDataset_classic(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "fcst_f06.nc4")
	writeForecastFile(t, path, 2, 3, 1558310400, []float32{1, 2, 9999, 4, 5, 6})

	ds, err := OpenDataset(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()

	names := ds.Variables()
	sort.Strings(names)
	if want := []string{"refc", "time"}; !reflect.DeepEqual(names, want) {
		t.Errorf("variables: have %v, want %v", names, want)
	}
	if a, ok := ds.Attr("source"); !ok || a != "modeprep test" {
		t.Errorf("global attribute: have %v, %v", a, ok)
	}
	if _, ok := ds.Attr("history"); ok {
		t.Error("missing global attribute should not be found")
	}

	v, err := ds.Var("refc")
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{1, 2, 3}; !reflect.DeepEqual(v.Shape, want) {
		t.Errorf("shape: have %v, want %v", v.Shape, want)
	}
	if want := []string{"time", "y", "x"}; !reflect.DeepEqual(v.Dims, want) {
		t.Errorf("dims: have %v, want %v", v.Dims, want)
	}
	if v.AttrString("units") != "dB" {
		t.Errorf("units: have %q", v.AttrString("units"))
	}
	if !math.IsNaN(v.Values[2]) {
		t.Errorf("fill value should be NaN, have %g", v.Values[2])
	}
	if v.Values[5] != 6 {
		t.Errorf("value: have %g, want 6", v.Values[5])
	}

	tv, err := ds.Var("time")
	if err != nil {
		t.Fatal(err)
	}
	if len(tv.Values) != 1 || tv.Values[0] != 1558310400 {
		t.Errorf("time: have %v", tv.Values)
	}

	if _, err := ds.Var("refd"); err == nil {
		t.Error("expected an error for a missing variable")
	}
}

func TestOpenDataset_scaled(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "scaled.nc")
	writeTestFile(t, path, []string{"y", "x"}, []int{1, 3},
		testVar{
			name: "packed",
			dims: []string{"y", "x"},
			data: []float32{10, -1, 30},
			attrs: map[string]interface{}{
				"missing_value": []float32{-1},
				"scale_factor":  []float64{0.5},
				"add_offset":    []float64{-10},
			},
		},
	)
	ds, err := OpenDataset(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	v, err := ds.Var("packed")
	if err != nil {
		t.Fatal(err)
	}
	if v.Values[0] != -5 || !math.IsNaN(v.Values[1]) || v.Values[2] != 5 {
		t.Errorf("have %v, want [-5 NaN 5]", v.Values)
	}
}

func TestOpenDataset_errors(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	text := filepath.Join(dir, "notes.nc4")
	if err := ioutil.WriteFile(text, []byte("these are not data"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenDataset(text); err == nil || !strings.Contains(err.Error(), "is not a netCDF file") {
		t.Errorf("text file: have error %v", err)
	}

	empty := filepath.Join(dir, "empty.nc4")
	if err := ioutil.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenDataset(empty); err == nil {
		t.Error("empty file: expected an error")
	}

	if _, err := OpenDataset(filepath.Join(dir, "missing.nc4")); err == nil {
		t.Error("missing file: expected an error")
	}
}

func TestFlatten(t *testing.T) {
	values, shape, err := flatten([][][]int16{{{1, 2}, {3, 4}}, {{5, 6}, {7, 8}}})
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{2, 2, 2}; !reflect.DeepEqual(shape, want) {
		t.Errorf("shape: have %v, want %v", shape, want)
	}
	if want := []float64{1, 2, 3, 4, 5, 6, 7, 8}; !reflect.DeepEqual(values, want) {
		t.Errorf("values: have %v, want %v", values, want)
	}

	values, shape, err = flatten(float32(2.5))
	if err != nil {
		t.Fatal(err)
	}
	if len(shape) != 0 || !reflect.DeepEqual(values, []float64{2.5}) {
		t.Errorf("scalar: have %v %v", values, shape)
	}

	if _, _, err = flatten([][]float64{{1, 2}, {3}}); err == nil {
		t.Error("ragged: expected an error")
	}
	if _, _, err = flatten([]string{"a"}); err == nil {
		t.Error("strings: expected an error")
	}
}

func TestDescribeDataset(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "mrms_201905201430.nc4")
	writeObservationFile(t, path, 1, 2, []float32{1, 2})
	ds, err := OpenDataset(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	var b bytes.Buffer
	if err := DescribeDataset(&b, ds); err != nil {
		t.Fatal(err)
	}
	want := "mrms_lcref [lat lon] [1 2]\n" +
		"\tlong_name: Lowest composite reflectivity\n" +
		"\tmissing_value: [-999]\n" +
		"\tunits: dBZ\n" +
		"global attributes:\n" +
		"\tsource: modeprep test\n"
	if b.String() != want {
		t.Errorf("have\n%s\nwant\n%s", b.String(), want)
	}
}

// testdata/netcdf4_types.nc is a netCDF-4 (HDF5) file holding scalars and
// 2x2 arrays of each numeric type.
func TestOpenDataset_netCDF4(t *testing.T) {
	ds, err := OpenDataset(filepath.Join("testdata", "netcdf4_types.nc"))
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	if _, ok := ds.(*nativeDataset); !ok {
		t.Fatalf("have %T, want *nativeDataset", ds)
	}
	names := ds.Variables()
	sort.Strings(names)
	for _, name := range []string{"f32x2", "f64", "i16x2", "ui64x2"} {
		if i := sort.SearchStrings(names, name); i == len(names) || names[i] != name {
			t.Errorf("variable %s not listed in %v", name, names)
		}
	}

	for name, want := range map[string][]float64{
		"f32x2":  {-10.1, 10.1, -20.2, 20.2},
		"f64x2":  {-10.1, 10.1, -20.2, 20.2},
		"i8x2":   {-10, 10, -20, 20},
		"i16x2":  {-10000, 10000, -20000, 20000},
		"ui16x2": {10000, 20000, 20000, 30000},
		"ui64x2": {1e10, 2e10, 2e10, 3e10},
	} {
		v, err := ds.Var(name)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if !reflect.DeepEqual(v.Shape, []int{2, 2}) {
			t.Errorf("%s: shape %v", name, v.Shape)
		}
		if len(v.Values) != len(want) {
			t.Errorf("%s: have %v, want %v", name, v.Values, want)
			continue
		}
		for i := range want {
			if math.Abs(v.Values[i]-want[i]) > 1e-5*math.Abs(want[i]) {
				t.Errorf("%s[%d]: have %g, want %g", name, i, v.Values[i], want[i])
			}
		}
	}

	v, err := ds.Var("f64")
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Shape) != 0 || len(v.Values) != 1 || v.Values[0] != -10.1 {
		t.Errorf("scalar: shape %v values %v", v.Shape, v.Values)
	}
	if _, err := ds.Var("refc"); err == nil {
		t.Error("expected an error for a missing variable")
	}
	var b bytes.Buffer
	if err := DescribeDataset(&b, ds); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "f32x2 [] [2 2]\n") {
		t.Errorf("description:\n%s", b.String())
	}
}

// attrMap is an ordered api.AttributeMap.
type attrMap struct {
	keys []string
	vals map[string]interface{}
}

func (m attrMap) Keys() []string { return m.keys }

func (m attrMap) Get(key string) (interface{}, bool) {
	v, ok := m.vals[key]
	return v, ok
}

func (m attrMap) GetType(string) (string, bool)   { return "", false }
func (m attrMap) GetGoType(string) (string, bool) { return "", false }

// memGroup is an in-memory netCDF-4 group. Methods not used by
// nativeDataset are left to the nil embedded interface.
type memGroup struct {
	api.Group
	attrs  api.AttributeMap
	vars   map[string]*api.Variable
	closed bool
}

func (g *memGroup) Close()                       { g.closed = true }
func (g *memGroup) Attributes() api.AttributeMap { return g.attrs }

func (g *memGroup) ListVariables() []string {
	var o []string
	for k := range g.vars {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

func (g *memGroup) GetVariable(name string) (*api.Variable, error) {
	v, ok := g.vars[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return v, nil
}

func TestNativeDataset_attributes(t *testing.T) {
	g := &memGroup{
		attrs: attrMap{
			keys: []string{"title", "version"},
			vals: map[string]interface{}{"title": "MRMS", "version": int32(2)},
		},
		vars: map[string]*api.Variable{
			"mrms_lcref": {
				Values:     [][]int16{{1, -999}, {3, 4}},
				Dimensions: []string{"lat", "lon"},
				Attributes: attrMap{
					keys: []string{"units", "missing_value", "scale_factor", "add_offset"},
					vals: map[string]interface{}{
						"units":         "dBZ",
						"missing_value": int16(-999),
						"scale_factor":  float32(0.5),
						"add_offset":    float32(-10),
					},
				},
			},
		},
	}
	var ds Dataset = &nativeDataset{path: "mem.nc4", g: g}

	if have, want := ds.Attrs(), []string{"title", "version"}; !reflect.DeepEqual(have, want) {
		t.Errorf("global attributes: have %v, want %v", have, want)
	}
	if a, ok := ds.Attr("title"); !ok || a != "MRMS" {
		t.Errorf("title: have %v, %v", a, ok)
	}
	if _, ok := ds.Attr("history"); ok {
		t.Error("history should not exist")
	}

	v, err := ds.Var("mrms_lcref")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v.Dims, []string{"lat", "lon"}) || !reflect.DeepEqual(v.Shape, []int{2, 2}) {
		t.Errorf("dims %v shape %v", v.Dims, v.Shape)
	}
	if v.AttrString("units") != "dBZ" {
		t.Errorf("units: %q", v.AttrString("units"))
	}
	want := []float64{-9.5, math.NaN(), -8.5, -8}
	for i, w := range want {
		have := v.Values[i]
		if math.IsNaN(w) != math.IsNaN(have) || (!math.IsNaN(w) && have != w) {
			t.Errorf("value %d: have %g, want %g", i, have, w)
		}
	}
	if _, err := ds.Var("refc"); err == nil {
		t.Error("expected an error for a missing variable")
	}

	var b bytes.Buffer
	if err := DescribeDataset(&b, ds); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(b.String(), "global attributes:\n\ttitle: MRMS\n\tversion: 2\n") {
		t.Errorf("description:\n%s", b.String())
	}
	if err := ds.Close(); err != nil || !g.closed {
		t.Errorf("close: %v, closed %v", err, g.closed)
	}
}
