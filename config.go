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
	// Embed the default catalog.
	_ "embed"
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed defaults.toml
var defaultCatalog string

// Catalog holds the available grids and products.
type Catalog struct {
	Grids    map[string]*Grid
	Products map[string]*Product
}

// TimingConfig specifies how the times of a product are derived.
type TimingConfig struct {
	// Kind is either "forecast" or "observation".
	Kind string `toml:"kind"`

	// TimeVariable is the CF time variable holding the initialization
	// time of forecast files. The default is "time".
	TimeVariable string `toml:"time_variable"`

	// LeadDigits is the number of characters at the end of a forecast
	// file name (before the extension) holding the lead in hours.
	// The default is 2.
	LeadDigits int `toml:"lead_digits"`

	// Layout is the Go time layout of the time stamp at the end of an
	// observation file name (before the extension). The default is
	// "200601021504".
	Layout string `toml:"layout"`

	// Width is the number of characters in the time stamp. The default
	// is the length of Layout.
	Width int `toml:"width"`
}

// New returns the Timing described by c.
func (c TimingConfig) New() (Timing, error) {
	switch strings.ToLower(c.Kind) {
	case "forecast":
		return ForecastTiming{TimeVariable: c.TimeVariable, LeadDigits: c.LeadDigits}, nil
	case "observation":
		return ObservationTiming{Layout: c.Layout, Width: c.Width}, nil
	default:
		return nil, fmt.Errorf("timing kind %q is invalid; valid options are forecast and observation", c.Kind)
	}
}

type gridConfig struct {
	Type   string                 `toml:"type"`
	Params map[string]interface{} `toml:"params"`
	Extra  map[string]interface{} `toml:"extra"`
}

type productConfig struct {
	Variable  string                 `toml:"variable"`
	Extension string                 `toml:"extension"`
	Grid      string                 `toml:"grid"`
	Name      string                 `toml:"name"`
	LongName  string                 `toml:"long_name"`
	Level     string                 `toml:"level"`
	Units     string                 `toml:"units"`
	Accum     string                 `toml:"accum"`
	Timing    TimingConfig           `toml:"timing"`
	Extra     map[string]interface{} `toml:"extra"`
}

type catalogConfig struct {
	Grids    map[string]gridConfig    `toml:"grids"`
	Products map[string]productConfig `toml:"products"`
}

// DefaultCatalog returns the built-in catalog, which holds the "hrrr"
// (High-Resolution Rapid Refresh composite reflectivity) and "mrms"
// (Multi-Radar Multi-Sensor lowest-altitude composite reflectivity)
// grids and products.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a TOML catalog file. Environment variables in the
// file name are expanded. If filename is empty, the default catalog is
// returned.
func LoadCatalog(filename string) (*Catalog, error) {
	if filename == "" {
		return DefaultCatalog()
	}
	filename = os.ExpandEnv(filename)
	b, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("modeprep: the catalog file you have specified, %v, could not be read: %v", filename, err)
	}
	c, err := ParseCatalog(string(b))
	if err != nil {
		return nil, fmt.Errorf("%v (in %s)", err, filename)
	}
	return c, nil
}

// ParseCatalog parses and validates a TOML catalog.
func ParseCatalog(data string) (*Catalog, error) {
	var cfg catalogConfig
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("modeprep: there has been an error parsing the catalog: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("modeprep: unknown catalog keys: %s", strings.Join(keys, ", "))
	}

	c := &Catalog{
		Grids:    make(map[string]*Grid, len(cfg.Grids)),
		Products: make(map[string]*Product, len(cfg.Products)),
	}
	for name, gc := range cfg.Grids {
		g := &Grid{Name: name, Type: gc.Type, Params: gc.Params, Extra: gc.Extra}
		if err := g.Validate(); err != nil {
			return nil, err
		}
		c.Grids[name] = g
	}
	for name, pc := range cfg.Products {
		p, err := pc.product(name, c.Grids)
		if err != nil {
			return nil, err
		}
		c.Products[name] = p
	}
	return c, nil
}

func (pc productConfig) product(name string, grids map[string]*Grid) (*Product, error) {
	if pc.Variable == "" {
		return nil, fmt.Errorf("modeprep: product %s: variable is not specified", name)
	}
	g, ok := grids[pc.Grid]
	if !ok {
		return nil, fmt.Errorf("modeprep: product %s: grid %q is not in the catalog", name, pc.Grid)
	}
	timing, err := pc.Timing.New()
	if err != nil {
		return nil, fmt.Errorf("modeprep: product %s: %v", name, err)
	}
	p := &Product{
		Name:      name,
		Variable:  pc.Variable,
		Extension: pc.Extension,
		Grid:      g,
		FieldName: pc.Name,
		LongName:  pc.LongName,
		Level:     pc.Level,
		Units:     pc.Units,
		Accum:     pc.Accum,
		Extra:     pc.Extra,
		Timing:    timing,
	}
	if p.FieldName == "" {
		p.FieldName = p.Variable
	}
	if p.Accum == "" {
		p.Accum = "00"
	}
	if p.Extension != "" && !strings.HasPrefix(p.Extension, ".") {
		p.Extension = "." + p.Extension
	}
	return p, nil
}

// Product returns the named product.
func (c *Catalog) Product(name string) (*Product, error) {
	p, ok := c.Products[name]
	if !ok {
		return nil, fmt.Errorf("modeprep: product %q is not in the catalog; valid options are %s",
			name, strings.Join(c.ProductNames(), ", "))
	}
	return p, nil
}

// ProductNames returns the sorted names of the products in the catalog.
func (c *Catalog) ProductNames() []string {
	names := make([]string, 0, len(c.Products))
	for n := range c.Products {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GridNames returns the sorted names of the grids in the catalog.
func (c *Catalog) GridNames() []string {
	names := make([]string, 0, len(c.Grids))
	for n := range c.Grids {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
