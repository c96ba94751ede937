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
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Grid types understood by MET.
const (
	LambertConformal = "Lambert Conformal"
	LatLon           = "LatLon"
)

// gridTypeAliases maps the accepted spellings of a grid type to
// its canonical MET name.
var gridTypeAliases = map[string]string{
	"lambert conformal": LambertConformal,
	"lambertconformal":  LambertConformal,
	"lambert":           LambertConformal,
	"latlon":            LatLon,
	"lat/lon":           LatLon,
	"lat_lon":           LatLon,
}

// requiredParams lists the projection parameters each grid type
// must define. Parameters with a true value must be strictly positive.
var requiredParams = map[string]map[string]bool{
	LambertConformal: {
		"scale_lat_1": false,
		"scale_lat_2": false,
		"lat_pin":     false,
		"lon_pin":     false,
		"x_pin":       false,
		"y_pin":       false,
		"lon_orient":  false,
		"d_km":        true,
		"r_km":        true,
		"nx":          true,
		"ny":          true,
	},
	LatLon: {
		"lat_ll":    false,
		"lon_ll":    false,
		"delta_lat": true,
		"delta_lon": true,
		"Nlat":      true,
		"Nlon":      true,
	},
}

// Grid describes the projection of a gridded field in the form MET expects.
type Grid struct {
	// Name is the catalog key of the grid.
	Name string

	// Type is the MET grid type, either LambertConformal or LatLon.
	Type string

	// Params holds the MET projection parameters, e.g. nx, ny, d_km
	// for Lambert Conformal grids and Nlat, Nlon, delta_lat for
	// Lat/Lon grids.
	Params map[string]interface{}

	// Extra holds additional descriptive keys (e.g. GRIB_* keys) that
	// are passed through to the grid dictionary unchanged.
	Extra map[string]interface{}
}

// Validate normalizes the grid type and numeric parameters and
// checks that all parameters required for the grid type are present.
func (g *Grid) Validate() error {
	t, ok := gridTypeAliases[strings.ToLower(strings.TrimSpace(g.Type))]
	if !ok {
		return fmt.Errorf("modeprep: grid %s: invalid type %q; valid types are %q and %q",
			g.Name, g.Type, LambertConformal, LatLon)
	}
	g.Type = t

	params := make(map[string]interface{}, len(g.Params))
	for k, v := range g.Params {
		params[k] = v
	}
	for name, positive := range requiredParams[t] {
		v, ok := params[name]
		if !ok {
			return fmt.Errorf("modeprep: grid %s: missing %s parameter %s", g.Name, t, name)
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return fmt.Errorf("modeprep: grid %s: parameter %s: %v", g.Name, name, err)
		}
		if positive && !(f > 0) {
			return fmt.Errorf("modeprep: grid %s: parameter %s=%g but should be >0", g.Name, name, f)
		}
		params[name] = f
	}
	for _, name := range g.dimParams() {
		n := cast.ToInt(params[name])
		if float64(n) != params[name].(float64) {
			return fmt.Errorf("modeprep: grid %s: parameter %s=%v must be a whole number", g.Name, name, params[name])
		}
		params[name] = n
	}
	if t == LambertConformal {
		h := strings.ToUpper(cast.ToString(params["hemisphere"]))
		if h == "" {
			h = "N"
		}
		if h != "N" && h != "S" {
			return fmt.Errorf("modeprep: grid %s: hemisphere must be N or S, not %q", g.Name, h)
		}
		params["hemisphere"] = h
	}
	g.Params = params
	return nil
}

// dimParams returns the names of the parameters holding the
// number of grid points in the y and x directions.
func (g *Grid) dimParams() []string {
	if g.Type == LatLon {
		return []string{"Nlat", "Nlon"}
	}
	return []string{"ny", "nx"}
}

// Shape returns the number of grid points in the y and x directions.
// The grid must have been validated.
func (g *Grid) Shape() (ny, nx int) {
	dims := g.dimParams()
	return cast.ToInt(g.Params[dims[0]]), cast.ToInt(g.Params[dims[1]])
}

// MET returns the MET grid dictionary for a field with the given name.
// Keys such as long_name that only some grids carry belong in Extra.
func (g *Grid) MET(name string) map[string]interface{} {
	o := make(map[string]interface{}, len(g.Params)+len(g.Extra)+3)
	for k, v := range g.Extra {
		o[k] = v
	}
	for k, v := range g.Params {
		o[k] = v
	}
	o["type"] = g.Type
	o["name"] = name
	return o
}

// String returns a one-line description of the grid.
func (g *Grid) String() string {
	ny, nx := g.Shape()
	keys := make([]string, 0, len(g.Params))
	for k := range g.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %dx%d):", g.Name, g.Type, ny, nx)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, g.Params[k])
	}
	return b.String()
}
