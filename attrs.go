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
	"time"
)

// metTimeFormat is the format MET uses for initialization and valid times.
const metTimeFormat = "20060102_150405"

// Attributes holds the metadata MET needs to interpret a gridded field.
type Attributes struct {
	Times Times

	// Accum is the accumulation interval, e.g. "00" for instantaneous fields.
	Accum string

	Name     string
	LongName string
	Level    string
	Units    string

	// Extra holds additional field-level keys, e.g. GRIB_name.
	Extra map[string]interface{}

	Grid *Grid
}

// Valid returns the valid time in MET format.
func (a *Attributes) Valid() string { return a.Times.Valid.UTC().Format(metTimeFormat) }

// Init returns the initialization time in MET format.
func (a *Attributes) Init() string { return a.Times.Init.UTC().Format(metTimeFormat) }

// Lead returns the forecast lead in MET format: whole hours as two or
// more digits, or HHMMSS if the lead is not a whole number of hours.
func (a *Attributes) Lead() string {
	return formatLead(a.Times.Lead)
}

func formatLead(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	rem := d - time.Duration(h)*time.Hour
	if rem == 0 {
		return fmt.Sprintf("%02d", h)
	}
	m := int(rem / time.Minute)
	s := int((rem - time.Duration(m)*time.Minute) / time.Second)
	return fmt.Sprintf("%02d%02d%02d", h, m, s)
}

// Map returns the attributes as the dictionary read by MET.
func (a *Attributes) Map() map[string]interface{} {
	o := make(map[string]interface{}, len(a.Extra)+9)
	for k, v := range a.Extra {
		o[k] = v
	}
	o["valid"] = a.Valid()
	o["init"] = a.Init()
	o["lead"] = a.Lead()
	o["accum"] = a.Accum
	o["name"] = a.Name
	o["level"] = a.Level
	o["units"] = a.Units
	if a.LongName != "" {
		o["long_name"] = a.LongName
	}
	if a.Grid != nil {
		o["grid"] = a.Grid.MET(a.Name)
	}
	return o
}
