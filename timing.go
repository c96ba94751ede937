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
	"math"
	"strconv"
	"strings"
	"time"
)

// Times holds the time information of one field.
type Times struct {
	// Init is the model initialization time, or the observation time.
	Init time.Time
	// Valid is the time the field is valid for.
	Valid time.Time
	// Lead is Valid - Init.
	Lead time.Duration
}

// Timing derives the times of a field. stem is the file name with
// directories and the product extension removed, and ds is the open
// dataset the field was read from.
type Timing interface {
	Times(stem string, ds Dataset) (Times, error)
}

// ForecastTiming reads the initialization time from a CF time variable
// in the dataset and the forecast lead (in hours) from the last LeadDigits
// characters of the file name stem, e.g. "hrrr.t00z.wrfsfcf06" has a lead
// of 6 hours.
type ForecastTiming struct {
	TimeVariable string
	LeadDigits   int
}

// Times implements Timing.
func (f ForecastTiming) Times(stem string, ds Dataset) (Times, error) {
	digits := f.LeadDigits
	if digits <= 0 {
		digits = 2
	}
	if len(stem) < digits {
		return Times{}, fmt.Errorf("modeprep: file name %q is too short to contain a %d-digit forecast hour", stem, digits)
	}
	hourStr := stem[len(stem)-digits:]
	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour < 0 {
		return Times{}, fmt.Errorf("modeprep: forecast hour %q in file name %q is not a number", hourStr, stem)
	}

	tv := f.TimeVariable
	if tv == "" {
		tv = "time"
	}
	v, err := ds.Var(tv)
	if err != nil {
		return Times{}, err
	}
	if len(v.Values) == 0 {
		return Times{}, fmt.Errorf("modeprep: time variable %s is empty", tv)
	}
	init, err := decodeCFTime(v.Values[0], v.AttrString("units"))
	if err != nil {
		return Times{}, fmt.Errorf("modeprep: time variable %s: %v", tv, err)
	}
	lead := time.Duration(hour) * time.Hour
	return Times{Init: init, Valid: init.Add(lead), Lead: lead}, nil
}

// ObservationTiming parses the observation time from the last Width
// characters of the file name stem using Layout. The valid time equals
// the initialization time and the lead is zero.
type ObservationTiming struct {
	Layout string
	Width  int
}

// Times implements Timing.
func (o ObservationTiming) Times(stem string, _ Dataset) (Times, error) {
	layout, width := o.Layout, o.Width
	if layout == "" {
		layout = "200601021504"
	}
	if width <= 0 {
		width = len(layout)
	}
	if len(stem) < width {
		return Times{}, fmt.Errorf("modeprep: file name %q is too short to contain a %d-character time stamp", stem, width)
	}
	stamp := stem[len(stem)-width:]
	t, err := time.ParseInLocation(layout, stamp, time.UTC)
	if err != nil {
		return Times{}, fmt.Errorf("modeprep: time stamp %q in file name %q: %v", stamp, stem, err)
	}
	return Times{Init: t, Valid: t}, nil
}

// cfUnits are the time units allowed in CF "<units> since <reference>" strings.
var cfUnits = map[string]time.Duration{
	"second": time.Second, "seconds": time.Second, "sec": time.Second, "secs": time.Second, "s": time.Second,
	"minute": time.Minute, "minutes": time.Minute, "min": time.Minute, "mins": time.Minute,
	"hour": time.Hour, "hours": time.Hour, "hr": time.Hour, "hrs": time.Hour, "h": time.Hour,
	"day": 24 * time.Hour, "days": 24 * time.Hour, "d": 24 * time.Hour,
}

var cfReferenceLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// decodeCFTime converts value, in the CF time units given by units
// (e.g. "hours since 2019-05-20 00:00:00"), to a UTC time truncated to
// whole seconds.
func decodeCFTime(value float64, units string) (time.Time, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return time.Time{}, fmt.Errorf("invalid time value %g", value)
	}
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("units %q are not in the form '<units> since <reference time>'", units)
	}
	step, ok := cfUnits[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return time.Time{}, fmt.Errorf("unsupported time unit %q", parts[0])
	}
	ref, err := parseCFReference(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	// Whole days are added separately; time.Duration overflows after
	// about 292 years.
	secs := value * step.Seconds()
	days := math.Floor(secs / secondsPerDay)
	if math.Abs(days) > maxCFDays {
		return time.Time{}, fmt.Errorf("time value %g %s is out of range", value, parts[0])
	}
	rem := time.Duration(math.Round((secs - days*secondsPerDay) * float64(time.Second)))
	return ref.AddDate(0, 0, int(days)).Add(rem).UTC().Truncate(time.Second), nil
}

const (
	secondsPerDay = 86400

	// maxCFDays is about 27,000 years.
	maxCFDays = 1e7
)

func parseCFReference(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " UTC")
	s = strings.TrimSuffix(s, "UTC")
	s = strings.TrimSpace(s)
	// Drop fractional seconds, e.g. "00:00:00.0".
	if i := strings.LastIndex(s, "."); i > strings.LastIndex(s, ":") && strings.Contains(s, ":") {
		j := i + 1
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		s = s[:i] + s[j:]
	}
	for _, layout := range cfReferenceLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse reference time %q", s)
}
