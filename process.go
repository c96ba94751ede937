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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Product describes a gridded field to extract from a set of files.
type Product struct {
	// Name is the catalog key of the product.
	Name string

	// Variable is the name of the netCDF variable to read.
	Variable string

	// Extension is the file name extension of the files to process,
	// including the leading dot. Files with other extensions are skipped.
	// If Extension is empty, all files are processed.
	Extension string

	// Grid is the grid the field lies on.
	Grid *Grid

	// FieldName, LongName, Level, Units and Accum are passed to MET
	// as the name, long_name, level, units and accum attributes.
	FieldName, LongName, Level, Units, Accum string

	// Extra holds additional field-level attributes.
	Extra map[string]interface{}

	// Timing derives the times of each field.
	Timing Timing
}

// Matches returns whether the file at path should be processed.
func (p *Product) Matches(path string) bool {
	return p.Extension == "" || strings.HasSuffix(path, p.Extension)
}

// stem returns the file name of path without directories or the
// product extension.
func (p *Product) stem(path string) string {
	base := filepath.Base(path)
	if p.Extension != "" {
		return strings.TrimSuffix(base, p.Extension)
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Result holds the outcome of processing one file.
type Result struct {
	Path string

	// Field holds the extracted data, flipped vertically so that the
	// first row is the northernmost.
	Field *Field

	Attrs *Attributes
	Stats Stats

	// Err is non-nil if the file could not be processed, in which case
	// Field and Attrs are nil.
	Err error
}

// Processor extracts a product from files.
type Processor struct {
	Product *Product

	// Log receives progress messages. If nil, the standard logrus
	// logger is used.
	Log logrus.FieldLogger
}

func (p *Processor) log() logrus.FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}

// Process processes each file in paths that matches the product extension
// and returns one result per matching file, in order. A failure to process
// one file is recorded in its Result and does not stop processing of the
// other files. Processing stops early if ctx is cancelled, in which case
// the results so far are returned along with the context error.
func (p *Processor) Process(ctx context.Context, paths []string) ([]*Result, error) {
	var results []*Result
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		log := p.log().WithFields(logrus.Fields{"path": path, "product": p.Product.Name})
		log.Info("trying file")
		if !p.Product.Matches(path) {
			log.Debugf("skipping file without extension %s", p.Product.Extension)
			continue
		}
		r := p.ProcessFile(path)
		if r.Err != nil {
			log.WithError(r.Err).Error("processing failed")
		} else {
			log.WithFields(logrus.Fields{
				"valid":   r.Attrs.Valid(),
				"init":    r.Attrs.Init(),
				"lead":    r.Attrs.Lead(),
				"min":     r.Stats.Min,
				"max":     r.Stats.Max,
				"missing": r.Stats.Missing,
			}).Info("processed file")
		}
		results = append(results, r)
	}
	return results, nil
}

// ProcessFile extracts the product from the file at path.
func (p *Processor) ProcessFile(path string) *Result {
	r := &Result{Path: path}
	field, attrs, err := p.extract(path)
	if err != nil {
		r.Err = err
		return r
	}
	r.Field, r.Attrs, r.Stats = field, attrs, field.Stats()
	return r
}

func (p *Processor) extract(path string) (*Field, *Attributes, error) {
	prod := p.Product
	ds, err := OpenDataset(path)
	if err != nil {
		return nil, nil, err
	}
	defer ds.Close()

	v, err := ds.Var(prod.Variable)
	if err != nil {
		return nil, nil, err
	}
	field, err := FieldFromVariable(v)
	if err != nil {
		return nil, nil, fmt.Errorf("%v (in %s)", err, path)
	}
	if prod.Grid != nil {
		ny, nx := prod.Grid.Shape()
		if field.Ny() != ny || field.Nx() != nx {
			return nil, nil, fmt.Errorf("modeprep: %s: field %s is %dx%d but grid %s is %dx%d",
				path, prod.Variable, field.Ny(), field.Nx(), prod.Grid.Name, ny, nx)
		}
	}

	times, err := prod.Timing.Times(prod.stem(path), ds)
	if err != nil {
		return nil, nil, fmt.Errorf("%v (in %s)", err, path)
	}

	units := prod.Units
	if units == "" {
		units = v.AttrString("units")
	}
	longName := prod.LongName
	if longName == "" {
		longName = v.AttrString("long_name")
	}
	attrs := &Attributes{
		Times:    times,
		Accum:    prod.Accum,
		Name:     prod.FieldName,
		LongName: longName,
		Level:    prod.Level,
		Units:    units,
		Extra:    prod.Extra,
		Grid:     prod.Grid,
	}
	return field.FlipVertical(), attrs, nil
}

// Failed returns the results that have errors.
func Failed(results []*Result) []*Result {
	var o []*Result
	for _, r := range results {
		if r.Err != nil {
			o = append(o, r)
		}
	}
	return o
}
