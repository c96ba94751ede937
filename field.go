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

	"github.com/ctessum/sparse"
	"github.com/gonum/floats"
)

// Field is a two-dimensional gridded field with dimensions (y, x).
type Field struct {
	*sparse.DenseArray
}

// FieldFromVariable returns the two-dimensional field held in v. Leading
// dimensions of length one (such as a single time step) are dropped.
func FieldFromVariable(v *Variable) (*Field, error) {
	shape := v.Shape
	for len(shape) > 2 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("modeprep: variable %s has shape %v; need a 2-d field", v.Name, v.Shape)
	}
	if len(v.Values) != shape[0]*shape[1] {
		return nil, fmt.Errorf("modeprep: variable %s has %d values but shape %v", v.Name, len(v.Values), v.Shape)
	}
	d := sparse.ZerosDense(shape...)
	copy(d.Elements, v.Values)
	return &Field{DenseArray: d}, nil
}

// Ny returns the number of rows.
func (f *Field) Ny() int { return f.Shape[0] }

// Nx returns the number of columns.
func (f *Field) Nx() int { return f.Shape[1] }

// FlipVertical returns a copy of f with the order of its rows reversed,
// so that the first row of the input becomes the last row of the output.
func (f *Field) FlipVertical() *Field {
	ny, nx := f.Ny(), f.Nx()
	o := sparse.ZerosDense(ny, nx)
	for j := 0; j < ny; j++ {
		copy(o.Elements[(ny-1-j)*nx:(ny-j)*nx], f.Elements[j*nx:(j+1)*nx])
	}
	return &Field{DenseArray: o}
}

// Stats summarizes the values in a field.
type Stats struct {
	// Count is the total number of grid cells and Missing is the number
	// that are NaN or infinite.
	Count, Missing int

	// Min, Max and Mean are calculated from the non-missing values.
	// They are NaN if all values are missing.
	Min, Max, Mean float64
}

// Stats calculates summary statistics for f.
func (f *Field) Stats() Stats {
	valid := make([]float64, 0, len(f.Elements))
	for _, v := range f.Elements {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			valid = append(valid, v)
		}
	}
	s := Stats{
		Count:   len(f.Elements),
		Missing: len(f.Elements) - len(valid),
	}
	if len(valid) == 0 {
		s.Min, s.Max, s.Mean = math.NaN(), math.NaN(), math.NaN()
		return s
	}
	s.Min = floats.Min(valid)
	s.Max = floats.Max(valid)
	s.Mean = floats.Sum(valid) / float64(len(valid))
	return s
}
