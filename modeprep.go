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

// Package modeprep reshapes gridded reflectivity fields from numerical weather
// prediction and radar mosaic netCDF files into the data and attribute layout
// read by the Model Evaluation Tools (MET) python embedding.
//
// A Product describes which variable to read from which files, which grid the
// data lie on, and how the initialization and valid times are derived. Products
// and grids are described in a TOML catalog; see DefaultCatalog.
package modeprep

// Version gives the version number.
const Version = "1.0.0"
