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

// Command modeprep prepares gridded reflectivity fields and their attributes
// for the MET verification tools.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/modeprep/modepreputil"
)

func main() {
	if err := modepreputil.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
