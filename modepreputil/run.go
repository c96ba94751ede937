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

package modepreputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/modeprep"
	"github.com/spf13/cobra"
)

// Run extracts the named product of catalog from each of the files in
// paths and writes the results to output, which is either "-" for
// standard output or a directory or blob storage location.
// format is the attribute encoding, and netCDF specifies whether fields
// are also written (ignored for standard output). A file that cannot be
// downloaded or processed is reported in the output like any other
// failure and does not stop the others. Run returns an error if any of
// the files failed.
func Run(cmd *cobra.Command, catalog *modeprep.Catalog, productName string, paths []string, output, format string, netCDF bool) error {
	ctx := context.Background()
	product, err := catalog.Product(productName)
	if err != nil {
		return err
	}
	if err = modeprep.CheckFormat(format); err != nil {
		return err
	}
	log := Log.WithField("product", product.Name)

	var sink modeprep.Sink
	if output == "-" {
		if netCDF {
			log.Warn("writing to standard output; netcdf option ignored")
		}
		sink = &modeprep.StreamSink{W: cmd.OutOrStdout(), Format: format}
	} else {
		sink, err = modeprep.NewBucketSink(ctx, output, format, netCDF, log)
		if err != nil {
			return err
		}
	}

	dir, err := ioutil.TempDir("", "modeprep")
	if err != nil {
		return fmt.Errorf("modeprep: creating temporary download directory: %v", err)
	}
	defer os.RemoveAll(dir)

	proc := &modeprep.Processor{Product: product, Log: Log}
	var results []*modeprep.Result
	for i, p := range paths {
		if !product.Matches(inputName(p)) {
			log.WithField("path", p).Debugf("skipping file without extension %s", product.Extension)
			continue
		}
		// Each input gets its own download directory so that remote
		// files with the same base name do not overwrite each other.
		local, err := maybeDownload(ctx, p, filepath.Join(dir, strconv.Itoa(i)))
		if err != nil {
			log.WithField("path", p).WithError(err).Error("download failed")
			r := &modeprep.Result{Path: p, Err: err}
			results = append(results, r)
			if err := sink.Put(ctx, r); err != nil {
				return err
			}
			continue
		}
		rs, err := proc.Process(ctx, []string{local})
		if err != nil {
			return err
		}
		for _, r := range rs {
			if local != p {
				r.Path = p
				if r.Err != nil {
					r.Err = errors.New(strings.Replace(r.Err.Error(), local, p, -1))
				}
			}
			results = append(results, r)
			if err := sink.Put(ctx, r); err != nil {
				return err
			}
		}
		if local != p {
			os.Remove(local)
		}
	}
	if err := sink.Close(); err != nil {
		return err
	}

	failed := modeprep.Failed(results)
	log.WithFields(logrus.Fields{
		"files":     len(paths),
		"processed": len(results) - len(failed),
		"failed":    len(failed),
		"skipped":   len(paths) - len(results),
	}).Info("finished")
	if len(results) == 0 {
		log.Warnf("no files with extension %s were found", product.Extension)
	}
	if len(failed) > 0 {
		return fmt.Errorf("modeprep: %d of %d files could not be processed; the first error was: %v",
			len(failed), len(results), failed[0].Err)
	}
	return nil
}

// PrintCatalog writes a description of the grids and products in c to w.
func PrintCatalog(w io.Writer, c *modeprep.Catalog) {
	fmt.Fprintln(w, "Grids:")
	for _, n := range c.GridNames() {
		fmt.Fprintf(w, "  %v\n", c.Grids[n])
	}
	fmt.Fprintln(w, "Products:")
	for _, n := range c.ProductNames() {
		p := c.Products[n]
		fmt.Fprintf(w, "  %s: variable %s in *%s files on grid %s (%s, %s)\n",
			n, p.Variable, p.Extension, p.Grid.Name, p.FieldName, p.Units)
	}
}

// Inspect writes a description of the variables and attributes of the
// netCDF file at path to w.
func Inspect(w io.Writer, path string) error {
	ds, err := modeprep.OpenDataset(path)
	if err != nil {
		return err
	}
	defer ds.Close()
	return modeprep.DescribeDataset(w, ds)
}
