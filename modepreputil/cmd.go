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
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/modeprep"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to modeprep.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "catalog",
			usage: `
              catalog specifies the location of a TOML file describing the
              available grids and products. If empty, the built-in catalog
              with the "hrrr" and "mrms" products is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "log-level",
			usage: `
              log-level specifies the minimum level of log messages to
              print. Valid options are debug, info, warning and error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "product",
			usage: `
              product specifies the name of the catalog product to extract
              from the input files.`,
			shorthand:  "p",
			defaultVal: "hrrr",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output specifies where to write the results. If it is "-",
              one attribute record per input file is written to standard
              output. Otherwise it is a local directory or a 'file://',
              'gs://' or 's3://' URL where attribute files (and netCDF
              files if --netcdf is set) are written.`,
			shorthand:  "o",
			defaultVal: "-",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "format",
			usage: `
              format specifies the encoding of attribute records. Valid
              options are json and yaml.`,
			shorthand:  "f",
			defaultVal: modeprep.FormatJSON,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "netcdf",
			usage: `
              netcdf specifies whether to also write each extracted field,
              flipped north-up, to a netCDF file in the output location.
              It is ignored when writing to standard output.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("MODEPREP")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	Root.AddCommand(versionCmd, runCmd, gridsCmd, inspectCmd)
}

// setConfig reads the configuration file, if any, and sets up logging.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("modeprep: problem reading configuration file: %v", err)
		}
	}
	lvl, err := logrus.ParseLevel(Cfg.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("modeprep: %v", err)
	}
	Log.SetLevel(lvl)
	return nil
}

// Log receives log messages from all commands. It writes to standard error.
var Log = func() *logrus.Logger {
	l := logrus.New()
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	return l
}()

// Root is the main command.
var Root = &cobra.Command{
	Use:   "modeprep",
	Short: "Prepare gridded reflectivity fields for MET.",
	Long: `modeprep reads gridded radar reflectivity from forecast (HRRR) and
observation (MRMS) netCDF files and prepares each field, together with the
time, grid and field attributes the Model Evaluation Tools (MET) need to
interpret it, for object-based verification with MODE.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'MODEPREP_var' where 'var' is
the name of the variable to be set, with dashes replaced by underscores.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of modeprep.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("modeprep v%s\n", modeprep.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run [files...]",
	Short: "Extract a product from files.",
	Long: `run extracts the product specified by --product from each of the given
files and writes the field attributes (and optionally the fields) to the
location specified by --output. Files that do not have the product's extension
are skipped. Inputs may also be 'http://', 'https://', 'gs://' or 's3://' URLs,
which are downloaded before processing. The command fails if any file could not
be processed, after all files have been tried.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := modeprep.LoadCatalog(Cfg.GetString("catalog"))
		if err != nil {
			return err
		}
		return Run(cmd, catalog, Cfg.GetString("product"), args,
			Cfg.GetString("output"), Cfg.GetString("format"), Cfg.GetBool("netcdf"))
	},
	DisableAutoGenTag: true,
}

var gridsCmd = &cobra.Command{
	Use:   "grids",
	Short: "List the catalog grids and products.",
	Long: `grids prints the grids and products in the catalog specified by
--catalog, or in the built-in catalog if --catalog is not set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := modeprep.LoadCatalog(Cfg.GetString("catalog"))
		if err != nil {
			return err
		}
		PrintCatalog(cmd.OutOrStdout(), catalog)
		return nil
	},
	DisableAutoGenTag: true,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect file",
	Short: "Describe the contents of a netCDF file.",
	Long: `inspect prints the variables of a netCDF file, along with their
dimensions and attributes, and the global attributes of the file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return Inspect(cmd.OutOrStdout(), args[0])
	},
	DisableAutoGenTag: true,
}
