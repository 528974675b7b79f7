package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/woozymasta/choromap/internal/classify"
	"github.com/woozymasta/choromap/internal/config"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

type Options struct {
	ConfigFile string `short:"c" long:"config" env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	Output     string `short:"o" long:"out" description:"Output file path. Writes to stdout if empty"`
	Format     string `short:"f" long:"format" description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Option     string `short:"n" long:"option" description:"Option name to classify. All options if empty"`
	Summary    bool   `short:"s" long:"summary" description:"Print per-color counts instead of features"`
}

type report struct {
	Option   string            `json:"option" yaml:"option"`
	Property string            `json:"property" yaml:"property"`
	Features []classify.Result `json:"features,omitempty" yaml:"features,omitempty"`
	Summary  *classify.Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	fc, err := cfg.LoadDataset()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading dataset: %v\n", err)
		os.Exit(1)
	}

	reports := make([]report, 0, len(cfg.Options))
	for _, o := range cfg.Options {
		if opts.Option != "" && o.Name != opts.Option {
			continue
		}

		results := classify.Features(fc, o)
		r := report{Option: o.Name, Property: o.Property}
		if opts.Summary {
			sum := classify.Summarize(o.Property, results)
			r.Summary = &sum
		} else {
			r.Features = results
		}

		if missing := fc.MissingProperty(o.Property); len(missing) > 0 {
			fmt.Fprintf(os.Stderr, "Warning: %d of %d features have no %q\n", len(missing), len(fc.Features), o.Property)
		}

		reports = append(reports, r)
	}

	if len(reports) == 0 {
		fmt.Fprintf(os.Stderr, "Error: option %q not found in configuration\n", opts.Option)
		os.Exit(1)
	}

	// marshal
	var outputData []byte
	if opts.Format == "yaml" {
		outputData, err = yaml.Marshal(reports)
	} else {
		outputData, err = json.MarshalIndent(reports, "", "  ")
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		err = os.WriteFile(opts.Output, outputData, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Successfully classified %d features for %d options to %s (format: %s)\n",
			len(fc.Features), len(reports), opts.Output, opts.Format)
	} else {
		fmt.Println(string(outputData))
	}
}
