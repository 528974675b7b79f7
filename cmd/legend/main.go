package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/woozymasta/choromap/internal/choropleth"
	"github.com/woozymasta/choromap/internal/config"
	"github.com/woozymasta/choromap/internal/legend"
	"github.com/woozymasta/choromap/internal/logger"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string   `short:"c" long:"config"      env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	OutDir      string   `short:"o" long:"out"         env:"LEGEND_DIR"  description:"Output directory"          default:"legends"`
	Limit       []string `short:"n" long:"limit"       env:"LIMIT_NAMES" description:"Limit rendering to specific option names"`
	Width       int      `short:"W" long:"width"                         description:"Strip width in pixels"     default:"320"`
	Height      int      `short:"H" long:"height"                        description:"Strip height in pixels"    default:"16"`
	Concurrency int      `short:"p" long:"concurrency" env:"CONCURRENCY" description:"Concurrency"               default:"4"`
	Force       bool     `short:"F" long:"force"                         description:"Force overwrite of existing files"`
}

type job struct {
	Option choropleth.DisplayOption
	Path   string
}

// entry is an option with its position in the configuration.
type entry struct {
	Index  int
	Option choropleth.DisplayOption
}

var unsafeName = regexp.MustCompile(`[^a-z0-9]+`)

// fileName is unique per configured option: several options may share a
// property with different ramps.
func fileName(index int, o choropleth.DisplayOption) string {
	slug := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(o.Name), "_"), "_")
	if slug == "" {
		slug = "option"
	}
	return fmt.Sprintf("%02d-%s.webp", index, slug)
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

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	// Filter options if limit is set
	toRender := make([]entry, 0, len(cfg.Options))
	for i, o := range cfg.Options {
		toRender = append(toRender, entry{Index: i, Option: o})
	}
	if len(opts.Limit) > 0 {
		all := toRender
		toRender = make([]entry, 0)
		available := make(map[string]entry)
		for _, e := range all {
			available[e.Option.Name] = e
		}

		seen := make(map[string]bool)

		for _, name := range opts.Limit {
			if seen[name] {
				continue
			}
			seen[name] = true

			if e, ok := available[name]; ok {
				toRender = append(toRender, e)
			} else {
				log.Error().
					Str("name", name).
					Msg("Option specified in --limit not found in configuration")
			}
		}
	}

	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		log.Fatal().Err(err).Str("dir", opts.OutDir).Msg("Failed to create output directory")
	}

	log.Info().
		Int("options_total", len(cfg.Options)).
		Int("options_queued", len(toRender)).
		Str("dir", opts.OutDir).
		Msg("Starting legend rendering")

	jobs := make(chan job, len(toRender))
	for _, e := range toRender {
		jobs <- job{Option: e.Option, Path: filepath.Join(opts.OutDir, fileName(e.Index, e.Option))}
	}
	close(jobs)

	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := renderLegend(j, opts.Width, opts.Height, opts.Force); err != nil {
					log.Error().Err(err).Str("option", j.Option.Name).Msg("Failed to render legend")
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if failed > 0 {
		log.Fatal().Int("failed", failed).Msg("Legend rendering finished with errors")
	}

	log.Info().Msg("Legend rendering finished successfully")
}

func renderLegend(j job, width, height int, force bool) error {
	// Check existence if not forcing overwrite
	if !force {
		if info, err := os.Stat(j.Path); err == nil && info.Size() > 0 {
			log.Debug().Str("path", j.Path).Msg("Legend exists, skipping")
			return nil
		}
	}

	img, err := legend.Render(j.Option.Stops, width, height)
	if err != nil {
		return err
	}

	f, err := os.Create(j.Path)
	if err != nil {
		return err
	}

	if err := legend.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}

	log.Info().
		Str("option", j.Option.Name).
		Str("path", j.Path).
		Msg("Legend written")

	// We care about write errors on close
	return f.Close()
}
