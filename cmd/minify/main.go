package main

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"

	"github.com/woozymasta/choromap/internal/logger"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	Dir      string `short:"d" long:"dir"      description:"Assets directory"              default:"assets"`
	Template string `short:"t" long:"template" description:"Page template inside the dir"  default:"index.html.tpl"`
	Out      string `short:"o" long:"out"      description:"Rendered page inside the dir"  default:"index.html"`
}

// asset is a source file minified on its own. Inlined assets are handed to
// the page template under Key, the rest are rewritten in place.
type asset struct {
	Key  string
	Path string
	Mime string
}

var inlined = []asset{
	{Key: "CSS", Path: "style.css", Mime: "text/css"},
	{Key: "JS", Path: "script.js", Mime: "text/javascript"},
}

// favicon is embedded and served separately
var inPlace = []asset{
	{Path: "favicon.svg", Mime: "image/svg+xml"},
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

	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)

	page := make(map[string]string, len(inlined))
	for _, a := range inlined {
		out, err := minifyFile(m, opts.Dir, a)
		if err != nil {
			log.Fatal().Err(err).Str("path", a.Path).Msg("Failed to minify asset")
		}
		page[a.Key] = string(out)
	}

	for _, a := range inPlace {
		out, err := minifyFile(m, opts.Dir, a)
		if err != nil {
			log.Fatal().Err(err).Str("path", a.Path).Msg("Failed to minify asset")
		}
		if err := os.WriteFile(filepath.Join(opts.Dir, a.Path), out, 0644); err != nil {
			log.Fatal().Err(err).Str("path", a.Path).Msg("Failed to write asset")
		}
	}

	tmpl, err := template.ParseFiles(filepath.Join(opts.Dir, opts.Template))
	if err != nil {
		log.Fatal().Err(err).Str("path", opts.Template).Msg("Failed to parse page template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, page); err != nil {
		log.Fatal().Err(err).Msg("Failed to render page template")
	}

	final, err := m.Bytes("text/html", buf.Bytes())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to minify page")
	}

	target := filepath.Join(opts.Dir, opts.Out)
	if err := os.WriteFile(target, final, 0644); err != nil {
		log.Fatal().Err(err).Str("path", target).Msg("Failed to write page")
	}

	log.Info().
		Str("path", target).
		Int("size", len(final)).
		Int("assets", len(inlined)+len(inPlace)).
		Msg("Minify done")
}

func minifyFile(m *minify.M, dir string, a asset) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(dir, a.Path))
	if err != nil {
		return nil, err
	}
	return m.Bytes(a.Mime, raw)
}
