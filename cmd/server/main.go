package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/choromap/internal/config"
	"github.com/woozymasta/choromap/internal/logger"
	"github.com/woozymasta/choromap/internal/metrics"
	"github.com/woozymasta/choromap/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string `short:"c" long:"config"       env:"CONFIG_FILE"    description:"Path to configuration file"   default:"config.yaml"`
	Addr        string `short:"a" long:"addr"         env:"LISTEN_ADDRESS" description:"Address to listen on"         default:"0.0.0.0"`
	Port        int    `short:"p" long:"port"         env:"LISTEN_PORT"    description:"Port to listen on"            default:"8080"`
	AccessToken string `short:"t" long:"access-token" env:"MAPBOX_TOKEN"   description:"Map widget access token"`
	NoMetrics   bool   `long:"no-metrics"             env:"NO_METRICS"     description:"Disable the /metrics endpoint"`
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

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.AccessToken != "" {
		cfg.AccessToken = opts.AccessToken
	}

	dataset, err := cfg.LoadDataset()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}

	srvCtx, err := server.NewServerContext(cfg, dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	defer srvCtx.Close()

	// Routes
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", srvCtx.HandleConfig)
	mux.HandleFunc("/api/options", srvCtx.HandleOptions)
	mux.HandleFunc("/api/paint", srvCtx.HandlePaint)
	mux.HandleFunc("/api/select", srvCtx.HandleSelect)
	mux.HandleFunc("/api/viewport", srvCtx.HandleViewport)
	mux.HandleFunc("/api/legend.webp", srvCtx.HandleLegend)
	mux.HandleFunc("/data/", srvCtx.HandleDataset)
	mux.HandleFunc("/favicon.svg", srvCtx.HandleFavicon)
	mux.Handle("/ws", srvCtx.Surface)
	if !opts.NoMetrics {
		mux.Handle("/metrics", metrics.Handler())
	}
	mux.HandleFunc("/", srvCtx.HandleIndex)

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           server.RequestLogger(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// closed once in-flight requests are drained
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srvCtx.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	log.Info().
		Str("addr", listenAddr).
		Int("options", len(cfg.Options)).
		Str("layer", cfg.LayerID).
		Msg("Web server started")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}

	<-done
	log.Info().Msg("Web server stopped")
}
