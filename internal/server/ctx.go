package server

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/choromap/assets"
	"github.com/woozymasta/choromap/internal/choropleth"
	"github.com/woozymasta/choromap/internal/config"
	"github.com/woozymasta/choromap/internal/geo"
	"github.com/woozymasta/choromap/internal/metrics"
	"github.com/woozymasta/choromap/internal/surface"
)

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config    *config.Config
	Binder    *choropleth.Binder
	Surface   *surface.Hub
	IndexHTML []byte
	Favicon   []byte

	datasets sync.Map // source id -> *cachedBody
	releases []func()
}

type cachedBody struct {
	data []byte
	etag string
}

// NewServerContext wires the binder to the surface and publishes the dataset.
// The initial paint is applied when the surface becomes ready, which happens
// once the dataset source and the paintable layer are added.
func NewServerContext(cfg *config.Config, dataset *geo.GeoJSONFeatureCollection) (*ServerContext, error) {
	log.Info().
		Int("options", len(cfg.Options)).
		Int("features", len(dataset.Features)).
		Msg("Initializing server context")

	// Coverage gaps are not fatal: the widget paints its default color.
	for _, o := range cfg.Options {
		if missing := dataset.MissingProperty(o.Property); len(missing) > 0 {
			log.Warn().
				Str("option", o.Name).
				Str("property", o.Property).
				Int("features_missing", len(missing)).
				Msg("Property missing on some features")
		}
	}

	hub := surface.NewHub()
	binder := choropleth.NewBinder(hub, cfg.LayerID, cfg.Home())
	if err := binder.Initialize(cfg.Options); err != nil {
		return nil, fmt.Errorf("initialize binder: %w", err)
	}

	s := &ServerContext{
		Config:    cfg,
		Binder:    binder,
		Surface:   hub,
		IndexHTML: assets.Index,
		Favicon:   assets.Favicon,
	}

	// seed the status readout before any widget connects
	hub.ViewportMoved(binder.ViewportState())
	hub.OptionSelected(binder.ActiveIndex(), binder.CurrentPaintBinding())

	s.releases = append(s.releases,
		binder.Observe(hub),
		binder.Observe(metricsObserver{}),
		hub.OnSelect(func(index int) {
			if err := binder.SelectOption(index); err != nil {
				log.Warn().Err(err).Int("index", index).Msg("Widget selection rejected")
			}
		}),
	)

	if err := hub.AddDataSource(cfg.SourceID, dataset); err != nil {
		s.Close()
		return nil, err
	}
	if err := hub.AddPaintableLayer(cfg.LayerID, cfg.SourceID); err != nil {
		s.Close()
		return nil, err
	}

	log.Info().
		Str("source", cfg.SourceID).
		Str("layer", cfg.LayerID).
		Bool("ready", binder.Ready()).
		Msg("Server context initialized successfully")

	return s, nil
}

// Close releases subscriptions and disconnects widgets.
func (s *ServerContext) Close() {
	for _, release := range s.releases {
		release()
	}
	s.releases = nil
	s.Binder.Close()
	s.Surface.Close()
}

// dataset returns the encoded data source and its ETag.
// The dataset is immutable, so the encoding is cached per source.
func (s *ServerContext) dataset(id string) (*cachedBody, bool) {
	if v, ok := s.datasets.Load(id); ok {
		return v.(*cachedBody), true
	}

	data, ok := s.Surface.Source(id)
	if !ok {
		return nil, false
	}

	body, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("source", id).Msg("Failed to encode data source")
		return nil, false
	}

	v, _ := s.datasets.LoadOrStore(id, &cachedBody{data: body, etag: contentETag(body)})
	return v.(*cachedBody), true
}

// contentETag returns a strong ETag derived from the FNV-1a hash and length of body.
func contentETag(body []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(body)

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendUint(buf, h.Sum64(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, int64(len(body)), 16)
	buf = append(buf, '"')
	return string(buf)
}

// metricsObserver counts display state changes.
type metricsObserver struct{}

func (metricsObserver) ViewportMoved(choropleth.ViewportState) {
	metrics.ViewportMoves.Inc()
}

func (metricsObserver) OptionSelected(_ int, b choropleth.PaintBinding) {
	metrics.OptionSelections.WithLabelValues(b.Property).Inc()
}
