// Package server handles HTTP requests and middleware.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/woozymasta/choromap/internal/choropleth"
	"github.com/woozymasta/choromap/internal/legend"

	"github.com/rs/zerolog/log"
)

const (
	etagCap       = 64
	legendWidth   = 320
	legendHeight  = 16
	datasetPrefix = "/data/"
	datasetSuffix = ".geojson"
)

type optionsResponse struct {
	Options []choropleth.DisplayOption `json:"options"`
	Active  int                        `json:"active"`
}

type viewportResponse struct {
	Display choropleth.ViewportDisplay `json:"display"`
	Readout string                     `json:"readout"`
	Raw     choropleth.ViewportState   `json:"raw"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleConfig serves the map setup the widget needs before it loads.
func (s *ServerContext) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Config)
}

// HandleOptions serves the option list and the active index.
func (s *ServerContext) HandleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, optionsResponse{
		Options: s.Binder.Options(),
		Active:  s.Binder.ActiveIndex(),
	})
}

// HandlePaint serves the current paint binding.
func (s *ServerContext) HandlePaint(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Binder.CurrentPaintBinding())
}

// HandleSelect activates the option given by the index query parameter.
func (s *ServerContext) HandleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "index must be an integer"})
		return
	}

	if err := s.Binder.SelectOption(index); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, choropleth.ErrOutOfRange):
			status = http.StatusBadRequest
		case errors.Is(err, choropleth.ErrNotInitialized), errors.Is(err, choropleth.ErrClosed):
			status = http.StatusConflict
		}

		log.Warn().Err(err).Int("index", index).Msg("Selection rejected")
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, s.Binder.CurrentPaintBinding())
}

// HandleViewport serves the latest viewport readout.
func (s *ServerContext) HandleViewport(w http.ResponseWriter, r *http.Request) {
	v := s.Binder.ViewportState()
	writeJSON(w, http.StatusOK, viewportResponse{
		Display: v.Display(),
		Readout: v.String(),
		Raw:     v,
	})
}

// HandleLegend renders the active option's color ramp as WebP.
func (s *ServerContext) HandleLegend(w http.ResponseWriter, r *http.Request) {
	width, err := queryInt(r, "w", legendWidth)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	height, err := queryInt(r, "h", legendHeight)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	binding := s.Binder.CurrentPaintBinding()
	img, err := legend.Render(binding.Stops, width, height)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, legend.ErrSize) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := legend.Encode(&buf, img); err != nil {
		log.Error().Err(err).Str("property", binding.Property).Msg("Failed to encode legend")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "encode failed"})
		return
	}

	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

// HandleDataset serves a data source as GeoJSON. Path: /data/{source}.geojson
func (s *ServerContext) HandleDataset(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, datasetPrefix) || !strings.HasSuffix(r.URL.Path, datasetSuffix) {
		http.NotFound(w, r)
		return
	}

	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, datasetPrefix), datasetSuffix)
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	body, ok := s.dataset(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == body.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("ETag", body.etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(body.data)
}

// HandleFavicon serves the site icon.
func (s *ServerContext) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/favicon.svg" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Favicon)
}

// HandleIndex serves the main HTML application.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	etag := contentETag(s.IndexHTML)

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}
