// Package config handles configuration loading and shared data structures.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/woozymasta/choromap/internal/choropleth"
	"github.com/woozymasta/choromap/internal/geo"
	"github.com/woozymasta/choromap/internal/legend"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when a field is omitted.
const (
	DefaultStyle      = "mapbox://styles/mapbox/satellite-streets-v11"
	DefaultSourceID   = "countries"
	DefaultLayerID    = "countries"
	DefaultLabelLayer = "country-label"
	DefaultLongitude  = 138
	DefaultLatitude   = 38
	DefaultZoom       = 4
)

// Config represents the root configuration file structure.
type Config struct {
	// defining GeoJSON directly in config.yaml
	DatasetInline *geo.GeoJSONFeatureCollection `yaml:"dataset_geojson,omitempty" json:"-"`

	Viewport    *Viewport                  `yaml:"viewport,omitempty" json:"viewport"`
	Attribution string                     `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	Style       string                     `yaml:"style,omitempty" json:"style"`
	AccessToken string                     `yaml:"access_token,omitempty" json:"access_token,omitempty"`
	Dataset     string                     `yaml:"dataset,omitempty" json:"-"`
	SourceID    string                     `yaml:"source_id,omitempty" json:"source_id"`
	LayerID     string                     `yaml:"layer_id,omitempty" json:"layer_id"`
	LabelLayer  string                     `yaml:"label_layer,omitempty" json:"label_layer,omitempty"`
	Options     []choropleth.DisplayOption `yaml:"options" json:"options"`
}

// Viewport is the initial map view.
type Viewport struct {
	Longitude float64 `yaml:"longitude" json:"longitude"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Zoom      float64 `yaml:"zoom" json:"zoom"`
}

// Home returns the initial viewport state.
func (c *Config) Home() choropleth.ViewportState {
	if c.Viewport == nil {
		return choropleth.ViewportState{Longitude: DefaultLongitude, Latitude: DefaultLatitude, Zoom: DefaultZoom}
	}
	return choropleth.ViewportState{
		Longitude: c.Viewport.Longitude,
		Latitude:  c.Viewport.Latitude,
		Zoom:      c.Viewport.Zoom,
	}
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates options.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Style == "" {
		c.Style = DefaultStyle
	}
	if c.SourceID == "" {
		c.SourceID = DefaultSourceID
	}
	if c.LayerID == "" {
		c.LayerID = DefaultLayerID
	}
	if c.LabelLayer == "" {
		c.LabelLayer = DefaultLabelLayer
	}
	if c.Viewport == nil {
		c.Viewport = &Viewport{Longitude: DefaultLongitude, Latitude: DefaultLatitude, Zoom: DefaultZoom}
	}
}

// Validate checks the option set and dataset location.
func (c *Config) Validate() error {
	if len(c.Options) == 0 {
		return errors.New("config: at least one option is required")
	}

	for i, o := range c.Options {
		if o.Name == "" {
			return fmt.Errorf("config: option %d has no name", i)
		}
		if o.Property == "" {
			return fmt.Errorf("config: option %q has no property", o.Name)
		}
		if err := o.Stops.Validate(); err != nil {
			return fmt.Errorf("config: option %q: %w", o.Name, err)
		}
		for j, st := range o.Stops {
			if _, err := legend.ParseColor(st.Color); err != nil {
				return fmt.Errorf("config: option %q stop %d: %w", o.Name, j, err)
			}
		}
	}

	if c.Dataset == "" && c.DatasetInline == nil {
		return errors.New("config: dataset or dataset_geojson is required")
	}

	return nil
}

// LoadDataset returns the configured feature collection.
// Inline data takes priority over the dataset path.
func (c *Config) LoadDataset() (*geo.GeoJSONFeatureCollection, error) {
	if c.DatasetInline != nil {
		return c.DatasetInline, nil
	}

	fc, err := geo.LoadFeatureCollection(c.Dataset)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", c.Dataset, err)
	}

	return fc, nil
}
