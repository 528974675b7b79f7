// Package classify evaluates a display option against the dataset features.
package classify

import (
	"github.com/woozymasta/choromap/internal/choropleth"
	"github.com/woozymasta/choromap/internal/geo"
)

// Result is the color a feature is painted with.
type Result struct {
	Value   *float64 `json:"value" yaml:"value"`
	Name    string   `json:"name" yaml:"name"`
	Color   string   `json:"color,omitempty" yaml:"color,omitempty"`
	Index   int      `json:"index" yaml:"index"`
	Missing bool     `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// Summary counts features per color.
type Summary struct {
	Property string         `json:"property" yaml:"property"`
	Counts   map[string]int `json:"counts" yaml:"counts"`
	Missing  int            `json:"missing" yaml:"missing"`
	Total    int            `json:"total" yaml:"total"`
}

// Features colors every feature with the option's stops.
// Features without a numeric value get no color, like the widget's default.
func Features(fc *geo.GeoJSONFeatureCollection, o choropleth.DisplayOption) []Result {
	out := make([]Result, 0, len(fc.Features))
	for i, f := range fc.Features {
		r := Result{Index: i, Name: f.Label()}

		v, ok := f.Number(o.Property)
		if !ok {
			r.Missing = true
			out = append(out, r)
			continue
		}

		r.Value = &v
		r.Color = o.Stops.ColorAt(v)
		out = append(out, r)
	}

	return out
}

// Summarize counts results per color.
func Summarize(property string, results []Result) Summary {
	s := Summary{Property: property, Counts: make(map[string]int), Total: len(results)}
	for _, r := range results {
		if r.Missing {
			s.Missing++
			continue
		}
		s.Counts[r.Color]++
	}
	return s
}
