// Package geo handles the static GeoJSON dataset the choropleth is drawn from.
package geo

// GeoJSONFeatureCollection represents a collection of geographic features.
// It follows the standard GeoJSON structure.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type" yaml:"type"`
	Features []GeoJSONFeature `json:"features" yaml:"features"`
}

// GeoJSONFeature represents a single geographic feature with geometry and properties.
// Geometry is passed through untouched.
type GeoJSONFeature struct {
	Properties map[string]interface{} `json:"properties" yaml:"properties"`
	Geometry   interface{}            `json:"geometry" yaml:"geometry"`
	Type       string                 `json:"type" yaml:"type"`
}

// Number returns a numeric property of the feature.
// It reports false when the property is missing or not a number.
func (f GeoJSONFeature) Number(name string) (float64, bool) {
	v, ok := f.Properties[name]
	if !ok {
		return 0, false
	}

	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Label returns a human name for the feature, checking common country keys.
func (f GeoJSONFeature) Label() string {
	for _, key := range []string{"name_en", "name", "admin", "iso_a3"} {
		if s, ok := f.Properties[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
