package geo

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFeatureCollection reads a GeoJSON feature collection from path.
func LoadFeatureCollection(path string) (*GeoJSONFeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseFeatureCollection(data)
}

// ParseFeatureCollection decodes a GeoJSON feature collection.
// Geometry is not validated.
func ParseFeatureCollection(data []byte) (*GeoJSONFeatureCollection, error) {
	var fc GeoJSONFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode geojson: type %q is not FeatureCollection", fc.Type)
	}

	return &fc, nil
}

// MissingProperty returns indexes of features without a numeric value for name.
func (fc *GeoJSONFeatureCollection) MissingProperty(name string) []int {
	var missing []int
	for i, f := range fc.Features {
		if _, ok := f.Number(name); !ok {
			missing = append(missing, i)
		}
	}
	return missing
}
