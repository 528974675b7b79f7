package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "Japan", "pop_est": 126264931, "gdp_md_est": 5082465},
     "geometry": {"type": "Polygon", "coordinates": [[[129,31],[146,31],[146,45],[129,45],[129,31]]]}},
    {"type": "Feature", "properties": {"name_en": "Nowhere", "pop_est": "n/a"},
     "geometry": null}
  ]
}`

func TestLoadFeatureCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "countries.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	fc, err := LoadFeatureCollection(path)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	pop, ok := fc.Features[0].Number("pop_est")
	assert.True(t, ok)
	assert.Equal(t, 126264931.0, pop)
	assert.Equal(t, "Japan", fc.Features[0].Label())
	assert.Equal(t, "Nowhere", fc.Features[1].Label())

	assert.Equal(t, []int{1}, fc.MissingProperty("pop_est"))
	assert.Equal(t, []int{1}, fc.MissingProperty("gdp_md_est"))
	assert.Equal(t, []int{0, 1}, fc.MissingProperty("area"))
}

func TestParseFeatureCollectionErrors(t *testing.T) {
	_, err := ParseFeatureCollection([]byte(`{"type":"Feature"}`))
	assert.Error(t, err)

	_, err = ParseFeatureCollection([]byte(`not json`))
	assert.Error(t, err)

	_, err = LoadFeatureCollection(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
