package dataset

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "citypee/pkg/errors"
	"citypee/pkg/logger"
)

const sampleCollection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "node/1", "geometry": {"type": "Point", "coordinates": [-0.1246, 51.5007]}, "properties": {"name": "Westminster"}},
    {"type": "Feature", "id": 42, "geometry": {"type": "Point", "coordinates": [-0.1239, 51.5308]}, "properties": {}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-0.0877, 51.5045]}, "properties": {"id": "lb-1"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-0.0759, 51.5081]}},
    {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [10, 95]}},
    {"type": "Feature", "geometry": null}
  ]
}`

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toilets.geojson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseGeoJSON(t *testing.T) {
	toilets, err := ParseGeoJSON([]byte(sampleCollection))
	require.NoError(t, err)
	require.Len(t, toilets, 4)

	assert.Equal(t, "node/1", toilets[0].ID)
	assert.Equal(t, "Westminster", toilets[0].Name)
	assert.Equal(t, 51.5007, toilets[0].Lat)
	assert.Equal(t, -0.1246, toilets[0].Lng)
	assert.Equal(t, "dataset", toilets[0].Source)

	assert.Equal(t, "42", toilets[1].ID)
	assert.Equal(t, "lb-1", toilets[2].ID)
	assert.Equal(t, "feature-3", toilets[3].ID)
}

func TestParseGeoJSON_Rejects(t *testing.T) {
	_, err := ParseGeoJSON([]byte(`{"type":"Feature"}`))
	assert.Error(t, err)

	_, err = ParseGeoJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseGeoJSON_SkipsOutOfRangePoints(t *testing.T) {
	data := `{"type": "FeatureCollection", "features": [
	  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [181, 10]}},
	  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-180.5, 10]}},
	  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [0, -90.01]}},
	  {"type": "Feature", "id": "edge", "geometry": {"type": "Point", "coordinates": [180, -90]}}
	]}`

	toilets, err := ParseGeoJSON([]byte(data))
	require.NoError(t, err)
	require.Len(t, toilets, 1)
	assert.Equal(t, "edge", toilets[0].ID)
}

func TestFileProvider_CachesUntilTTL(t *testing.T) {
	path := writeDataset(t, sampleCollection)
	p := NewFileProvider(path, time.Minute, logger.NewNop())

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	toilets, err := p.Toilets(context.Background())
	require.NoError(t, err)
	assert.Len(t, toilets, 4)

	// replace the file; cached copy is still served inside the TTL
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[]}`), 0o644))
	toilets, err = p.Toilets(context.Background())
	require.NoError(t, err)
	assert.Len(t, toilets, 4)

	now = now.Add(2 * time.Minute)
	toilets, err = p.Toilets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, toilets)

	status := p.Status()
	assert.True(t, status.Loaded)
	assert.Equal(t, 0, status.Count)
	assert.Equal(t, now, status.LoadedAt)
}

func TestFileProvider_ServesStaleCopyOnReloadFailure(t *testing.T) {
	path := writeDataset(t, sampleCollection)
	p := NewFileProvider(path, time.Minute, logger.NewNop())

	_, err := p.Toilets(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	p.Invalidate()

	toilets, err := p.Toilets(context.Background())
	require.NoError(t, err)
	assert.Len(t, toilets, 4)
}

func TestFileProvider_MissingFile(t *testing.T) {
	p := NewFileProvider(filepath.Join(t.TempDir(), "missing.geojson"), time.Minute, logger.NewNop())

	toilets, err := p.Toilets(context.Background())
	assert.Nil(t, toilets)
	require.Error(t, err)

	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeDataSourceUnavailable, appErr.Code)
	assert.False(t, p.Status().Loaded)
}

func TestFileProvider_ConcurrentLoads(t *testing.T) {
	path := writeDataset(t, sampleCollection)
	p := NewFileProvider(path, time.Minute, logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			toilets, err := p.Toilets(context.Background())
			assert.NoError(t, err)
			assert.Len(t, toilets, 4)
		}()
	}
	wg.Wait()
}
