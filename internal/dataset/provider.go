// Package dataset loads the existing toilet dataset from a GeoJSON
// FeatureCollection and keeps it cached in memory.
package dataset

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"citypee/internal/domain"
	"citypee/internal/geo"
	apperrors "citypee/pkg/errors"
	"citypee/pkg/logger"
)

// DefaultTTL is how long a loaded dataset is served before it is re-read.
const DefaultTTL = 5 * time.Minute

// Provider supplies the current set of known toilets.
type Provider interface {
	Toilets(ctx context.Context) ([]domain.Toilet, error)
}

// Status describes the cached dataset for health reporting.
type Status struct {
	Path     string    `json:"path"`
	Loaded   bool      `json:"loaded"`
	Count    int       `json:"count"`
	LoadedAt time.Time `json:"loadedAt,omitempty"`
}

// FileProvider reads a GeoJSON file and caches the parsed toilets for ttl.
// Concurrent reloads are coalesced into a single read.
type FileProvider struct {
	path   string
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	toilets  []domain.Toilet
	loadedAt time.Time
}

// NewFileProvider creates a provider for the GeoJSON file at path.
func NewFileProvider(path string, ttl time.Duration, log *logger.Logger) *FileProvider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FileProvider{
		path:   path,
		ttl:    ttl,
		logger: log.Component("dataset"),
		now:    time.Now,
	}
}

// Toilets returns the cached dataset, reloading it when stale. If a reload
// fails but an older copy is cached, the older copy is returned.
func (p *FileProvider) Toilets(ctx context.Context) ([]domain.Toilet, error) {
	if toilets, ok := p.fresh(); ok {
		return toilets, nil
	}

	ch := p.group.DoChan("load", func() (interface{}, error) {
		return p.reload()
	})

	select {
	case <-ctx.Done():
		return nil, apperrors.NewDataSourceError("toilet dataset load cancelled", ctx.Err())
	case res := <-ch:
		if res.Err == nil {
			return res.Val.([]domain.Toilet), nil
		}
		p.mu.RLock()
		stale := p.toilets
		p.mu.RUnlock()
		if stale != nil {
			p.logger.WithError(res.Err).Warn("Failed to reload toilet dataset, serving cached copy")
			return stale, nil
		}
		return nil, apperrors.NewDataSourceError("toilet dataset unavailable", res.Err)
	}
}

// Status reports what is currently cached without triggering a load.
func (p *FileProvider) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Status{
		Path:     p.path,
		Loaded:   p.toilets != nil,
		Count:    len(p.toilets),
		LoadedAt: p.loadedAt,
	}
}

// Invalidate forces the next call to Toilets to re-read the file.
func (p *FileProvider) Invalidate() {
	p.mu.Lock()
	p.loadedAt = time.Time{}
	p.mu.Unlock()
}

func (p *FileProvider) fresh() ([]domain.Toilet, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.toilets == nil || p.now().Sub(p.loadedAt) >= p.ttl {
		return nil, false
	}
	return p.toilets, true
}

func (p *FileProvider) reload() ([]domain.Toilet, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", p.path, err)
	}
	toilets, err := ParseGeoJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.toilets = toilets
	p.loadedAt = p.now()
	p.mu.Unlock()

	p.logger.WithFields(map[string]interface{}{
		"path":    p.path,
		"toilets": len(toilets),
	}).Info("Loaded toilet dataset")

	return toilets, nil
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	ID         interface{}            `json:"id"`
	Geometry   *geometry              `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// point decodes the position of a Point geometry.
func (g *geometry) point() (lat, lng float64, ok bool) {
	if g == nil || g.Type != "Point" {
		return 0, 0, false
	}
	var pos []float64
	if err := json.Unmarshal(g.Coordinates, &pos); err != nil || len(pos) < 2 {
		return 0, 0, false
	}
	// GeoJSON positions are [longitude, latitude]
	return pos[1], pos[0], true
}

// ParseGeoJSON extracts Point features from a FeatureCollection. Features
// with other geometries or invalid coordinates are skipped.
func ParseGeoJSON(data []byte) ([]domain.Toilet, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected FeatureCollection, got %q", fc.Type)
	}

	toilets := make([]domain.Toilet, 0, len(fc.Features))
	for i, f := range fc.Features {
		lat, lng, ok := f.Geometry.point()
		if !ok || !geo.ValidCoordinate(lat, lng) {
			continue
		}

		name, _ := f.Properties["name"].(string)
		toilets = append(toilets, domain.Toilet{
			ID:     featureID(f, i),
			Name:   name,
			Lat:    lat,
			Lng:    lng,
			Source: "dataset",
		})
	}
	return toilets, nil
}

func featureID(f feature, index int) string {
	if id := idString(f.Properties["id"]); id != "" {
		return id
	}
	if id := idString(f.ID); id != "" {
		return id
	}
	return "feature-" + strconv.Itoa(index)
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return ""
}
