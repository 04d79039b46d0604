// Package geomops wraps the geometry engine behind collection-level
// transforms: validity repair, simplification, boundary clipping and
// metric area/length fields. All transforms return new collections.
package geomops

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-geos"
)

// Coordinate reference systems the pipeline traffics in.
const (
	CRSWGS84       = "EPSG:4326"
	CRSWebMercator = "EPSG:3857"
)

// ToGeos converts an orb geometry into a GEOS geometry by round-tripping
// GeoJSON, the same encoding county exports arrive in.
func ToGeos(g orb.Geometry) (*geos.Geom, error) {
	if g == nil {
		return nil, fmt.Errorf("nil geometry")
	}
	buf, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	gg, err := geos.NewGeomFromGeoJSON(string(buf))
	if err != nil {
		return nil, fmt.Errorf("parse geometry: %w", err)
	}
	return gg, nil
}

// FromGeos converts a GEOS geometry back to an orb geometry.
func FromGeos(g *geos.Geom) (orb.Geometry, error) {
	gj, err := geojson.UnmarshalGeometry([]byte(g.ToGeoJSON(-1)))
	if err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	return gj.Geometry(), nil
}

// libgeos reports exceptions as panics through the binding; these confine
// a failure to the single operation that raised it.

func safeGeom(op func() *geos.Geom) (g *geos.Geom, err error) {
	defer func() {
		if r := recover(); r != nil {
			g, err = nil, fmt.Errorf("geos: %v", r)
		}
	}()
	return op(), nil
}

func safeBool(op func() bool) (v bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = false, fmt.Errorf("geos: %v", r)
		}
	}()
	return op(), nil
}

// cascadedUnion unions gs pairwise, destroying intermediates. It takes
// ownership of every input.
func cascadedUnion(gs []*geos.Geom) *geos.Geom {
	if len(gs) == 1 {
		return gs[0]
	}
	mid := len(gs) / 2
	left := cascadedUnion(gs[:mid])
	right := cascadedUnion(gs[mid:])
	out := left.Union(right)
	left.Destroy()
	right.Destroy()
	return out
}

// UnionAll returns the geometric union of gs without consuming them.
func UnionAll(gs []*geos.Geom) (out *geos.Geom, err error) {
	if len(gs) == 0 {
		return nil, fmt.Errorf("nothing to union")
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("geos union: %v", r)
		}
	}()
	clones := make([]*geos.Geom, len(gs))
	for i := range gs {
		clones[i] = gs[i].Clone()
	}
	return cascadedUnion(clones), nil
}
