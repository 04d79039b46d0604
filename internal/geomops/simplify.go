package geomops

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-geos"
)

type SimplifyStats struct {
	VerticesBefore int
	VerticesAfter  int
	Skipped        int
}

// Simplify reduces vertex counts within tolerance (in collection units).
// With preserveTopology the engine guarantees no self-intersections are
// introduced, at the cost of retaining more vertices. A feature whose
// simplification fails is kept unchanged.
func Simplify(fc *geojson.FeatureCollection, tolerance float64, preserveTopology bool) (*geojson.FeatureCollection, SimplifyStats) {
	stats := SimplifyStats{}
	out := geojson.NewFeatureCollection()

	for _, f := range fc.Features {
		before := VertexCount(f.Geometry)
		stats.VerticesBefore += before

		simplified, err := simplifyOne(f.Geometry, tolerance, preserveTopology)
		if err != nil {
			stats.Skipped++
			stats.VerticesAfter += before
			out.Append(f)
			continue
		}
		stats.VerticesAfter += VertexCount(simplified)

		nf := geojson.NewFeature(simplified)
		nf.ID = f.ID
		nf.Properties = f.Properties
		out.Append(nf)
	}
	return out, stats
}

func simplifyOne(g orb.Geometry, tolerance float64, preserveTopology bool) (orb.Geometry, error) {
	gg, err := ToGeos(g)
	if err != nil {
		return nil, err
	}
	defer gg.Destroy()

	simplified, err := safeGeom(func() *geos.Geom {
		if preserveTopology {
			return gg.TopologyPreserveSimplify(tolerance)
		}
		return gg.Simplify(tolerance)
	})
	if err != nil {
		return nil, err
	}
	defer simplified.Destroy()

	empty, err := safeBool(simplified.IsEmpty)
	if err != nil || empty {
		return orb.Clone(g), nil
	}
	return FromGeos(simplified)
}

// VertexCount counts the coordinates of a geometry.
func VertexCount(g orb.Geometry) int {
	switch t := g.(type) {
	case orb.Point:
		return 1
	case orb.MultiPoint:
		return len(t)
	case orb.LineString:
		return len(t)
	case orb.MultiLineString:
		n := 0
		for _, ls := range t {
			n += len(ls)
		}
		return n
	case orb.Ring:
		return len(t)
	case orb.Polygon:
		n := 0
		for _, r := range t {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range t {
			n += VertexCount(p)
		}
		return n
	case orb.Collection:
		n := 0
		for _, c := range t {
			n += VertexCount(c)
		}
		return n
	default:
		return 0
	}
}
