package geomops

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	"github.com/twpayne/go-geos"
)

// ErrEmptyBoundary means the boundary collection contained no usable
// geometry. Distinct from a clip that legitimately retains zero
// features, which is not an error.
var ErrEmptyBoundary = errors.New("boundary has no usable geometry")

type ClipStats struct {
	In      int
	Out     int
	Dropped int
}

// Clip intersects every feature of fc against the union of the boundary
// geometries, dropping features whose intersection is empty. The
// boundary is reprojected first when its CRS differs from fcCRS.
// Feature order is preserved.
func Clip(fc *geojson.FeatureCollection, fcCRS string, boundary *geojson.FeatureCollection, boundaryCRS string) (*geojson.FeatureCollection, ClipStats, error) {
	stats := ClipStats{In: len(fc.Features)}

	region, err := boundaryRegion(fcCRS, boundary, boundaryCRS)
	if err != nil {
		return nil, stats, err
	}
	defer region.Destroy()

	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		clipped, keep := clipOne(f.Geometry, region)
		if !keep {
			stats.Dropped++
			continue
		}
		if clipped == nil {
			// unchanged
			out.Append(f)
			stats.Out++
			continue
		}
		nf := geojson.NewFeature(clipped)
		nf.ID = f.ID
		nf.Properties = f.Properties
		out.Append(nf)
		stats.Out++
	}
	return out, stats, nil
}

// boundaryRegion unions all boundary geometries into a single GEOS
// region in the target CRS.
func boundaryRegion(fcCRS string, boundary *geojson.FeatureCollection, boundaryCRS string) (*geos.Geom, error) {
	var parts []*geos.Geom
	defer func() {
		for _, p := range parts {
			p.Destroy()
		}
	}()

	for _, bf := range boundary.Features {
		if bf.Geometry == nil {
			continue
		}
		g := bf.Geometry
		if boundaryCRS != fcCRS {
			reprojected, err := Reproject(orb.Clone(g), boundaryCRS, fcCRS)
			if err != nil {
				return nil, err
			}
			g = reprojected
		}
		gg, err := ToGeos(g)
		if err != nil {
			continue
		}
		parts = append(parts, gg)
	}
	if len(parts) == 0 {
		return nil, ErrEmptyBoundary
	}

	region, err := UnionAll(parts)
	if err != nil {
		return nil, fmt.Errorf("union boundary: %w", err)
	}
	return region, nil
}

// clipOne returns (geometry, keep). A nil geometry with keep=true means
// the feature is entirely inside the region and passes through as-is.
func clipOne(g orb.Geometry, region *geos.Geom) (orb.Geometry, bool) {
	if g == nil {
		return nil, false
	}
	gg, err := ToGeos(g)
	if err != nil {
		return nil, false
	}
	defer gg.Destroy()

	within, err := safeBool(func() bool { return gg.Within(region) })
	if err == nil && within {
		return nil, true
	}

	inter, err := safeGeom(func() *geos.Geom { return gg.Intersection(region) })
	if err != nil {
		return nil, false
	}
	defer inter.Destroy()

	empty, err := safeBool(inter.IsEmpty)
	if err != nil || empty {
		return nil, false
	}
	clipped, err := FromGeos(inter)
	if err != nil {
		return nil, false
	}
	return clipped, true
}

// ReprojectCollection returns a copy of fc with every geometry
// transformed from one reference system to the other. The county
// publishes some vintages in Web Mercator; everything downstream works
// in WGS84.
func ReprojectCollection(fc *geojson.FeatureCollection, from, to string) (*geojson.FeatureCollection, error) {
	if from == to {
		return fc, nil
	}
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		if f.Geometry == nil {
			out.Append(f)
			continue
		}
		g, err := Reproject(orb.Clone(f.Geometry), from, to)
		if err != nil {
			return nil, err
		}
		nf := geojson.NewFeature(g)
		nf.ID = f.ID
		nf.Properties = f.Properties
		out.Append(nf)
	}
	return out, nil
}

// Reproject transforms g between the two supported reference systems.
func Reproject(g orb.Geometry, from, to string) (orb.Geometry, error) {
	if from == to {
		return g, nil
	}
	switch {
	case from == CRSWGS84 && to == CRSWebMercator:
		return project.Geometry(g, project.WGS84.ToMercator), nil
	case from == CRSWebMercator && to == CRSWGS84:
		return project.Geometry(g, project.Mercator.ToWGS84), nil
	default:
		return nil, fmt.Errorf("unsupported reprojection %s -> %s", from, to)
	}
}
