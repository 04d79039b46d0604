package geomops

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// Derived metric field names attached by AddMetricFields.
const (
	FieldAreaSqm   = "area_sqm"
	FieldAreaAcres = "area_acres"
	FieldLengthM   = "length_m"
	FieldLengthFt  = "length_ft"
)

const (
	acresPerSqMeter = 0.000247105
	feetPerMeter    = 3.28084
)

type MetricStats struct {
	Areas   int
	Lengths int
}

// AddMetricFields computes per-feature area or length in Web Mercator
// and attaches the metric fields to the features, which stay in their
// source coordinate system. Polygonal features get area_sqm/area_acres,
// linear features get length_m/length_ft, everything else passes
// through untouched.
func AddMetricFields(fc *geojson.FeatureCollection) (*geojson.FeatureCollection, MetricStats) {
	stats := MetricStats{}
	out := geojson.NewFeatureCollection()

	for _, f := range fc.Features {
		if f.Geometry == nil {
			out.Append(f)
			continue
		}
		mercator := project.Geometry(orb.Clone(f.Geometry), project.WGS84.ToMercator)

		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
			sqm := math.Abs(planar.Area(mercator))
			nf := withProps(f)
			nf.Properties[FieldAreaSqm] = sqm
			nf.Properties[FieldAreaAcres] = sqm * acresPerSqMeter
			out.Append(nf)
			stats.Areas++
		case orb.LineString, orb.MultiLineString:
			m := planar.Length(mercator)
			nf := withProps(f)
			nf.Properties[FieldLengthM] = m
			nf.Properties[FieldLengthFt] = m * feetPerMeter
			out.Append(nf)
			stats.Lengths++
		default:
			out.Append(f)
		}
	}
	return out, stats
}

// withProps shallow-copies a feature so new fields do not leak into the
// caller's collection.
func withProps(f *geojson.Feature) *geojson.Feature {
	nf := geojson.NewFeature(f.Geometry)
	nf.ID = f.ID
	nf.Properties = f.Properties.Clone()
	return nf
}
