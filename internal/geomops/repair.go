package geomops

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-geos"
)

// ErrStillInvalid means make-valid ran but the result still fails the
// validity check.
var ErrStillInvalid = errors.New("geometry invalid after repair")

type RepairStats struct {
	Total    int
	Invalid  int
	Repaired int
	Dropped  int
}

// Repair returns a topologically valid version of g. Valid input comes
// back unchanged, so repairing twice is a no-op.
func Repair(g orb.Geometry) (orb.Geometry, error) {
	gg, err := ToGeos(g)
	if err != nil {
		return nil, err
	}
	defer gg.Destroy()

	valid, err := safeBool(gg.IsValid)
	if err != nil {
		return nil, err
	}
	if valid {
		return g, nil
	}

	fixed, err := safeGeom(func() *geos.Geom {
		return gg.MakeValidWithParams(geos.MakeValidLinework, geos.MakeValidDiscardCollapsed)
	})
	if err != nil {
		return nil, fmt.Errorf("make valid: %w", err)
	}
	defer fixed.Destroy()

	if ok, err := safeBool(fixed.IsValid); err != nil || !ok {
		return nil, ErrStillInvalid
	}
	return FromGeos(fixed)
}

// RepairCollection validates every feature and repairs the invalid ones.
// Features that cannot be parsed, or stay invalid after repair, are
// dropped; the stats report how many.
func RepairCollection(fc *geojson.FeatureCollection) (*geojson.FeatureCollection, RepairStats) {
	stats := RepairStats{Total: len(fc.Features)}
	out := geojson.NewFeatureCollection()

	for _, f := range fc.Features {
		if f.Geometry == nil {
			stats.Dropped++
			continue
		}
		gg, err := ToGeos(f.Geometry)
		if err != nil {
			stats.Dropped++
			continue
		}
		valid, err := safeBool(gg.IsValid)
		gg.Destroy()
		if err == nil && valid {
			out.Append(f)
			continue
		}

		stats.Invalid++
		repaired, err := Repair(f.Geometry)
		if err != nil {
			stats.Dropped++
			continue
		}
		stats.Repaired++
		nf := geojson.NewFeature(repaired)
		nf.ID = f.ID
		nf.Properties = f.Properties
		out.Append(nf)
	}
	return out, stats
}
