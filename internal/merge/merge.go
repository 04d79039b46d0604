package merge

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/twpayne/go-geos"

	"github.com/hometownmap/parcelpipe/internal/feature"
	"github.com/hometownmap/parcelpipe/internal/geomops"
)

// Metadata fields attached to a merged feature.
const (
	MergedCountField   = "_merged_count"
	MergedParcelsField = "_merged_parcels"
)

// numericFields are summed across a merged component. The lowercase and
// uppercase names are distinct columns in county exports; each is
// summed as its own field.
var numericFields = []string{
	feature.FieldAcres, "GISACRES",
	feature.FieldTotalValue, "TOTALVALUE",
	feature.FieldLandValue, "LANDVALUE",
	feature.FieldImprovValue, "IMPROVVALUE",
}

// unionAll is swappable so tests can force the union-failure path.
var unionAll = geomops.UnionAll

type Stats struct {
	TotalIn        int
	TotalOut       int
	Owners         int
	NoOwner        int
	MergedGroups   int
	MergedAway     int
	BadGeometries  int
	UnionFallbacks int
}

// ByOwner merges adjacent parcels sharing an owner key. Single-parcel
// owners and parcels with no owner pass through untouched; the output is
// all owner groups in first-appearance order followed by the no-owner
// residual in input order, which does not preserve overall input order.
func ByOwner(fc *geojson.FeatureCollection, log zerolog.Logger) (*geojson.FeatureCollection, Stats) {
	groups, residual := GroupByOwner(fc)
	stats := Stats{
		TotalIn: len(fc.Features),
		Owners:  len(groups),
		NoOwner: len(residual),
	}

	out := geojson.NewFeatureCollection()
	for _, g := range groups {
		for _, f := range mergeGroup(g, &stats, log) {
			out.Append(f)
		}
	}
	for _, f := range residual {
		out.Append(f)
	}

	stats.TotalOut = len(out.Features)
	log.Info().
		Int("parcels_in", stats.TotalIn).
		Int("parcels_out", stats.TotalOut).
		Int("owners", stats.Owners).
		Int("no_owner", stats.NoOwner).
		Int("merged_away", stats.MergedAway).
		Msg("owner merge complete")
	return out, stats
}

// mergeGroup resolves one owner group into its output features.
func mergeGroup(g Group, stats *Stats, log zerolog.Logger) []*geojson.Feature {
	if len(g.Features) == 1 {
		return g.Features
	}

	// parse each geometry, repairing invalid ones; parse failures stay
	// nil and are retained in the output unmerged
	geoms := make([]*geos.Geom, len(g.Features))
	for i, f := range g.Features {
		gg, err := parseValid(f.Geometry)
		if err != nil {
			stats.BadGeometries++
			log.Warn().Err(err).Str("owner", g.Key).Int("index", i).Msg("geometry excluded from merge")
			continue
		}
		geoms[i] = gg
	}
	defer func() {
		for _, gg := range geoms {
			if gg != nil {
				gg.Destroy()
			}
		}
	}()

	var validIdx []int
	for i, gg := range geoms {
		if gg != nil {
			validIdx = append(validIdx, i)
		}
	}
	if len(validIdx) <= 1 {
		return g.Features
	}

	validGeoms := make([]*geos.Geom, len(validIdx))
	for i, idx := range validIdx {
		validGeoms[i] = geoms[idx]
	}

	adj := buildAdjacency(validGeoms)
	comps := components(adj)

	// anchor each output at its lowest original index so features whose
	// geometry failed to parse splice back in original relative order
	type anchored struct {
		at int
		f  *geojson.Feature
	}
	var results []anchored

	for _, comp := range comps {
		origIdx := make([]int, len(comp))
		for i, c := range comp {
			origIdx[i] = validIdx[c]
		}
		if len(comp) == 1 {
			results = append(results, anchored{origIdx[0], g.Features[origIdx[0]]})
			continue
		}

		members := make([]*geojson.Feature, len(origIdx))
		memberGeoms := make([]*geos.Geom, len(origIdx))
		for i, idx := range origIdx {
			members[i] = g.Features[idx]
			memberGeoms[i] = geoms[idx]
		}

		merged, fellBack := mergeComponent(members, memberGeoms)
		if fellBack {
			stats.UnionFallbacks++
			log.Warn().Str("owner", g.Key).Int("parcels", len(members)).Msg("union failed, kept first geometry")
		}
		stats.MergedGroups++
		stats.MergedAway += len(members) - 1
		results = append(results, anchored{origIdx[0], merged})
	}

	for i, gg := range geoms {
		if gg == nil {
			results = append(results, anchored{i, g.Features[i]})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].at < results[j].at })
	out := make([]*geojson.Feature, len(results))
	for i, r := range results {
		out[i] = r.f
	}
	return out
}

// mergeComponent unions one connected component into a single feature
// and aggregates its numeric fields. When the union raises, the first
// member's geometry is kept unmerged and fellBack is true.
func mergeComponent(members []*geojson.Feature, geoms []*geos.Geom) (merged *geojson.Feature, fellBack bool) {
	var out orb.Geometry
	union, err := unionAll(geoms)
	if err == nil {
		out, err = geomops.FromGeos(union)
		union.Destroy()
	}
	if err != nil {
		out = orb.Clone(members[0].Geometry)
		fellBack = true
	}

	props := members[0].Properties.Clone()
	for _, field := range numericFields {
		total := 0.0
		for _, m := range members {
			if v, ok := m.Properties[field]; ok && v != nil {
				if n, ok := feature.Number(v); ok {
					total += n
				}
			}
		}
		// a total of zero is treated as no data and omitted
		if total > 0 {
			props[field] = total
		}
	}

	props[MergedCountField] = len(members)
	ids := make([]any, len(members))
	for i, m := range members {
		if v, ok := feature.Lookup(m.Properties, feature.FieldParcelID); ok {
			ids[i] = v
		} else {
			ids[i] = nil
		}
	}
	props[MergedParcelsField] = ids

	nf := geojson.NewFeature(out)
	nf.Properties = props
	return nf, fellBack
}

// parseValid converts a feature geometry to GEOS, running make-valid on
// invalid shapes first.
func parseValid(g orb.Geometry) (*geos.Geom, error) {
	repaired, err := geomops.Repair(g)
	if err != nil {
		return nil, err
	}
	return geomops.ToGeos(repaired)
}
