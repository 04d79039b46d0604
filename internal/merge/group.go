// Package merge combines adjacent parcels that share an owner into
// single features: group by owner identity, build the touches-or-
// intersects adjacency graph, union each connected component, and
// aggregate the assessment fields.
package merge

import (
	"github.com/paulmach/orb/geojson"

	"github.com/hometownmap/parcelpipe/internal/feature"
)

// Group holds one owner's parcels in input order.
type Group struct {
	Key      string
	Features []*geojson.Feature
}

// GroupByOwner partitions fc by owner key. Group order follows first
// appearance in the input; the residual holds features with no
// derivable owner key, in input order.
func GroupByOwner(fc *geojson.FeatureCollection) ([]Group, []*geojson.Feature) {
	var (
		groups   []Group
		residual []*geojson.Feature
		index    = map[string]int{}
	)
	for _, f := range fc.Features {
		key, ok := feature.OwnerKey(f.Properties)
		if !ok {
			residual = append(residual, f)
			continue
		}
		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Features = append(groups[i].Features, f)
	}
	return groups, residual
}
