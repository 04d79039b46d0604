package merge

import (
	"sort"

	"github.com/twpayne/go-geos"
)

// buildAdjacency computes the symmetric adjacency relation over geoms:
// an edge exists when two geometries touch or intersect, so clean
// shared-boundary neighbors and sloppily digitized overlaps both
// connect. A predicate failure on a pair means no edge, never an
// aborted group.
//
// Pairwise O(n^2) predicate evaluation. Owner groups are tens of
// parcels, so this holds up; anyone pointing this at much larger groups
// should prune candidate pairs with a bounding-box index first, which
// leaves the resulting graph unchanged.
func buildAdjacency(geoms []*geos.Geom) []map[int]struct{} {
	adj := make([]map[int]struct{}, len(geoms))
	for i := range adj {
		adj[i] = map[int]struct{}{}
	}
	for i := 0; i < len(geoms); i++ {
		for j := i + 1; j < len(geoms); j++ {
			if touchesOrIntersects(geoms[i], geoms[j]) {
				adj[i][j] = struct{}{}
				adj[j][i] = struct{}{}
			}
		}
	}
	return adj
}

func touchesOrIntersects(a, b *geos.Geom) (hit bool) {
	defer func() {
		if recover() != nil {
			hit = false
		}
	}()
	return a.Touches(b) || a.Intersects(b)
}

// components returns the connected components of adj via breadth-first
// traversal, components ordered by their lowest index and members in
// input order.
func components(adj []map[int]struct{}) [][]int {
	visited := make([]bool, len(adj))
	var comps [][]int

	for start := range adj {
		if visited[start] {
			continue
		}
		visited[start] = true
		comp := []int{start}
		queue := []int{start}
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			for nb := range adj[node] {
				if !visited[nb] {
					visited[nb] = true
					comp = append(comp, nb)
					queue = append(queue, nb)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}
