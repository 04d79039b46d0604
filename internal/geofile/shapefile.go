package geofile

import (
	"fmt"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/hometownmap/parcelpipe/internal/geomops"
)

// LoadShapefile reads a shapefile and its DBF attributes into a
// feature collection. Polygon, polyline and point records are
// supported; anything else is skipped. The CRS comes from the .prj
// sidecar when present, defaulting to WGS84.
func LoadShapefile(path string) (*Collection, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	fields := r.Fields()
	fc := geojson.NewFeatureCollection()
	for r.Next() {
		idx, shape := r.Shape()
		g := shapeGeometry(shape)
		if g == nil {
			continue
		}

		f := geojson.NewFeature(g)
		f.Properties = geojson.Properties{}
		for i, field := range fields {
			if v := strings.TrimSpace(r.ReadAttribute(idx, i)); v != "" {
				f.Properties[field.String()] = v
			}
		}
		fc.Append(f)
	}

	return &Collection{FC: fc, CRS: sniffPrjCRS(path)}, nil
}

func shapeGeometry(shape shp.Shape) orb.Geometry {
	switch t := shape.(type) {
	case *shp.Polygon:
		rings := splitParts(t.Points, t.Parts)
		out := make(orb.Polygon, len(rings))
		for i, r := range rings {
			out[i] = orb.Ring(r)
		}
		return out
	case *shp.PolyLine:
		lines := splitParts(t.Points, t.Parts)
		if len(lines) == 1 {
			return lines[0]
		}
		return orb.MultiLineString(lines)
	case *shp.Point:
		return orb.Point{t.X, t.Y}
	default:
		return nil
	}
}

// splitParts cuts the flat point slice at the part offsets. For
// polygons each part is kept as a ring of a single polygon; hole
// assignment is left to the repair stage downstream.
func splitParts(points []shp.Point, parts []int32) []orb.LineString {
	out := make([]orb.LineString, 0, len(parts))
	for partIdx := 0; partIdx < len(parts); partIdx++ {
		start := parts[partIdx]
		end := int32(len(points))
		if partIdx+1 < len(parts) {
			end = parts[partIdx+1]
		}
		ls := make(orb.LineString, 0, int(end-start))
		for i := start; i < end; i++ {
			ls = append(ls, orb.Point{points[i].X, points[i].Y})
		}
		out = append(out, ls)
	}
	return out
}

func sniffPrjCRS(shpPath string) string {
	prj := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	raw, err := os.ReadFile(prj)
	if err != nil {
		return geomops.CRSWGS84
	}
	wkt := string(raw)
	if strings.Contains(wkt, "3857") || strings.Contains(wkt, "Pseudo-Mercator") {
		return geomops.CRSWebMercator
	}
	return geomops.CRSWGS84
}
