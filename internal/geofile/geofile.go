// Package geofile reads and writes parcel datasets on disk. GeoJSON is
// the working format; county source data additionally arrives as ESRI
// shapefiles.
package geofile

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/hometownmap/parcelpipe/internal/feature"
	"github.com/hometownmap/parcelpipe/internal/geomops"
)

// Collection is a feature collection together with the CRS its
// coordinates are expressed in.
type Collection struct {
	FC  *geojson.FeatureCollection
	CRS string
}

// LoadGeoJSON reads a feature collection from disk. Files carrying a
// legacy "crs" member naming EPSG:3857 are flagged as Web Mercator;
// everything else is treated as WGS84 per RFC 7946.
func LoadGeoJSON(path string) (*Collection, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &Collection{FC: fc, CRS: sniffCRS(raw)}, nil
}

func sniffCRS(raw []byte) string {
	var envelope struct {
		CRS *struct {
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.CRS != nil {
		if strings.Contains(envelope.CRS.Properties.Name, "3857") {
			return geomops.CRSWebMercator
		}
	}
	return geomops.CRSWGS84
}

// SaveGeoJSON writes a feature collection with coordinates rounded to
// the given number of decimal places. Rounding happens on a copy; the
// input collection is not modified.
func SaveGeoJSON(path string, fc *geojson.FeatureCollection, precision int) error {
	out := geojson.NewFeatureCollection()
	ratio := math.Pow(10, float64(precision))
	for _, f := range fc.Features {
		nf := feature.Clone(f)
		if nf.Geometry != nil {
			nf.Geometry = roundGeometry(nf.Geometry, ratio)
		}
		out.Append(nf)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// roundGeometry rounds coordinates in place and returns its argument.
// Callers pass a clone.
func roundGeometry(g orb.Geometry, ratio float64) orb.Geometry {
	switch t := g.(type) {
	case orb.Point:
		return roundPoint(t, ratio)
	case orb.MultiPoint:
		roundLine(orb.LineString(t), ratio)
	case orb.LineString:
		roundLine(t, ratio)
	case orb.MultiLineString:
		for _, ls := range t {
			roundLine(ls, ratio)
		}
	case orb.Ring:
		roundLine(orb.LineString(t), ratio)
	case orb.Polygon:
		for _, r := range t {
			roundLine(orb.LineString(r), ratio)
		}
	case orb.MultiPolygon:
		for _, p := range t {
			for _, r := range p {
				roundLine(orb.LineString(r), ratio)
			}
		}
	case orb.Collection:
		for i, sub := range t {
			t[i] = roundGeometry(sub, ratio)
		}
	}
	return g
}

func roundLine(ls orb.LineString, ratio float64) {
	for i, p := range ls {
		ls[i] = roundPoint(p, ratio)
	}
}

func roundPoint(p orb.Point, ratio float64) orb.Point {
	return orb.Point{
		math.Round(p[0]*ratio) / ratio,
		math.Round(p[1]*ratio) / ratio,
	}
}
