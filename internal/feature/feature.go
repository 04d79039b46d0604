// Package feature defines helpers over GeoJSON parcel features: property
// lookup across column-name casings, numeric coercion, and the owner
// identity used for merge grouping.
package feature

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Property names the pipeline recognizes. County exports carry either
// all-lowercase or all-uppercase column names depending on vintage, so
// every lookup checks both variants.
const (
	FieldOwnerName   = "ownername"
	FieldTaxAddress  = "citystatez"
	FieldParcelID    = "parcelid"
	FieldAcres       = "gisacres"
	FieldTotalValue  = "totalvalue"
	FieldLandValue   = "landvalue"
	FieldImprovValue = "improvvalue"
)

// Lookup returns the property under its lowercase name or, failing that,
// its uppercase variant.
func Lookup(props geojson.Properties, name string) (any, bool) {
	if v, ok := props[strings.ToLower(name)]; ok && v != nil {
		return v, true
	}
	if v, ok := props[strings.ToUpper(name)]; ok && v != nil {
		return v, true
	}
	return nil, false
}

// String returns the property as a trimmed string. A blank lowercase
// value falls through to the uppercase variant.
func String(props geojson.Properties, name string) string {
	for _, key := range []string{strings.ToLower(name), strings.ToUpper(name)} {
		v, ok := props[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			if t := strings.TrimSpace(s); t != "" {
				return t
			}
		}
	}
	return ""
}

// Number coerces a property value to a float64. JSON numbers arrive as
// float64; DBF attributes arrive as strings.
func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// OwnerKey derives the merge-grouping identity for a parcel:
// UPPER(ownername) + "|" + UPPER(citystatez). A parcel with no owner
// name has no key and is never grouped.
func OwnerKey(props geojson.Properties) (string, bool) {
	owner := strings.ToUpper(String(props, FieldOwnerName))
	if owner == "" {
		return "", false
	}
	addr := strings.ToUpper(String(props, FieldTaxAddress))
	return owner + "|" + addr, true
}

// Clone returns a deep copy of f. Transformations build new features
// rather than mutating their input.
func Clone(f *geojson.Feature) *geojson.Feature {
	var nf *geojson.Feature
	if f.Geometry != nil {
		nf = geojson.NewFeature(orb.Clone(f.Geometry))
	} else {
		nf = &geojson.Feature{Type: "Feature"}
	}
	nf.ID = f.ID
	nf.Properties = f.Properties.Clone()
	return nf
}
