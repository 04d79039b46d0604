package geomops

import (
	"reflect"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func square(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}

// bowtie is the classic self-intersecting ring.
func bowtie() orb.Polygon {
	return orb.Polygon{orb.Ring{
		{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0},
	}}
}

func TestRepair_ValidUnchanged(t *testing.T) {
	sq := square(0, 0, 1, 1)
	got, err := Repair(sq)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if !reflect.DeepEqual(got, orb.Geometry(sq)) {
		t.Fatalf("valid geometry was modified: %v", got)
	}
}

func TestRepair_Idempotent(t *testing.T) {
	fixed, err := Repair(bowtie())
	if err != nil {
		t.Fatalf("Repair bowtie: %v", err)
	}
	again, err := Repair(fixed)
	if err != nil {
		t.Fatalf("Repair repaired: %v", err)
	}
	if !reflect.DeepEqual(fixed, again) {
		t.Fatalf("repair of a repaired geometry changed it")
	}
}

func TestRepair_BowtieBecomesValid(t *testing.T) {
	fixed, err := Repair(bowtie())
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	gg, err := ToGeos(fixed)
	if err != nil {
		t.Fatalf("ToGeos: %v", err)
	}
	defer gg.Destroy()
	if !gg.IsValid() {
		t.Fatalf("repaired geometry still invalid: %s", gg.IsValidReason())
	}
}

func TestRepairCollection_Stats(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(square(0, 0, 1, 1)))
	fc.Append(geojson.NewFeature(bowtie()))

	out, stats := RepairCollection(fc)
	if len(out.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(out.Features))
	}
	if stats.Total != 2 || stats.Invalid != 1 || stats.Repaired != 1 || stats.Dropped != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestRepairCollection_NilGeometryDropped(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := &geojson.Feature{Type: "Feature", Properties: geojson.Properties{"parcelid": "x"}}
	fc.Features = append(fc.Features, f)

	out, stats := RepairCollection(fc)
	if len(out.Features) != 0 || stats.Dropped != 1 {
		t.Fatalf("out = %d, stats = %+v", len(out.Features), stats)
	}
}
