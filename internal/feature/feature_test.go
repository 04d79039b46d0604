package feature

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func TestOwnerKey_LowercaseFields(t *testing.T) {
	props := geojson.Properties{
		"ownername":  " John Doe ",
		"citystatez": "Three Forks MT 59752",
	}
	key, ok := OwnerKey(props)
	if !ok {
		t.Fatalf("expected owner key")
	}
	want := "JOHN DOE|THREE FORKS MT 59752"
	if key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}
}

func TestOwnerKey_UppercaseVariant(t *testing.T) {
	props := geojson.Properties{
		"OWNERNAME":  "Acme LLC",
		"CITYSTATEZ": "Bozeman MT 59715",
	}
	key, ok := OwnerKey(props)
	if !ok {
		t.Fatalf("expected owner key")
	}
	if key != "ACME LLC|BOZEMAN MT 59715" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestOwnerKey_NoOwner(t *testing.T) {
	cases := []geojson.Properties{
		{},
		{"ownername": ""},
		{"ownername": "   "},
		{"ownername": nil, "citystatez": "Bozeman MT"},
	}
	for i, props := range cases {
		if key, ok := OwnerKey(props); ok {
			t.Fatalf("case %d: unexpected key %q", i, key)
		}
	}
}

func TestOwnerKey_MissingAddress(t *testing.T) {
	key, ok := OwnerKey(geojson.Properties{"ownername": "Jane"})
	if !ok || key != "JANE|" {
		t.Fatalf("key = %q ok = %v, want JANE|", key, ok)
	}
}

func TestNumber_Coercion(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{3.5, 3.5, true},
		{int(7), 7, true},
		{"2.25", 2.25, true},
		{" 10 ", 10, true},
		{"ten", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, c := range cases {
		got, ok := Number(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Fatalf("Number(%v) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestString_BlankLowercaseFallsThrough(t *testing.T) {
	props := geojson.Properties{
		"ownername": "  ",
		"OWNERNAME": "Fallback Owner",
	}
	if got := String(props, FieldOwnerName); got != "Fallback Owner" {
		t.Fatalf("String = %q", got)
	}
}

func TestClone_Independent(t *testing.T) {
	f := geojson.NewFeature(orb.Point{1, 2})
	f.Properties["ownername"] = "A"

	cp := Clone(f)
	cp.Properties["ownername"] = "B"

	if f.Properties["ownername"] != "A" {
		t.Fatalf("clone mutated the source properties")
	}
	if _, ok := cp.Geometry.(orb.Point); !ok {
		t.Fatalf("clone geometry type = %T", cp.Geometry)
	}
}
