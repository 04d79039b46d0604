// Package pipeline sequences the parcel processing stages: repair,
// boundary clip, metric fields, simplification, and the optional
// merge of adjacent same-owner parcels.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/hometownmap/parcelpipe/internal/feature"
	"github.com/hometownmap/parcelpipe/internal/geomops"
	"github.com/hometownmap/parcelpipe/internal/logger"
	"github.com/hometownmap/parcelpipe/internal/merge"
)

// ErrCityNotFound means the requested city has no feature in the
// boundary dataset. This is a configuration failure, unlike a clip that
// legitimately retains nothing.
var ErrCityNotFound = errors.New("city not found in boundary dataset")

// ErrNothingRetained means clipping left zero parcels, which for a city
// pipeline run means the boundary and parcel datasets do not overlap.
var ErrNothingRetained = errors.New("no parcels within boundary")

type Config struct {
	City              string
	SimplifyTolerance float64
	PreserveTopology  bool
	MergeOwners       bool
}

type StageReport struct {
	Stage   string
	In      int
	Out     int
	Dropped int
}

type Report struct {
	Stages []StageReport
}

func (r *Report) add(stage string, in, out int) {
	r.Stages = append(r.Stages, StageReport{Stage: stage, In: in, Out: out, Dropped: in - out})
}

type Pipeline struct {
	cfg Config
	log zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, log: log}
}

// Run processes parcels end to end: normalize to WGS84, repair, clip to
// the boundary, attach metric fields, simplify, and optionally merge by
// owner. Each stage consumes the previous stage's output and returns a
// new collection; the input is never modified.
func (p *Pipeline) Run(ctx context.Context, parcels *geojson.FeatureCollection, parcelsCRS string, boundary *geojson.FeatureCollection, boundaryCRS string) (*geojson.FeatureCollection, Report, error) {
	report := Report{}
	stageLog := func(name string) *zerolog.Logger {
		return logger.FromContext(logger.WithStage(ctx, name), &p.log)
	}

	// County exports arrive in Web Mercator often enough that every run
	// normalizes up front; the metric and export stages assume degrees.
	if parcelsCRS != geomops.CRSWGS84 {
		reprojected, err := geomops.ReprojectCollection(parcels, parcelsCRS, geomops.CRSWGS84)
		if err != nil {
			return nil, report, fmt.Errorf("reproject parcels: %w", err)
		}
		stageLog("reproject").Info().Str("from", parcelsCRS).Msg("parcels reprojected to WGS84")
		parcels = reprojected
		parcelsCRS = geomops.CRSWGS84
	}

	repaired, repairStats := geomops.RepairCollection(parcels)
	report.add("repair", repairStats.Total, len(repaired.Features))
	stageLog("repair").Info().
		Int("invalid", repairStats.Invalid).
		Int("repaired", repairStats.Repaired).
		Int("dropped", repairStats.Dropped).
		Msg("geometries validated")

	clipped, clipStats, err := geomops.Clip(repaired, parcelsCRS, boundary, boundaryCRS)
	if err != nil {
		return nil, report, fmt.Errorf("clip to boundary: %w", err)
	}
	report.add("clip", clipStats.In, clipStats.Out)
	stageLog("clip").Info().Int("before", clipStats.In).Int("after", clipStats.Out).Msg("clipped to boundary")
	if len(clipped.Features) == 0 {
		return nil, report, ErrNothingRetained
	}

	measured, metricStats := geomops.AddMetricFields(clipped)
	report.add("metrics", len(clipped.Features), len(measured.Features))
	stageLog("metrics").Info().Int("areas", metricStats.Areas).Int("lengths", metricStats.Lengths).Msg("metric fields attached")

	simplified, simplifyStats := geomops.Simplify(measured, p.cfg.SimplifyTolerance, p.cfg.PreserveTopology)
	report.add("simplify", len(measured.Features), len(simplified.Features))
	if simplifyStats.VerticesBefore > 0 {
		reduction := 100 * (1 - float64(simplifyStats.VerticesAfter)/float64(simplifyStats.VerticesBefore))
		stageLog("simplify").Info().
			Int("vertices_before", simplifyStats.VerticesBefore).
			Int("vertices_after", simplifyStats.VerticesAfter).
			Str("reduction", fmt.Sprintf("%.1f%%", reduction)).
			Msg("geometries simplified")
	}

	out := simplified
	if p.cfg.MergeOwners {
		merged, mergeStats := merge.ByOwner(simplified, *stageLog("merge"))
		report.add("merge", mergeStats.TotalIn, mergeStats.TotalOut)
		out = merged
	}
	return out, report, nil
}

// BoundaryForCity selects the named city's features from a boundary
// dataset. City names compare case-insensitively with hyphens treated
// as spaces ("three-forks" matches "Three Forks").
func BoundaryForCity(cities *geojson.FeatureCollection, city string) (*geojson.FeatureCollection, error) {
	want := normalizeCity(city)
	out := geojson.NewFeatureCollection()
	for _, f := range cities.Features {
		if normalizeCity(feature.String(f.Properties, "city")) == want {
			out.Append(f)
		}
	}
	if len(out.Features) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrCityNotFound, city)
	}
	return out, nil
}

func normalizeCity(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", " "))
}
