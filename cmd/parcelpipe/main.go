// Command parcelpipe runs the parcel processing pipeline for one city:
// load county parcels, clip to the city boundary, normalize geometry,
// and write the processed GeoJSON the map server reads.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hometownmap/parcelpipe/internal/core/config"
	"github.com/hometownmap/parcelpipe/internal/geofile"
	"github.com/hometownmap/parcelpipe/internal/logger"
	"github.com/hometownmap/parcelpipe/internal/pipeline"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	inputFlag := flag.String("input", "", "parcel dataset (.geojson or .shp); defaults to <data>/<county>/processed/parcels.geojson")
	boundaryFlag := flag.String("boundary", "", "city boundary dataset; defaults to <data>/<county>/processed/cities.geojson")
	cityFlag := flag.String("city", "", "city to process")
	outputFlag := flag.String("output", "", "output path; defaults to <data>/cities/<city>/processed/parcels.geojson")
	mergeFlag := flag.Bool("merge", false, "merge adjacent parcels with the same owner")
	toleranceFlag := flag.Float64("tolerance", 0, "simplification tolerance in degrees (0 uses SIMPLIFY_TOLERANCE)")
	flag.Parse()

	cfg := config.FromEnv()
	if *cityFlag != "" {
		cfg.City = strings.TrimSpace(*cityFlag)
	}
	if *mergeFlag {
		cfg.MergeOwners = true
	}
	if *toleranceFlag > 0 {
		cfg.SimplifyTolerance = *toleranceFlag
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		City:      cfg.City,
		Component: "parcelpipe",
	}, os.Stdout)

	inputPath := *inputFlag
	if inputPath == "" {
		inputPath = filepath.Join(cfg.DataDir, cfg.County, "processed", "parcels.geojson")
	}
	boundaryPath := *boundaryFlag
	if boundaryPath == "" {
		boundaryPath = filepath.Join(cfg.DataDir, cfg.County, "processed", "cities.geojson")
	}
	outputPath := *outputFlag
	if outputPath == "" {
		name := "parcels.geojson"
		if cfg.MergeOwners {
			name = "parcels_merged.geojson"
		}
		outputPath = filepath.Join(cfg.DataDir, "cities", cfg.City, "processed", name)
	}

	zl.Info().
		Str("version", Version).
		Str("input", inputPath).
		Str("boundary", boundaryPath).
		Str("output", outputPath).
		Bool("merge", cfg.MergeOwners).
		Msg("starting parcel pipeline")

	parcels, err := loadDataset(inputPath)
	if err != nil {
		zl.Error().Err(err).Msg("load parcels")
		return 1
	}
	boundaries, err := loadDataset(boundaryPath)
	if err != nil {
		zl.Error().Err(err).Msg("load boundaries")
		return 1
	}

	boundary, err := pipeline.BoundaryForCity(boundaries.FC, cfg.City)
	if err != nil {
		zl.Error().Err(err).Str("city", cfg.City).Msg("select city boundary")
		return 1
	}

	p := pipeline.New(pipeline.Config{
		City:              cfg.City,
		SimplifyTolerance: cfg.SimplifyTolerance,
		PreserveTopology:  cfg.PreserveTopology,
		MergeOwners:       cfg.MergeOwners,
	}, zl)

	out, report, err := p.Run(context.Background(), parcels.FC, parcels.CRS, boundary, boundaries.CRS)
	if err != nil {
		zl.Error().Err(err).Msg("pipeline failed")
		return 1
	}
	for _, st := range report.Stages {
		zl.Info().
			Str("stage", st.Stage).
			Int("in", st.In).
			Int("out", st.Out).
			Int("dropped", st.Dropped).
			Msg("stage complete")
	}

	if err := geofile.SaveGeoJSON(outputPath, out, cfg.ExportPrecision); err != nil {
		zl.Error().Err(err).Msg("write output")
		return 1
	}
	zl.Info().Int("features", len(out.Features)).Str("path", outputPath).Msg("processed dataset written")
	return 0
}

func loadDataset(path string) (*geofile.Collection, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return geofile.LoadShapefile(path)
	case ".geojson", ".json":
		return geofile.LoadGeoJSON(path)
	default:
		return nil, fmt.Errorf("unsupported dataset format: %s", path)
	}
}
