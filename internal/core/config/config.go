package config

import (
	"os"
	"strconv"
	"strings"
)

type ServeCfg struct {
	Addr             string
	DatasetCacheSize int
}

type Config struct {
	LogLevel string

	// DataDir is the root of the on-disk layout:
	// <DataDir>/<county>/processed/*.geojson and
	// <DataDir>/cities/<city>/processed/*.geojson.
	DataDir string
	City    string
	County  string

	SimplifyTolerance float64
	PreserveTopology  bool
	ExportPrecision   int
	MergeOwners       bool

	Serve ServeCfg
}

func FromEnv() Config {
	precision := getint("EXPORT_PRECISION", 6)
	if precision < 0 {
		precision = 6
	}

	return Config{
		LogLevel: getenv("LOG_LEVEL", "info"),
		DataDir:  getenv("DATA_DIR", "data"),
		City:     getenv("CITY", "three-forks"),
		County:   getenv("COUNTY", "gallatin"),

		// 0.0001 degrees is roughly 11m, the web-display default.
		SimplifyTolerance: getfloat("SIMPLIFY_TOLERANCE", 0.0001),
		PreserveTopology:  getbool("PRESERVE_TOPOLOGY", true),
		ExportPrecision:   precision,
		MergeOwners:       getbool("MERGE_OWNERS", false),

		Serve: ServeCfg{
			Addr:             getenv("ADDR", ":8090"),
			DatasetCacheSize: getint("DATASET_CACHE_SIZE", 32),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
