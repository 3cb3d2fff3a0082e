package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/diskcache"
)

// configFileName is the project-local config file the demo looks for
// in its working directory, the same way the teacher's CLI loads
// ".tk.json".
const configFileName = ".diskcache.json"

// config holds the demo's resolved settings: directory, byte and
// count budgets.
type config struct {
	Dir      string `json:"dir,omitempty"`
	MaxBytes int64  `json:"max_bytes,omitempty"` //nolint:tagliatelle // snake_case for config file
	MaxCount int64  `json:"max_count,omitempty"` //nolint:tagliatelle // snake_case for config file
}

func defaultConfig() config {
	return config{
		Dir:      ".diskcache",
		MaxBytes: diskcache.DefaultMaxBytes,
		MaxCount: diskcache.DefaultMaxCount,
	}
}

// loadConfig reads workDir/.diskcache.json if present (JSONC via
// hujson, standardized then decoded with encoding/json, mirroring the
// teacher's config-loading shape) and layers it over the defaults.
// A missing file is not an error.
func loadConfig(workDir string) (config, error) {
	cfg := defaultConfig()

	path := filepath.Join(workDir, configFileName)

	data, err := os.ReadFile(path) //nolint:gosec // path is a fixed, known filename
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return config{}, fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	var fileCfg config
	if err := json.Unmarshal(standardized, &fileCfg); err != nil {
		return config{}, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}

	if fileCfg.Dir != "" {
		cfg.Dir = fileCfg.Dir
	}

	if fileCfg.MaxBytes != 0 {
		cfg.MaxBytes = fileCfg.MaxBytes
	}

	if fileCfg.MaxCount != 0 {
		cfg.MaxCount = fileCfg.MaxCount
	}

	return cfg, nil
}
