package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// config layers compiled-in defaults, then a global config file, then a
// project-local one, then CLI flag overrides (applied by the caller after
// loadConfig returns).
type config struct {
	Workers    int    `json:"workers"`
	Values     int    `json:"values"`
	Capacity   int    `json:"capacity"`
	ReportPath string `json:"report_path"`
}

func defaultConfig() config {
	return config{
		Workers:    8,
		Values:     100000,
		Capacity:   1024,
		ReportPath: "internbench-report.json",
	}
}

var errConfigInvalid = errors.New("internbench: invalid config file")

// loadConfig layers defaults, then $XDG_CONFIG_HOME/internbench/config.json,
// then ./.internbench.json, each layer overriding only the fields it sets.
func loadConfig() (config, error) {
	cfg := defaultConfig()

	if home, err := os.UserConfigDir(); err == nil {
		if err := mergeConfigFile(&cfg, filepath.Join(home, "internbench", "config.json")); err != nil {
			return cfg, err
		}
	}
	if err := mergeConfigFile(&cfg, ".internbench.json"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func mergeConfigFile(cfg *config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("internbench: reading %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errConfigInvalid, path, err)
	}
	if err := json.Unmarshal(standardized, cfg); err != nil {
		return fmt.Errorf("%w: %s: %v", errConfigInvalid, path, err)
	}
	return nil
}
