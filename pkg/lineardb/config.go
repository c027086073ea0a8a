package lineardb

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// Config is the on-disk (JWCC — JSON with comments) shape consumed by the
// CLI driver (cmd/lineardb-cli) to build an [Options] value.
type Config struct {
	Path         string  `json:"path"`
	KeySize      uint32  `json:"key_size"`  //nolint:tagliatelle // snake_case for config file
	ValueSize    uint32  `json:"value_size"` //nolint:tagliatelle // snake_case for config file
	StartBuckets uint64  `json:"start_buckets,omitempty"` //nolint:tagliatelle // snake_case for config file
	MaxLoad      float64 `json:"max_load,omitempty"` //nolint:tagliatelle // snake_case for config file
}

// LoadConfig reads and parses a JWCC config file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("lineardb: read config %q: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("lineardb: invalid JWCC in %q: %w", path, err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("lineardb: invalid config JSON in %q: %w", path, err)
	}

	return cfg, nil
}

// Options builds an [Options] value from cfg.
func (cfg Config) Options() Options {
	return Options{
		Path:         cfg.Path,
		KeySize:      cfg.KeySize,
		ValueSize:    cfg.ValueSize,
		StartBuckets: cfg.StartBuckets,
		MaxLoad:      cfg.MaxLoad,
	}
}
