// Copyright (c) 2025 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config represents the set of configuration options required by the
// dnswalk serve mode.
type Config struct {
	Bind     []string       `yaml:"bind,flow"`
	Resolver ResolverConfig `yaml:"resolver"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ResolverConfig contains configuration for the delegation walker and
// its caches.
type ResolverConfig struct {
	// RootServers overrides the built-in root server list when set.
	RootServers []string `yaml:"root_servers,flow"`
	// QueryTimeout bounds one round trip against a single candidate
	// server.
	QueryTimeout time.Duration `yaml:"query_timeout"`
	Cache        CacheConfig   `yaml:"cache"`
}

// CacheConfig specifies result cache sizing.
type CacheConfig struct {
	Size ByteSize[int64] `yaml:"size"`
}

// defaultMetricsBind is used when metrics are enabled without an
// explicit bind address, keeping the endpoint off the wildcard
// interface.
const defaultMetricsBind = "localhost:9090"

// MetricsConfig enables the prometheus metrics endpoint.
type MetricsConfig struct {
	Bind    string `yaml:"bind"`
	Enabled bool   `yaml:"enabled"`
}

type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	// Level defines the minimum logging severity level (debug, info, warn, error).
	Level LogLevel `yaml:"level"`
}

// Load loads config from disk and returns the parsed Config.
func Load(fs afero.Fs, file string) (*Config, error) {
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Metrics.Bind == "" {
		cfg.Metrics.Bind = defaultMetricsBind
	}

	return cfg, nil
}

type Integeric interface {
	~uint16 | ~int64 | ~uint64
}

// ByteSize represents a size in bytes.
// It provides human-readable formatting and YAML serialization.
type ByteSize[T Integeric] struct {
	Raw   string
	Bytes T
}

// String returns the byte size formatted as a human-readable string
// with no spaces (e.g., "20GB", "512MB").
func (x ByteSize[T]) String() string {
	return strings.ReplaceAll(humanize.Bytes(uint64(x.Bytes)), " ", "")
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
// It parses a human-readable byte size string (e.g., "20GB", "512MB")
// and sets the value of the receiver.
// Returns an error if the input cannot be parsed.
func (x *ByteSize[T]) UnmarshalYAML(value *yaml.Node) error {
	x.Raw = value.Value

	parsed, err := humanize.ParseBytes(value.Value)
	if err != nil {
		return err
	}

	switch any(x.Bytes).(type) {
	case uint16:
		if parsed > math.MaxUint16 {
			return fmt.Errorf("value %d exceeds uint16 capacity", parsed)
		}
	case int64:
		if parsed > math.MaxInt64 {
			return fmt.Errorf("value %d exceeds int64 capacity", parsed)
		}
	}

	x.Bytes = T(parsed)

	return nil
}
