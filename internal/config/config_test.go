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
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, data string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/dnswalk/config.yaml", []byte(data), 0o640))

	return fs
}

func TestLoad(t *testing.T) {
	fs := writeConfig(t, `
bind: [127.0.0.1, "::1"]
resolver:
  root_servers: [198.41.0.4, 192.33.4.12]
  query_timeout: 5s
  cache:
    size: 1MB
metrics:
  enabled: true
  bind: 127.0.0.1:9090
logging:
  level: debug
`)

	cfg, err := Load(fs, "/etc/dnswalk/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"127.0.0.1", "::1"}, cfg.Bind)
	assert.Equal(t, []string{"198.41.0.4", "192.33.4.12"}, cfg.Resolver.RootServers)
	assert.Equal(t, 5*time.Second, cfg.Resolver.QueryTimeout)
	assert.Equal(t, int64(1000000), cfg.Resolver.Cache.Size.Bytes)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9090", cfg.Metrics.Bind)
	assert.Equal(t, DebugLevel, cfg.Logging.Level)
}

func TestLoadDefaultsMetricsBind(t *testing.T) {
	fs := writeConfig(t, `
metrics:
  enabled: true
`)

	cfg, err := Load(fs, "/etc/dnswalk/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "localhost:9090", cfg.Metrics.Bind)
}

func TestLoadMissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	cfg, err := Load(fs, "/etc/dnswalk/config.yaml")

	assert.Nil(t, cfg)
	assert.Error(t, err)
}

func TestLoadMalformedSize(t *testing.T) {
	fs := writeConfig(t, `
resolver:
  cache:
    size: not-a-size
`)

	cfg, err := Load(fs, "/etc/dnswalk/config.yaml")

	assert.Nil(t, cfg)
	assert.Error(t, err)
}

func TestByteSizeString(t *testing.T) {
	testcases := map[string]struct {
		in  ByteSize[int64]
		out string
	}{
		"megabytes": {in: ByteSize[int64]{Bytes: 512_000_000}, out: "512MB"},
		"gigabytes": {in: ByteSize[int64]{Bytes: 20_000_000_000}, out: "20GB"},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.out, tc.in.String())
		})
	}
}
