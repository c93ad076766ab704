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

package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheLabel(t *testing.T) {
	testcases := map[string]struct {
		in  string
		out string
	}{
		"two labels":       {in: "example.com", out: "com"},
		"two labels fqdn":  {in: "example.com.", out: "com"},
		"three labels":     {in: "www.example.com", out: "com"},
		"glue owner":       {in: "ns1.example.com.", out: "com"},
		"different suffix": {in: "ns.example.net.", out: "net"},
		"single label":     {in: "localhost", out: "localhost"},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.out, cacheLabel(tc.in))
		})
	}
}

func TestLabelCacheLookupFallsBackToRoots(t *testing.T) {
	roots := []string{"198.41.0.4", "192.33.4.12"}
	cache := NewLabelCache(roots)

	assert.Equal(t, roots, cache.LookupServers("example.com"))
}

func TestLabelCacheRememberThenLookup(t *testing.T) {
	cache := NewLabelCache([]string{"198.41.0.4"})

	cache.RememberServers("com", "10.0.0.53")

	assert.Equal(t, []string{"10.0.0.53"}, cache.LookupServers("example.com"))
	// a name under a different label still falls back to the roots
	assert.Equal(t, []string{"198.41.0.4"}, cache.LookupServers("example.net"))
}

func TestLabelCacheRememberDeduplicates(t *testing.T) {
	cache := NewLabelCache(nil)

	cache.RememberServers("com", "10.0.0.53")
	cache.RememberServers("com", "10.0.0.53", "10.0.0.54")
	cache.RememberServers("com", "10.0.0.53")

	assert.Equal(t, []string{"10.0.0.53", "10.0.0.54"}, cache.LookupServers("example.com"))
}

func TestLabelCacheGrowsMonotonically(t *testing.T) {
	cache := NewLabelCache(nil)

	cache.RememberServers("com", "10.0.0.53")
	before := cache.LookupServers("example.com")

	cache.RememberServers("com", "10.0.0.54")
	after := cache.LookupServers("example.com")

	assert.Subset(t, after, before)
	assert.NotEmpty(t, after)
}

func TestLabelCacheLookupReturnsCopy(t *testing.T) {
	cache := NewLabelCache(nil)

	cache.RememberServers("com", "10.0.0.53")

	servers := cache.LookupServers("example.com")
	servers[0] = "changed"

	assert.Equal(t, []string{"10.0.0.53"}, cache.LookupServers("example.com"))
}
