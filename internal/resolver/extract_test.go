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

func TestExtractAddresses(t *testing.T) {
	testcases := map[string]struct {
		rr        string
		out       []string
		cached    []string
		cacheName string
	}{
		"a record": {
			rr:        "ns1.example.com. 172800 IN A 10.0.0.53",
			out:       []string{"10.0.0.53"},
			cached:    []string{"10.0.0.53"},
			cacheName: "foo.example.com",
		},
		"aaaa glue is not used for server discovery": {
			rr:        "ns1.example.com. 172800 IN AAAA 2001:db8::53",
			cacheName: "foo.example.com",
		},
		"ns record yields nothing": {
			rr:        "com. 172800 IN NS ns1.example.com.",
			cacheName: "foo.example.com",
		},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			cache := NewLabelCache(nil)

			addresses := extractAddresses(mustRR(t, tc.rr), cache)

			assert.Equal(t, tc.out, addresses)

			if tc.cached == nil {
				assert.Zero(t, cache.Len())
			} else {
				assert.Equal(t, tc.cached, cache.LookupServers(tc.cacheName))
			}
		})
	}
}
