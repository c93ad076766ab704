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
	"slices"
	"strings"
	"sync"

	"github.com/miekg/dns"
)

// LabelCache remembers which server addresses were discovered via glue
// records for a given label, so that later walks for names under the
// same label can skip the root servers. Entries only grow and carry no
// TTL, which means they can go stale in a long-running process; that
// is a deliberate trade for fewer round trips, not an authoritative
// delegation table.
type LabelCache struct {
	m     map[string][]string
	roots []string
	stats labelCacheStats
	lock  sync.RWMutex
}

type LabelCacheOption func(*LabelCache)

// NewLabelCache returns a LabelCache that falls back to the given
// root server list for labels it has not seen yet.
func NewLabelCache(roots []string, options ...LabelCacheOption) *LabelCache {
	c := &LabelCache{
		m:     make(map[string][]string),
		roots: roots,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// LookupServers returns the cached server addresses for the name's
// cache label, or the root server list when none are known.
func (c *LabelCache) LookupServers(name string) []string {
	c.lock.RLock()
	defer c.lock.RUnlock()

	servers, ok := c.m[cacheLabel(name)]
	if !ok || len(servers) == 0 {
		c.stats.misses.Add(1)

		return slices.Clone(c.roots)
	}

	c.stats.hits.Add(1)

	return slices.Clone(servers)
}

// RememberServers records newly discovered addresses for a label,
// skipping any address already present. Entries are never removed.
func (c *LabelCache) RememberServers(label string, addresses ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	known := c.m[label]

	for _, address := range addresses {
		if !slices.Contains(known, address) {
			known = append(known, address)
		}
	}

	c.m[label] = known
}

// Len returns the number of labels with at least one cached address.
func (c *LabelCache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return len(c.m)
}

// cacheLabel reduces a name to the label the cache keys on: the
// second-to-last label of the dot-split fqdn, i.e. the label
// immediately left of the root. This is a simplification, not the
// full suffix.
func cacheLabel(name string) string {
	labels := strings.Split(dns.Fqdn(name), ".")
	if len(labels) < 2 {
		return name
	}

	return labels[len(labels)-2]
}
