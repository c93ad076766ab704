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
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/miekg/dns"
	"github.com/rs/zerolog/log"
)

const (
	// maxResultSize is a rough per-result budget used to turn a byte
	// budget into an entry count for the result cache.
	maxResultSize        = 2048
	defaultMaxNumResults = 1000
)

// CNAMERecord is one alias pair: Alias is the queried name, Name the
// name it redirects to.
type CNAMERecord struct {
	Name  string
	Alias string
}

// AddressRecord is one A or AAAA record in display-ready form.
type AddressRecord struct {
	Name    string
	Address string
}

// MXRecord is one mail exchange record in display-ready form.
type MXRecord struct {
	Name       string
	Exchange   string
	Preference uint16
}

// RecordSet is the assembled outcome of one end-to-end lookup. A
// record type that could not be resolved is simply an empty list.
type RecordSet struct {
	CNAME []CNAMERecord
	A     []AddressRecord
	AAAA  []AddressRecord
	MX    []MXRecord
}

// Collector orchestrates one end-to-end lookup: CNAME, A, AAAA and MX
// in sequence, chasing a single alias hop, with results memoized for
// the lifetime of the process keyed by the originally requested name.
type Collector struct {
	walker        *Walker
	labelCache    *LabelCache
	results       *lru.Cache[string, RecordSet]
	stats         collectorStats
	maxNumResults int
}

type CollectorOption func(*Collector)

// NewCollector provides a constructor for a Collector backed by the
// given walker and label cache.
func NewCollector(walker *Walker, labelCache *LabelCache, options ...CollectorOption) (*Collector, error) {
	c := &Collector{
		walker:        walker,
		labelCache:    labelCache,
		maxNumResults: defaultMaxNumResults,
	}

	for _, option := range options {
		option(c)
	}

	results, err := lru.New[string, RecordSet](c.maxNumResults)
	if err != nil {
		return nil, err
	}

	c.results = results

	return c, nil
}

// WithResultCacheSize allows setting the result cache size in bytes.
// By default the cache holds defaultMaxNumResults (1000) entries; if
// a size is provided it is calculated as size / maxResultSize.
func WithResultCacheSize(size int64) CollectorOption {
	return func(c *Collector) {
		if size != 0 {
			c.maxNumResults = max(int(size/maxResultSize), 1)
		}
	}
}

// Collect resolves CNAME, A, AAAA and MX for name and assembles the
// result. Each record type is attempted independently; a failed or
// empty sub-query leaves an empty list and never aborts the others.
// Repeated calls for the same name string are served from the result
// cache without network activity.
func (c *Collector) Collect(ctx context.Context, name string) RecordSet {
	if cached, ok := c.results.Get(name); ok {
		c.stats.hits.Add(1)

		return cached
	}

	c.stats.misses.Add(1)

	var set RecordSet

	// The working target follows one alias hop: every lookup after
	// CNAME runs against the alias target, with the last observed
	// CNAME record taking effect.
	target := name

	if msg, err := c.lookup(ctx, target, dns.TypeCNAME); err == nil {
		for _, rr := range msg.Answer {
			cname, ok := rr.(*dns.CNAME)
			if !ok {
				continue
			}

			set.CNAME = append(set.CNAME, CNAMERecord{
				Name:  cname.Target,
				Alias: name,
			})

			target = cname.Target
		}
	}

	if msg, err := c.lookup(ctx, target, dns.TypeA); err == nil {
		for _, rr := range msg.Answer {
			if a, ok := rr.(*dns.A); ok {
				set.A = append(set.A, AddressRecord{
					Name:    a.Hdr.Name,
					Address: a.A.String(),
				})
			}
		}
	}

	if msg, err := c.lookup(ctx, target, dns.TypeAAAA); err == nil {
		for _, rr := range msg.Answer {
			if aaaa, ok := rr.(*dns.AAAA); ok {
				set.AAAA = append(set.AAAA, AddressRecord{
					Name:    aaaa.Hdr.Name,
					Address: aaaa.AAAA.String(),
				})
			}
		}
	}

	if msg, err := c.lookup(ctx, target, dns.TypeMX); err == nil {
		for _, rr := range msg.Answer {
			if mx, ok := rr.(*dns.MX); ok {
				set.MX = append(set.MX, MXRecord{
					Name:       mx.Hdr.Name,
					Exchange:   mx.Mx,
					Preference: mx.Preference,
				})
			}
		}
	}

	c.results.Add(name, set)

	return set
}

// lookup starts one fresh walk, consulting the label cache for a
// better-than-root candidate list.
func (c *Collector) lookup(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	msg, err := c.walker.Resolve(ctx, name, qtype, c.labelCache.LookupServers(name))
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Debug().Err(err).
			Str("name", name).
			Str("type", dns.TypeToString[qtype]).
			Msg("lookup failed")
	}

	return msg, err
}
