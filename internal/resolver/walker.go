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
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog/log"
)

const (
	defaultQueryTimeout = 3 * time.Second

	// maxDelegationDepth bounds the walk through referral and alias
	// chains; a legitimate delegation never comes close, so hitting
	// the bound means a loop and the walk fails fast.
	maxDelegationDepth = 32
)

var (
	// ErrNotFound is the single failure outcome of a walk: negative
	// answers, exhausted candidate lists and transport failures on
	// every candidate all collapse into it.
	ErrNotFound = errors.New("no record found")
)

// ResolverClient is the transport used for one query round trip.
// *dns.Client satisfies it; one UDP exchange per call, no internal
// retransmission. Trying the next candidate server is the walker's
// job, not the transport's.
type ResolverClient interface {
	ExchangeContext(context.Context, *dns.Msg, string) (*dns.Msg, time.Duration, error)
}

// Walker drives the delegation walk: starting from a candidate server
// list it issues queries, follows referrals via glue or nameserver
// name resolution, chases one level of alias indirection and feeds
// discovered glue addresses into the label cache.
type Walker struct {
	client       ResolverClient
	labelCache   *LabelCache
	roots        []string
	queryTimeout time.Duration
	stats        walkerStats
}

type WalkerOption func(*Walker)

// NewWalker returns a Walker using the given label cache for glue
// bookkeeping and the fixed root server list for alias and
// nameserver restarts.
func NewWalker(labelCache *LabelCache, options ...WalkerOption) *Walker {
	w := &Walker{
		client:       &dns.Client{},
		labelCache:   labelCache,
		roots:        RootServers(),
		queryTimeout: defaultQueryTimeout,
	}

	for _, option := range options {
		option(w)
	}

	return w
}

// Resolve walks the delegation hierarchy for (name, qtype) starting
// from the given candidate servers and returns the first message
// whose answer section carries a record of the requested type.
// All failure modes yield ErrNotFound; a canceled context yields the
// context error.
func (w *Walker) Resolve(ctx context.Context, name string, qtype uint16, servers []string) (*dns.Msg, error) {
	return w.resolve(ctx, dns.Fqdn(name), qtype, servers, 0)
}

func (w *Walker) resolve(ctx context.Context, name string, qtype uint16, servers []string, depth int) (*dns.Msg, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if depth >= maxDelegationDepth {
		log.Debug().Str("name", name).Msg("delegation depth exceeded, assuming a referral loop")

		return nil, ErrNotFound
	}

	if len(servers) == 0 {
		return nil, ErrNotFound
	}

	for _, server := range servers {
		msg, err := w.exchange(ctx, name, qtype, server)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			w.stats.transportFailures.Add(1)

			log.Debug().Err(err).
				Str("name", name).
				Str("server", server).
				Msg("transport failure, trying next candidate")

			continue
		}

		if len(msg.Answer) > 0 {
			result, err := w.classifyAnswer(ctx, msg, qtype, depth)
			if err == nil {
				return result, nil
			}

			if !errors.Is(err, errUnusableAnswer) {
				return nil, err
			}

			// Answer carries neither the requested type nor an alias;
			// treated as unusable and the next candidate is tried.
			log.Debug().
				Str("name", name).
				Str("server", server).
				Msg("answer without requested type or alias")

			continue
		}

		if len(msg.Extra) > 0 {
			// Glue-assisted referral: the additional section already
			// holds addresses for the delegated servers, no extra
			// lookup round trip is needed.
			var glue []string

			for _, rr := range msg.Extra {
				glue = append(glue, extractAddresses(rr, w.labelCache)...)
			}

			w.stats.referrals.Add(1)

			return w.resolve(ctx, name, qtype, glue, depth+1)
		}

		nsNames, negative := w.classifyAuthority(msg)
		if negative {
			// An SOA in authority is an authoritative negative
			// answer; no further candidates are tried.
			w.stats.negativeAnswers.Add(1)

			return nil, ErrNotFound
		}

		if result := w.chaseNameservers(ctx, name, qtype, nsNames, depth); result != nil {
			return result, nil
		}
	}

	return nil, ErrNotFound
}

var errUnusableAnswer = errors.New("unusable answer section")

// classifyAnswer inspects a non-empty answer section: a record of the
// requested type completes the walk, an alias restarts it from the
// roots for the alias target. Anything else is unusable.
func (w *Walker) classifyAnswer(ctx context.Context, msg *dns.Msg, qtype uint16, depth int) (*dns.Msg, error) {
	for _, rr := range msg.Answer {
		if rr.Header().Rrtype == qtype {
			return msg, nil
		}

		if cname, ok := rr.(*dns.CNAME); ok {
			// Restarting from the roots avoids carrying server
			// selection state across the alias boundary; the target
			// may live under an entirely different delegation.
			w.stats.aliasRestarts.Add(1)

			return w.resolve(ctx, cname.Target, qtype, w.roots, depth+1)
		}
	}

	return nil, errUnusableAnswer
}

// classifyAuthority collects nameserver target names from the
// authority section, or reports an authoritative negative answer if
// it holds an SOA record.
func (w *Walker) classifyAuthority(msg *dns.Msg) ([]string, bool) {
	var nsNames []string

	for _, rr := range msg.Ns {
		switch record := rr.(type) {
		case *dns.SOA:
			return nil, true
		case *dns.NS:
			nsNames = append(nsNames, record.Ns)
		}
	}

	return nsNames, false
}

// chaseNameservers resolves each delegated nameserver's own address
// from the roots and retries the original query against every address
// found, returning the first successful result.
func (w *Walker) chaseNameservers(ctx context.Context, name string, qtype uint16, nsNames []string, depth int) *dns.Msg {
	for _, nsName := range nsNames {
		nsMsg, err := w.resolve(ctx, nsName, dns.TypeA, w.roots, depth+1)
		if err != nil {
			continue
		}

		for _, rr := range nsMsg.Answer {
			for _, address := range extractAddresses(rr, w.labelCache) {
				result, err := w.resolve(ctx, name, qtype, []string{address}, depth+1)
				if err == nil {
					return result
				}
			}
		}
	}

	return nil
}

func (w *Walker) exchange(ctx context.Context, name string, qtype uint16, server string) (*dns.Msg, error) {
	ctx, cancel := context.WithTimeout(ctx, w.queryTimeout)
	defer cancel()

	m := &dns.Msg{}
	m.SetQuestion(dns.Fqdn(name), qtype)

	w.stats.queries.Add(1)

	msg, _, err := w.client.ExchangeContext(ctx, m, net.JoinHostPort(server, "53"))
	if err != nil {
		return nil, err
	}

	if msg == nil {
		return nil, ErrNotFound
	}

	return msg, nil
}
