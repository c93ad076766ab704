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

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/miekg/dns"
	"github.com/rs/zerolog/log"
)

// DelegationHandler serves inbound DNS queries by driving the
// delegation walker, turning the walker's single NotFound outcome
// into NXDOMAIN and anything else unexpected into SERVFAIL.
// Successful answers are memoized per question for the lifetime of
// the process, like the collector's result cache.
type DelegationHandler struct {
	walker        *Walker
	labelCache    *LabelCache
	answers       *lru.Cache[dns.Question, *dns.Msg]
	stats         handlerStats
	maxNumAnswers int
}

type DelegationHandlerOption func(*DelegationHandler)

func NewDelegationHandler(walker *Walker, labelCache *LabelCache, options ...DelegationHandlerOption) (*DelegationHandler, error) {
	h := &DelegationHandler{
		walker:        walker,
		labelCache:    labelCache,
		maxNumAnswers: defaultMaxNumResults,
	}

	for _, option := range options {
		option(h)
	}

	answers, err := lru.New[dns.Question, *dns.Msg](h.maxNumAnswers)
	if err != nil {
		return nil, err
	}

	h.answers = answers

	return h, nil
}

// WithAnswerCacheSize allows setting the answer cache size in bytes.
// By default the cache holds defaultMaxNumResults (1000) entries; if
// a size is provided it is calculated as size / maxResultSize.
func WithAnswerCacheSize(size int64) DelegationHandlerOption {
	return func(h *DelegationHandler) {
		if size != 0 {
			h.maxNumAnswers = max(int(size/maxResultSize), 1)
		}
	}
}

func (h *DelegationHandler) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	ok := h.validateQuery(w, r)
	if !ok {
		h.stats.invalid.Add(1)

		return
	}

	// each query gets an id so this handler's log lines for one
	// request can be told apart
	logger := log.With().Str("query_id", uuid.New().String()).Logger()

	resp := &dns.Msg{}

	r.CopyTo(resp)

	resp.Response = true
	resp.RecursionAvailable = true
	resp.Rcode = dns.RcodeSuccess

	for _, q := range r.Question {
		if cached, ok := h.answers.Get(q); ok {
			h.stats.resolved.Add(1)

			resp.Answer = append(resp.Answer, cached.Answer...)
			resp.Ns = append(resp.Ns, cached.Ns...)
			resp.Extra = append(resp.Extra, cached.Extra...)

			continue
		}

		msg, err := h.walker.Resolve(
			context.Background(),
			q.Name,
			q.Qtype,
			h.labelCache.LookupServers(q.Name),
		)

		if errors.Is(err, ErrNotFound) {
			h.stats.notFound.Add(1)

			resp.Rcode = dns.RcodeNameError

			continue
		}

		if err != nil {
			logger.Err(err).Str("name", q.Name).Send()

			h.stats.srvFail.Add(1)
			h.srvFailResponse(w, r)

			return
		}

		h.stats.resolved.Add(1)
		h.answers.Add(q, msg)

		resp.Answer = append(resp.Answer, msg.Answer...)
		resp.Ns = append(resp.Ns, msg.Ns...)
		resp.Extra = append(resp.Extra, msg.Extra...)
	}

	if len(resp.Answer) > 0 {
		resp.Rcode = dns.RcodeSuccess
	}

	err := w.WriteMsg(resp)
	if err != nil {
		logger.Err(err).Send()
	}
}

func (h *DelegationHandler) validateQuery(w dns.ResponseWriter, r *dns.Msg) bool {
	errResp := &dns.Msg{}
	r.CopyTo(errResp)

	if (r.Opcode != dns.OpcodeQuery && r.Opcode != dns.OpcodeIQuery) || r.Response {
		log.Warn().Msgf("received a non-query from: %s", w.RemoteAddr().String())

		errResp.Response = true
		errResp.Rcode = dns.RcodeRefused

		err := w.WriteMsg(errResp)
		if err != nil {
			log.Err(err).Send()
		}

		return false
	}

	// we don't want to answer the following types of queries for either security
	// or functionality reasons
	for _, q := range r.Question {
		if q.Qclass == dns.ClassCHAOS || q.Qclass == dns.ClassNONE || q.Qclass == dns.ClassANY {
			log.Warn().Msgf("received a %s class query from: %s", dns.ClassToString[q.Qclass], w.RemoteAddr().String())

			errResp.Response = true
			errResp.Rcode = dns.RcodeRefused

			continue
		}

		if q.Qtype == dns.TypeAXFR || q.Qtype == dns.TypeIXFR {
			log.Warn().Msgf("received a %s from: %s", dns.TypeToString[q.Qtype], w.RemoteAddr().String())

			errResp.Response = true
			errResp.Rcode = dns.RcodeRefused

			continue
		}

		if q.Qtype == dns.TypeANY {
			log.Warn().Msgf("received a %s from: %s", dns.TypeToString[q.Qtype], w.RemoteAddr().String())

			errResp.Response = true
			// not implemented instead of refused,
			// as this is what most public resolvers use
			errResp.Rcode = dns.RcodeNotImplemented
		}
	}

	if errResp.Response { // only set true if there's a response to be written
		err := w.WriteMsg(errResp)
		if err != nil {
			log.Err(err).Send()
		}

		return false
	}

	return true
}

func (h *DelegationHandler) srvFailResponse(w dns.ResponseWriter, r *dns.Msg) {
	errResp := &dns.Msg{}

	r.CopyTo(errResp)

	errResp.Response = true
	errResp.Rcode = dns.RcodeServerFailure

	err := w.WriteMsg(errResp)
	if err != nil {
		log.Err(err).Send()
	}
}
