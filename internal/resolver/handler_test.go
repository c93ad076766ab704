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
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockResponseWriter struct {
	dns.ResponseWriter
	sent     []*dns.Msg
	writeErr error
}

func (m *mockResponseWriter) WriteMsg(msg *dns.Msg) error {
	m.sent = append(m.sent, msg)

	return m.writeErr
}

func (m *mockResponseWriter) RemoteAddr() net.Addr {
	addr, _ := net.ResolveIPAddr("ip4", "127.0.0.1")

	return addr
}

func newTestHandler(t *testing.T, client ResolverClient, roots ...string) *DelegationHandler {
	t.Helper()

	walker, labelCache := newTestWalker(client, roots...)

	handler, err := NewDelegationHandler(walker, labelCache)
	require.NoError(t, err)

	return handler
}

func queryMsg(name string, qtype uint16) *dns.Msg {
	m := &dns.Msg{}
	m.SetQuestion(dns.Fqdn(name), qtype)

	return m
}

func TestDelegationHandlerServeDNS(t *testing.T) {
	client := &mockClient{
		perServer: map[string][]*dns.Msg{
			"10.0.0.1": {answerMsg(t, "example.com. 30 IN A 93.184.216.34")},
		},
	}
	handler := newTestHandler(t, client, "10.0.0.1")
	writer := &mockResponseWriter{}

	handler.ServeDNS(writer, queryMsg("example.com", dns.TypeA))

	require.Len(t, writer.sent, 1)

	resp := writer.sent[0]
	assert.True(t, resp.Response)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	require.Len(t, resp.Answer, 1)
	assert.Equal(t, "example.com.", resp.Answer[0].Header().Name)
}

func TestDelegationHandlerServeDNSRepeatedQueryAnsweredFromCache(t *testing.T) {
	client := &mockClient{
		perServer: map[string][]*dns.Msg{
			"10.0.0.1": {answerMsg(t, "example.com. 30 IN A 93.184.216.34")},
		},
	}
	handler := newTestHandler(t, client, "10.0.0.1")
	writer := &mockResponseWriter{}

	handler.ServeDNS(writer, queryMsg("example.com", dns.TypeA))

	queries := len(client.sent)

	handler.ServeDNS(writer, queryMsg("example.com", dns.TypeA))

	// the second round trip is served from the answer cache without
	// touching the network
	assert.Len(t, client.sent, queries)

	require.Len(t, writer.sent, 2)

	for _, resp := range writer.sent {
		assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
		require.Len(t, resp.Answer, 1)
		assert.Equal(t, "example.com.", resp.Answer[0].Header().Name)
	}
}

func TestDelegationHandlerServeDNSNameError(t *testing.T) {
	client := &mockClient{
		perServer: map[string][]*dns.Msg{
			"10.0.0.1": {referralMsg(t,
				[]string{"example.com. 3600 IN SOA ns1.example.com. hostmaster.example.com. 1 7200 3600 1209600 3600"},
				nil,
			)},
		},
	}
	handler := newTestHandler(t, client, "10.0.0.1")
	writer := &mockResponseWriter{}

	handler.ServeDNS(writer, queryMsg("missing.example.com", dns.TypeA))

	require.Len(t, writer.sent, 1)
	assert.Equal(t, dns.RcodeNameError, writer.sent[0].Rcode)
	assert.Empty(t, writer.sent[0].Answer)
}

func TestDelegationHandlerServeDNSUnreachableUpstreams(t *testing.T) {
	client := &mockClient{
		errs: map[string]error{"10.0.0.1": errUnreachable},
	}
	handler := newTestHandler(t, client, "10.0.0.1")
	writer := &mockResponseWriter{}

	handler.ServeDNS(writer, queryMsg("example.com", dns.TypeA))

	// exhaustion collapses to NotFound, surfaced as NXDOMAIN
	require.Len(t, writer.sent, 1)
	assert.Equal(t, dns.RcodeNameError, writer.sent[0].Rcode)
}

func TestDelegationHandlerValidateQuery(t *testing.T) {
	testcases := map[string]struct {
		query *dns.Msg
		rcode int
	}{
		"response instead of query": {
			query: &dns.Msg{
				MsgHdr: dns.MsgHdr{Response: true},
				Question: []dns.Question{
					{Name: "example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET},
				},
			},
			rcode: dns.RcodeRefused,
		},
		"non-query opcode": {
			query: &dns.Msg{
				MsgHdr: dns.MsgHdr{Opcode: dns.OpcodeNotify},
				Question: []dns.Question{
					{Name: "example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET},
				},
			},
			rcode: dns.RcodeRefused,
		},
		"chaos class": {
			query: &dns.Msg{
				Question: []dns.Question{
					{Name: "version.bind.", Qtype: dns.TypeTXT, Qclass: dns.ClassCHAOS},
				},
			},
			rcode: dns.RcodeRefused,
		},
		"axfr": {
			query: &dns.Msg{
				Question: []dns.Question{
					{Name: "example.com.", Qtype: dns.TypeAXFR, Qclass: dns.ClassINET},
				},
			},
			rcode: dns.RcodeRefused,
		},
		"any qtype": {
			query: &dns.Msg{
				Question: []dns.Question{
					{Name: "example.com.", Qtype: dns.TypeANY, Qclass: dns.ClassINET},
				},
			},
			rcode: dns.RcodeNotImplemented,
		},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			// no scripted servers: a query passing validation would
			// show up as NXDOMAIN, not the expected refusal
			handler := newTestHandler(t, &mockClient{}, "10.0.0.1")
			writer := &mockResponseWriter{}

			handler.ServeDNS(writer, tc.query)

			require.Len(t, writer.sent, 1)
			assert.Equal(t, tc.rcode, writer.sent[0].Rcode)
		})
	}
}
