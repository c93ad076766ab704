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
	"github.com/miekg/dns"
)

// extractAddresses returns the IPv4 address carried by an address
// record, remembering it in the label cache under the owner name's
// cache label. Records of any other type yield nothing; AAAA glue is
// not used for server discovery.
func extractAddresses(rr dns.RR, cache *LabelCache) []string {
	a, ok := rr.(*dns.A)
	if !ok {
		return nil
	}

	address := a.A.String()

	cache.RememberServers(cacheLabel(a.Hdr.Name), address)

	return []string{address}
}
