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

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/miekg/dns"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDNSPort      = "53"
	listenRetryElapsed  = time.Minute
	frontendStopTimeout = 5 * time.Second
)

var (
	ErrInvalidBindIP = errors.New("provided bind value is not a valid IP")
)

// Service runs the walker behind DNS server frontends: for each bind
// IP a TCP listener and a UDP connection are created, all serving the
// same handler.
type Service struct {
	handler   dns.Handler
	bindIPs   []string
	port      string
	frontends []*dns.Server
}

type ServiceOption func(*Service)

func NewService(handler dns.Handler, bindIPs []string, options ...ServiceOption) *Service {
	s := &Service{
		handler: handler,
		bindIPs: bindIPs,
		port:    defaultDNSPort,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// WithPort overrides the listen port, used by tests to bind an
// unprivileged port.
func WithPort(port string) ServiceOption {
	return func(s *Service) {
		if port == "" {
			return
		}

		s.port = port
	}
}

// Run starts all frontends and blocks until the context is canceled
// or a listener fails beyond retry. Listener startup is retried with
// exponential backoff, bounded so a permanently unavailable bind
// surfaces as an error rather than spinning forever.
func (s *Service) Run(ctx context.Context) error {
	for _, ipStr := range s.bindIPs {
		var (
			tcpNet string
			udpNet string
		)

		ip := net.ParseIP(ipStr)

		if ip == nil {
			return ErrInvalidBindIP
		}

		if ip4 := ip.To4(); ip4 != nil {
			ip = ip4
			tcpNet = "tcp4"
			udpNet = "udp4"
		} else {
			tcpNet = "tcp6"
			udpNet = "udp6"
		}

		tcpServer := &dns.Server{
			Addr:    net.JoinHostPort(ip.String(), s.port),
			Net:     tcpNet,
			Handler: s.handler,
		}

		udpServer := &dns.Server{
			Addr:    net.JoinHostPort(ip.String(), s.port),
			Net:     udpNet,
			Handler: s.handler,
		}

		s.frontends = append(s.frontends, tcpServer, udpServer)
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, frontend := range s.frontends {
		frontend := frontend
		g.Go(func() error {
			retry := backoff.NewExponentialBackOff()
			retry.MaxElapsedTime = listenRetryElapsed

			return backoff.Retry(func() error {
				log.Info().Msgf("Listening on %s (%s)", frontend.Addr, frontend.Net)

				return frontend.ListenAndServe()
			}, backoff.WithContext(retry, ctx))
		})
	}

	g.Go(func() error {
		<-ctx.Done()

		return s.stop()
	})

	return g.Wait()
}

func (s *Service) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), frontendStopTimeout)
	defer cancel()

	for _, frontend := range s.frontends {
		if err := frontend.ShutdownContext(ctx); err != nil {
			return err
		}
	}

	s.frontends = []*dns.Server{}

	return nil
}
