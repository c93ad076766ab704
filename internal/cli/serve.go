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

package cli

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"dnswalk.io/dnswalk/internal/config"
	"dnswalk.io/dnswalk/internal/resolver"
)

const defaultConfigPath = "/etc/dnswalk/config.yaml"

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run dnswalk as a DNS server answering via delegation walks.",
		Example:      "dnswalk serve --config /etc/dnswalk/config.yaml",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(afero.NewOsFs(), configPath)
			if err != nil {
				return err
			}

			if level, err := zerolog.ParseLevel(string(cfg.Logging.Level)); err == nil && level != zerolog.NoLevel {
				zerolog.SetGlobalLevel(level)
			}

			meter, err := setupMetrics(cfg.Metrics)
			if err != nil {
				return err
			}

			labelCache := resolver.NewLabelCache(
				resolver.RootServers(),
				resolver.WithLabelCacheMetrics(meter),
			)

			walker := resolver.NewWalker(labelCache,
				resolver.WithQueryTimeout(cfg.Resolver.QueryTimeout),
				resolver.WithRootServers(cfg.Resolver.RootServers),
				resolver.WithWalkerMetrics(meter),
			)

			handler, err := resolver.NewDelegationHandler(walker, labelCache,
				resolver.WithAnswerCacheSize(cfg.Resolver.Cache.Size.Bytes),
				resolver.WithHandlerMetrics(meter))
			if err != nil {
				return err
			}

			log.Info().Msgf("Starting dnswalk server on %d address(es)", len(cfg.Bind))

			return resolver.NewService(handler, cfg.Bind).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath,
		"Path to the dnswalk configuration file")

	return cmd
}

// setupMetrics wires the otel meter through the prometheus exporter
// and exposes /metrics, mirroring the agent-style observability
// bootstrap. When metrics are disabled a noop meter is returned so
// instrumented components need no conditionals.
func setupMetrics(cfg config.MetricsConfig) (metric.Meter, error) {
	if !cfg.Enabled {
		return metricnoop.NewMeterProvider().Meter("dnswalk"), nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Bind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Err(err).Msg("metrics endpoint failed")
		}
	}()

	return provider.Meter("dnswalk"), nil
}
