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
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type walkerStats struct {
	queries           atomic.Int64
	transportFailures atomic.Int64
	referrals         atomic.Int64
	aliasRestarts     atomic.Int64
	negativeAnswers   atomic.Int64
}

type labelCacheStats struct {
	hits   atomic.Int64
	misses atomic.Int64
}

type collectorStats struct {
	hits   atomic.Int64
	misses atomic.Int64
}

type handlerStats struct {
	resolved atomic.Int64
	notFound atomic.Int64
	srvFail  atomic.Int64
	invalid  atomic.Int64
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}

func WithWalkerMetrics(meter metric.Meter) WalkerOption {
	return func(w *Walker) {
		referrals := attribute.String("type", "referral")
		aliasRestarts := attribute.String("type", "alias_restart")
		negativeAnswers := attribute.String("type", "negative_answer")
		transportFailures := attribute.String("type", "transport_failure")

		must(meter.Int64ObservableCounter("walker.queries",
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(w.stats.queries.Load())

				return nil
			})))

		must(meter.Int64ObservableCounter("walker.events",
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(w.stats.referrals.Load(), metric.WithAttributes(referrals))
				o.Observe(w.stats.aliasRestarts.Load(), metric.WithAttributes(aliasRestarts))
				o.Observe(w.stats.negativeAnswers.Load(), metric.WithAttributes(negativeAnswers))
				o.Observe(w.stats.transportFailures.Load(), metric.WithAttributes(transportFailures))

				return nil
			})))
	}
}

func WithLabelCacheMetrics(meter metric.Meter) LabelCacheOption {
	return func(c *LabelCache) {
		hits := attribute.String("type", "hits")
		misses := attribute.String("type", "misses")

		must(meter.Int64ObservableCounter("labelcache.usage",
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(c.stats.hits.Load(), metric.WithAttributes(hits))
				o.Observe(c.stats.misses.Load(), metric.WithAttributes(misses))

				return nil
			})))

		must(meter.Int64ObservableGauge("labelcache.labels",
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(c.Len()))

				return nil
			})))
	}
}

func WithCollectorMetrics(meter metric.Meter) CollectorOption {
	return func(c *Collector) {
		hits := attribute.String("type", "hits")
		misses := attribute.String("type", "misses")

		must(meter.Int64ObservableCounter("resultcache.usage",
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(c.stats.hits.Load(), metric.WithAttributes(hits))
				o.Observe(c.stats.misses.Load(), metric.WithAttributes(misses))

				return nil
			})))

		currentSize := attribute.String("type", "current")
		maxSize := attribute.String("type", "max")

		must(meter.Int64ObservableGauge("resultcache.size",
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(c.results.Len()), metric.WithAttributes(currentSize))
				o.Observe(int64(c.maxNumResults), metric.WithAttributes(maxSize))

				return nil
			})))
	}
}

func WithHandlerMetrics(meter metric.Meter) DelegationHandlerOption {
	return func(h *DelegationHandler) {
		resolved := attribute.String("type", "resolved")
		notFound := attribute.String("type", "notfound")
		srvFail := attribute.String("type", "servfail")
		invalid := attribute.String("type", "invalid")

		must(meter.Int64ObservableCounter("handler.responses",
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(h.stats.resolved.Load(), metric.WithAttributes(resolved))
				o.Observe(h.stats.notFound.Load(), metric.WithAttributes(notFound))
				o.Observe(h.stats.srvFail.Load(), metric.WithAttributes(srvFail))
				o.Observe(h.stats.invalid.Load(), metric.WithAttributes(invalid))

				return nil
			})))
	}
}
