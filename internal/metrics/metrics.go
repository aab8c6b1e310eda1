// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics defines the Prometheus collectors for backend requests and
// uploads. A nil *Metrics records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the client collectors.
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	failures    *prometheus.CounterVec
	uploads     *prometheus.CounterVec
	uploadBytes *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses a private registry,
// which keeps repeated construction in tests from panicking.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audionote_requests_total",
				Help: "Total backend requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "audionote_request_duration_seconds",
				Help:    "Duration of backend requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "outcome"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audionote_failures_total",
				Help: "Total failures by error kind",
			},
			[]string{"kind"},
		),
		uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audionote_uploads_total",
				Help: "Total uploads by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		uploadBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audionote_upload_bytes_total",
				Help: "Total bytes sent by uploads",
			},
			[]string{"strategy"},
		),
	}
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.duration.WithLabelValues(method, outcome).Observe(d.Seconds())
}

// Failure counts one failure of the given kind.
func (m *Metrics) Failure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// Upload records one finished upload and the bytes it sent.
func (m *Metrics) Upload(strategy, outcome string, bytes int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(strategy, outcome).Inc()
	if bytes > 0 {
		m.uploadBytes.WithLabelValues(strategy).Add(float64(bytes))
	}
}
