// Copyright 2025 The Cockroach Authors
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
//
// SPDX-License-Identifier: Apache-2.0

package sim

import (
	"io"
	"strconv"
	"time"

	"github.com/cockroachdb/field-eng-diners/diner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Metrics are the Prometheus collectors for one simulation.
type Metrics struct {
	deadlock    prometheus.Gauge
	eating      *prometheus.GaugeVec
	gateInside  prometheus.Gauge
	meals       *prometheus.CounterVec
	ticks       prometheus.Counter
	transitions *prometheus.CounterVec
	wait        *prometheus.HistogramVec
}

// NewMetrics registers the simulation's collectors with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		deadlock: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "diners",
			Name:      "deadlock",
			Help:      "1 once every diner has been seen waiting for its second fork",
		}),
		eating: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "diners",
			Name:      "eating",
			Help:      "1 while the diner is eating",
		}, []string{"diner"}),
		gateInside: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "diners",
			Subsystem: "gate",
			Name:      "inside",
			Help:      "Permits held at the last tick",
		}),
		meals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diners",
			Name:      "meals_total",
			Help:      "Meals eaten per diner",
		}, []string{"diner"}),
		ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "diners",
			Name:      "ticks_total",
			Help:      "Controller ticks observed",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diners",
			Name:      "transitions_total",
			Help:      "State transitions by destination state",
		}, []string{"state"}),
		wait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "diners",
			Name:      "acquire_wait_seconds",
			Help:      "Time spent waiting to acquire a resource",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"resource"}),
	}
}

// Events returns diner callbacks that feed the collectors.
func (m *Metrics) Events() *diner.Events {
	return &diner.Events{
		OnMeal: func(id int, _ uint64) {
			m.meals.WithLabelValues(strconv.Itoa(id)).Inc()
		},
		OnTransition: func(id int, from, to diner.State) {
			m.transitions.WithLabelValues(to.String()).Inc()
			switch {
			case to == diner.Eating:
				m.eating.WithLabelValues(strconv.Itoa(id)).Set(1)
			case from == diner.Eating:
				m.eating.WithLabelValues(strconv.Itoa(id)).Set(0)
			}
		},
		OnWait: func(_ int, what diner.Resource, waited time.Duration) {
			m.wait.WithLabelValues(string(what)).Observe(waited.Seconds())
		},
	}
}

// WriteMetrics writes every metric family gathered from g in the
// Prometheus text format.
func WriteMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
