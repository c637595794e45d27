// Copyright 2021 Alvalor S.A.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package trie

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespaceFcmd = "fcmd"

// Metrics wraps a BackingStore with the counters and gauges tracking
// inserts, walks, resizes, and live block count.
type Metrics struct {
	inserts        prometheus.Counter
	walks          prometheus.Counter
	resizes        prometheus.Counter
	resizeTimeouts prometheus.Counter
	blocks         prometheus.Gauge
}

// NewMetrics registers and returns a fresh Metrics instance. Call
// BackingStore.WithMetrics to attach it.
func NewMetrics() *Metrics {
	return &Metrics{
		inserts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceFcmd,
			Name:      "trie_inserts_total",
			Help:      "number of keys inserted into the history trie",
		}),
		walks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceFcmd,
			Name:      "trie_walks_total",
			Help:      "number of prefix walks performed against the history trie",
		}),
		resizes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceFcmd,
			Name:      "trie_resizes_total",
			Help:      "number of times the backing file was grown",
		}),
		resizeTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceFcmd,
			Name:      "trie_resize_timeouts_total",
			Help:      "number of resizes aborted because peers did not release their view in time",
		}),
		blocks: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceFcmd,
			Name:      "trie_blocks",
			Help:      "number of live blocks in the history trie",
		}),
	}
}

// noopMetrics returns a Metrics instance that is not registered with any
// prometheus registry, used as BackingStore's default so tests don't need a
// registry around.
func noopMetrics() *Metrics {
	return &Metrics{
		inserts:        prometheus.NewCounter(prometheus.CounterOpts{Name: "unused_inserts"}),
		walks:          prometheus.NewCounter(prometheus.CounterOpts{Name: "unused_walks"}),
		resizes:        prometheus.NewCounter(prometheus.CounterOpts{Name: "unused_resizes"}),
		resizeTimeouts: prometheus.NewCounter(prometheus.CounterOpts{Name: "unused_resize_timeouts"}),
		blocks:         prometheus.NewGauge(prometheus.GaugeOpts{Name: "unused_blocks"}),
	}
}

func (m *Metrics) IncInserts()  { m.inserts.Inc() }
func (m *Metrics) IncWalks()    { m.walks.Inc() }
func (m *Metrics) IncResizes()  { m.resizes.Inc() }
func (m *Metrics) IncTimeouts() { m.resizeTimeouts.Inc() }
func (m *Metrics) SetBlocks(n uint64) {
	m.blocks.Set(float64(n))
}
