// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package analysis

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsAnalysis holds Prometheus metrics for the AnalyzerOrchestrator,
// scoped to this system's own phases (scan/parse/resolve/store).
type metricsAnalysis struct {
	once sync.Once

	filesScanned  prometheus.Counter
	filesChanged  prometheus.Counter
	filesDeleted  prometheus.Counter
	parseFailures prometheus.Counter
	resolveMisses prometheus.Counter
	nodesStored   prometheus.Counter
	relsStored    prometheus.Counter
	batchesSent   prometheus.Counter
	runsFailed    prometheus.Counter
	runsCancelled prometheus.Counter

	scanDuration    prometheus.Histogram
	parseDuration   prometheus.Histogram
	resolveDuration prometheus.Histogram
	storeDuration   prometheus.Histogram
	totalDuration   prometheus.Histogram
}

var analysisMetrics metricsAnalysis

func (m *metricsAnalysis) init() {
	m.once.Do(func() {
		m.filesScanned = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_files_scanned_total", Help: "Files discovered by the scanner across all analysis runs"})
		m.filesChanged = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_files_changed_total", Help: "Files classified as changed by the incremental index manager"})
		m.filesDeleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_files_deleted_total", Help: "Files removed since the prior index state"})
		m.parseFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_parse_failures_total", Help: "Per-file parse failures skipped and logged"})
		m.resolveMisses = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_resolve_misses_total", Help: "Relationships dropped because their target could not be resolved"})
		m.nodesStored = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_nodes_stored_total", Help: "Nodes committed to the graph store"})
		m.relsStored = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_relationships_stored_total", Help: "Relationships committed to the graph store"})
		m.batchesSent = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_batches_committed_total", Help: "Node and relationship batches committed"})
		m.runsFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_runs_failed_total", Help: "Analysis runs that ended with a failed checkpoint"})
		m.runsCancelled = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_runs_cancelled_total", Help: "Analysis runs ended by cooperative cancellation"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
		m.scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "codegraph_scan_seconds", Help: "Duration of the scan phase", Buckets: buckets})
		m.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "codegraph_parse_seconds", Help: "Duration of the parse phase", Buckets: buckets})
		m.resolveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "codegraph_resolve_seconds", Help: "Duration of the relationship resolution phase", Buckets: buckets})
		m.storeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "codegraph_store_seconds", Help: "Duration of the node/relationship store phase", Buckets: buckets})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "codegraph_analysis_seconds", Help: "Total duration of one analysis run", Buckets: buckets})

		prometheus.MustRegister(
			m.filesScanned, m.filesChanged, m.filesDeleted,
			m.parseFailures, m.resolveMisses,
			m.nodesStored, m.relsStored, m.batchesSent,
			m.runsFailed, m.runsCancelled,
			m.scanDuration, m.parseDuration, m.resolveDuration, m.storeDuration, m.totalDuration,
		)
	})
}
