// Package metrics gives the teacher's prometheus/common dependency an
// actual home: a handful of plain counters, rendered on demand into the
// Prometheus text exposition format for logging/debugging. There is no
// scrape endpoint here (process bootstrap and any HTTP surface are out of
// scope per spec.md); Communicator.MetricsSnapshot just returns the
// rendered text so a caller can fold it into its own logs.
package metrics

import (
	"bytes"
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Counters tracks the handful of events the communicator's send surface and
// dispatch loop care to report.
type Counters struct {
	tasksSent        int64
	resultsSent      int64
	variablesSynced  int64
	reductionsStored int64
	peersEvicted     int64
}

// New builds a zeroed Counters.
func New() *Counters { return &Counters{} }

func (c *Counters) IncTasksSent()        { atomic.AddInt64(&c.tasksSent, 1) }
func (c *Counters) IncResultsSent()      { atomic.AddInt64(&c.resultsSent, 1) }
func (c *Counters) IncVariablesSynced()  { atomic.AddInt64(&c.variablesSynced, 1) }
func (c *Counters) IncReductionsStored() { atomic.AddInt64(&c.reductionsStored, 1) }
func (c *Counters) IncPeersEvicted()     { atomic.AddInt64(&c.peersEvicted, 1) }

// family builds a single-sample counter MetricFamily.
func family(name, help string, value int64) *dto.MetricFamily {
	v := float64(value)
	typ := dto.MetricType_COUNTER
	return &dto.MetricFamily{
		Name: strPtr(name),
		Help: strPtr(help),
		Type: &typ,
		Metric: []*dto.Metric{
			{Counter: &dto.Counter{Value: &v}},
		},
	}
}

func strPtr(s string) *string { return &s }

// Snapshot renders every counter into the Prometheus text exposition
// format via prometheus/common/expfmt, in the order the counters are
// defined above.
func (c *Counters) Snapshot() (string, error) {
	families := []*dto.MetricFamily{
		family("worker_tasks_sent_total", "Tasks sent to brokers.", atomic.LoadInt64(&c.tasksSent)),
		family("worker_results_sent_total", "Results sent to origin workers.", atomic.LoadInt64(&c.resultsSent)),
		family("worker_variables_synced_total", "Shared variables sent or applied locally.", atomic.LoadInt64(&c.variablesSynced)),
		family("worker_reductions_stored_total", "GROUP partials stored.", atomic.LoadInt64(&c.reductionsStored)),
		family("worker_peers_evicted_total", "Peer entries evicted after an unreachable send.", atomic.LoadInt64(&c.peersEvicted)),
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
