package cluster

import (
	"fmt"
	"io"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// executorMetrics are the counters of one executor.
// Prometheus series live in a VictoriaMetrics set, the scatter statistics in
// a go-metrics registry.
type executorMetrics struct {
	set      *vm.Set
	binlog   *vm.Counter
	registry gometrics.Registry
	split    gometrics.Timer
	fanout   gometrics.Histogram
}

func newExecutorMetrics() *executorMetrics {
	set := vm.NewSet()
	registry := gometrics.NewRegistry()
	return &executorMetrics{
		set:      set,
		binlog:   set.NewCounter("skv_binlog_entries_total"),
		registry: registry,
		split:    gometrics.NewRegisteredTimer("executor.split", registry),
		fanout:   gometrics.NewRegisteredHistogram("executor.fanout", registry, gometrics.NewUniformSample(1028)),
	}
}

func (m *executorMetrics) command(name string) {
	m.set.GetOrCreateCounter(fmt.Sprintf("skv_commands_total{cmd=%q}", name)).Inc()
}

func (m *executorMetrics) failure(name string) {
	m.set.GetOrCreateCounter(fmt.Sprintf("skv_command_errors_total{cmd=%q}", name)).Inc()
}

func (m *executorMetrics) scattered(groups int, start time.Time) {
	m.fanout.Update(int64(groups))
	m.split.UpdateSince(start)
}

// WritePrometheus writes the executor counters in the Prometheus text format
func (e *Executor) WritePrometheus(w io.Writer) {
	e.metrics.set.WritePrometheus(w)
}

// Stats returns a snapshot of the scatter statistics (split latency and fan-out)
func (e *Executor) Stats() map[string]map[string]interface{} {
	return e.metrics.registry.GetAll()
}
