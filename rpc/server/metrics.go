package server

import (
	vm "github.com/VictoriaMetrics/metrics"
)

// serverMetrics are the connection counters of one server
type serverMetrics struct {
	set         *vm.Set
	connections *vm.Counter
	requests    *vm.Counter
}

func newServerMetrics() *serverMetrics {
	set := vm.NewSet()
	return &serverMetrics{
		set:         set,
		connections: set.NewCounter("skv_open_connections"),
		requests:    set.NewCounter("skv_requests_total"),
	}
}
