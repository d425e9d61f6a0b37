package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type RPCMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

var (
	rpcOnce     sync.Once
	rpcRegistry *RPCMetrics
)

// RPC returns the process-wide RPC metric set, registering it on first use.
func RPC() *RPCMetrics {
	rpcOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_rpc_requests_total",
				Help: "Count of JSON-RPC requests by method.",
			}, []string{"method"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_rpc_errors_total",
				Help: "Count of JSON-RPC error responses by method and code.",
			}, []string{"method", "code"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
		)
	})
	return rpcRegistry
}

// ObserveRequest counts one handled request for the method.
func (m *RPCMetrics) ObserveRequest(method string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.requests.WithLabelValues(method).Inc()
}

// ObserveError counts one error response for the method and code.
func (m *RPCMetrics) ObserveError(method string, code string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.errors.WithLabelValues(method, code).Inc()
}
