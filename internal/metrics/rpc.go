package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(rpcRetriesTotal) }

var rpcRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lava_rpc_transport_retries_total",
		Help: "Scheduler RPC calls repeated after a transport error.",
	},
	[]string{"method"},
)

func IncRPCRetry(method string) {
	rpcRetriesTotal.WithLabelValues(method).Inc()
}
