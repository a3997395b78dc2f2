// Package metrics exposes the small set of Prometheus collectors this
// server carries as ambient observability (SPEC_FULL.md §4.9),
// grounded on packetd-packetd's pervasive prometheus/client_golang
// usage across its controller/pipeline/exporter packages.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every collector the server touches at runtime.
type Registry struct {
	CommandsTotal    *prometheus.CounterVec
	ExpiredKeysTotal prometheus.Counter
	ConnectedReplicas prometheus.Gauge
	MasterReplOffset  prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "goredis_commands_total",
			Help: "Total commands dispatched, by command name.",
		}, []string{"command"}),
		ExpiredKeysTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "goredis_expired_keys_total",
			Help: "Total keys removed by the expiration sweep.",
		}),
		ConnectedReplicas: factory.NewGauge(prometheus.GaugeOpts{
			Name: "goredis_connected_replicas",
			Help: "Number of replicas currently registered with this master.",
		}),
		MasterReplOffset: factory.NewGauge(prometheus.GaugeOpts{
			Name: "goredis_master_repl_offset",
			Help: "Current master_repl_offset.",
		}),
	}
}

// Serve starts the /metrics HTTP endpoint on addr. Callers should
// only invoke this when a metrics address was explicitly configured;
// it is disabled by default (SPEC_FULL.md §6).
func (r *Registry) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	r.server = &http.Server{Addr: addr, Handler: mux}
	return r.server.ListenAndServe()
}

func (r *Registry) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}
