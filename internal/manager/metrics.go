package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelhost",
		Subsystem: "manager",
		Name:      "loads_total",
		Help:      "Total successful model loads",
	})

	loadFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelhost",
		Subsystem: "manager",
		Name:      "load_failures_total",
		Help:      "Total failed model loads",
	})

	downloadBytesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelhost",
		Subsystem: "manager",
		Name:      "download_bytes_total",
		Help:      "Total bytes observed in load progress samples",
	})

	generationsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelhost",
		Subsystem: "manager",
		Name:      "generations_total",
		Help:      "Total generation streams started",
	})

	generationFragmentsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelhost",
		Subsystem: "manager",
		Name:      "generation_fragments_total",
		Help:      "Total text fragments yielded by generation streams",
	})

	evictionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelhost",
		Subsystem: "manager",
		Name:      "evictions_total",
		Help:      "Total cache-belief evictions",
	})

	reconcilesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelhost",
		Subsystem: "manager",
		Name:      "reconciles_total",
		Help:      "Total cache reconciliation runs",
	})

	cachedModelsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "modelhost",
		Subsystem: "manager",
		Name:      "cached_models",
		Help:      "Models currently believed cached",
	})
)

func init() {
	prometheus.MustRegister(
		loadsCounter,
		loadFailuresCounter,
		downloadBytesCounter,
		generationsCounter,
		generationFragmentsCounter,
		evictionsCounter,
		reconcilesCounter,
		cachedModelsGauge,
	)
}
