package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	duration   *prom.HistogramVec
	outcomes   *prom.CounterVec
	recovered  prom.Counter
	images     *prom.CounterVec
	queueDepth prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		duration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "md2docx",
			Name:      "conversion_duration_seconds",
			Help:      "Duration of document conversions",
			Buckets:   prom.DefBuckets,
		}, []string{"source"}),
		outcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "md2docx",
			Name:      "conversion_outcomes_total",
			Help:      "Conversion outcomes by final status",
		}, []string{"outcome"}),
		recovered: prom.NewCounter(prom.CounterOpts{
			Namespace: "md2docx",
			Name:      "recovered_units_total",
			Help:      "Malformed units, skipped blocks and failed images recovered during conversion",
		}),
		images: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "md2docx",
			Name:      "image_fetches_total",
			Help:      "Image fetches by result",
		}, []string{"result"}),
		queueDepth: prom.NewGauge(prom.GaugeOpts{
			Namespace: "md2docx",
			Name:      "queue_depth",
			Help:      "Conversion jobs waiting for a worker",
		}),
	}
	reg.MustRegister(pr.duration, pr.outcomes, pr.recovered, pr.images, pr.queueDepth)
	return pr
}

func (p *PrometheusRecorder) ObserveConversion(source string, d time.Duration, outcome Outcome) {
	if p == nil {
		return
	}
	p.duration.WithLabelValues(source).Observe(d.Seconds())
	p.outcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddRecoveredUnits(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.recovered.Add(float64(n))
}

func (p *PrometheusRecorder) IncImageFetch(success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.images.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}

// HTTPHandler serves the metrics registered on reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
