// Package metrics exports coredata and crawler metrics to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/coredata"
	"github.com/hupe1980/coredata/crawl"
)

var (
	_ coredata.MetricsCollector = (*Prometheus)(nil)
	_ crawl.Observer            = (*Prometheus)(nil)
)

// Prometheus implements coredata.MetricsCollector and crawl.Observer.
type Prometheus struct {
	opLatency       *prometheus.HistogramVec
	recordsIngested prometheus.Counter
	recordsDropped  prometheus.Counter
	shardsWritten   prometheus.Counter
	datasetRows     prometheus.Gauge
	datasetShards   prometheus.Gauge
	fetches         *prometheus.CounterVec
	iterated        *prometheus.CounterVec
	apiRequests     *prometheus.CounterVec
	apiLatency      prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coredata_operation_latency_seconds",
			Help:    "Latency of dataset operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		recordsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coredata_records_ingested_total",
			Help: "Records read by conversions, before deduplication",
		}),
		recordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coredata_records_dropped_total",
			Help: "Duplicate records dropped by conversions",
		}),
		shardsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coredata_shards_written_total",
			Help: "Shard files written by conversions",
		}),
		datasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coredata_dataset_rows",
			Help: "Records in the most recently opened dataset",
		}),
		datasetShards: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coredata_dataset_shards",
			Help: "Shards in the most recently opened dataset",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coredata_line_fetches_total",
			Help: "Line fetches by cache result",
		}, []string{"cache"}),
		iterated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coredata_iterated_records_total",
			Help: "Records visited by iterations",
		}, []string{"result"}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coredata_api_requests_total",
			Help: "CORE API requests by HTTP status",
		}, []string{"code"}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coredata_api_request_latency_seconds",
			Help:    "Latency of CORE API requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coredata_http_requests_total",
			Help: "Read API requests",
		}, []string{"route", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coredata_http_request_latency_seconds",
			Help:    "Latency of read API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		p.opLatency,
		p.recordsIngested,
		p.recordsDropped,
		p.shardsWritten,
		p.datasetRows,
		p.datasetShards,
		p.fetches,
		p.iterated,
		p.apiRequests,
		p.apiLatency,
		p.httpRequests,
		p.httpLatency,
	)
	return p
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordConvert implements coredata.MetricsCollector.
func (p *Prometheus) RecordConvert(records, dropped, shards int, d time.Duration, err error) {
	p.opLatency.WithLabelValues("convert", status(err)).Observe(d.Seconds())
	p.recordsIngested.Add(float64(records))
	p.recordsDropped.Add(float64(dropped))
	p.shardsWritten.Add(float64(shards))
}

// RecordOpen implements coredata.MetricsCollector.
func (p *Prometheus) RecordOpen(rows, shards int, d time.Duration, err error) {
	p.opLatency.WithLabelValues("open", status(err)).Observe(d.Seconds())
	if err == nil {
		p.datasetRows.Set(float64(rows))
		p.datasetShards.Set(float64(shards))
	}
}

// RecordFetch implements coredata.MetricsCollector.
func (p *Prometheus) RecordFetch(d time.Duration, cacheHit bool, err error) {
	p.opLatency.WithLabelValues("fetch", status(err)).Observe(d.Seconds())
	if cacheHit {
		p.fetches.WithLabelValues("hit").Inc()
	} else {
		p.fetches.WithLabelValues("miss").Inc()
	}
}

// RecordIterate implements coredata.MetricsCollector.
func (p *Prometheus) RecordIterate(yielded, skipped int, d time.Duration) {
	p.opLatency.WithLabelValues("iterate", "success").Observe(d.Seconds())
	p.iterated.WithLabelValues("yielded").Add(float64(yielded))
	p.iterated.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveRequest implements crawl.Observer. Transport failures are
// counted under code "0".
func (p *Prometheus) ObserveRequest(code int, d time.Duration, _ error) {
	p.apiRequests.WithLabelValues(strconv.Itoa(code)).Inc()
	p.apiLatency.Observe(d.Seconds())
}

// ObserveHTTP records one read API request.
func (p *Prometheus) ObserveHTTP(route string, code int, d time.Duration) {
	p.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	p.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}
