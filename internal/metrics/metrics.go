package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	Labels prometheus.Labels
}

func copyLabels(p prometheus.Labels) prometheus.Labels {
	x := prometheus.Labels{}
	for k, v := range p {
		x[k] = v
	}

	return x
}

// Metrics collects counters and stage timings for job runs.
// The zero value is not usable; use New.
type Metrics struct {
	totalSuccessfulJobs prometheus.Counter
	totalFailedJobs     prometheus.Counter
	currentJobs         prometheus.Gauge
	jobDurationSeconds  prometheus.Histogram

	loadImageDurationSeconds prometheus.Histogram
	compositeDurationSeconds prometheus.Histogram
	encodeDurationSeconds    prometheus.Histogram

	totalBytesRead    prometheus.Counter
	totalBytesWritten prometheus.Counter
	totalImagesLoaded prometheus.Counter
	inputContentTypes *prometheus.CounterVec
}

func New(o Options) *Metrics {
	successful := copyLabels(o.Labels)
	failed := copyLabels(o.Labels)
	read := copyLabels(o.Labels)
	written := copyLabels(o.Labels)

	successful["state"] = "successful"
	failed["state"] = "failed"
	read["state"] = "read"
	written["state"] = "written"

	return &Metrics{
		totalSuccessfulJobs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "subcat",
			Name:        "total_jobs",
			Help:        "The total number of finished jobs",
			ConstLabels: successful,
		}),
		totalFailedJobs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "subcat",
			Name:        "total_jobs",
			Help:        "The total number of finished jobs",
			ConstLabels: failed,
		}),
		currentJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "subcat",
			Name:        "current_jobs",
			Help:        "The current number of running jobs",
			ConstLabels: copyLabels(o.Labels),
		}),
		jobDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "subcat",
			Name:        "job_duration_seconds",
			Help:        "The seconds spent running jobs",
			ConstLabels: copyLabels(o.Labels),
		}),
		loadImageDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "subcat",
			Name:        "load_image_duration_seconds",
			Help:        "The seconds spent reading, decoding and cropping one source image",
			ConstLabels: copyLabels(o.Labels),
		}),
		compositeDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "subcat",
			Name:        "composite_duration_seconds",
			Help:        "The seconds spent stacking crops",
			ConstLabels: copyLabels(o.Labels),
		}),
		encodeDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "subcat",
			Name:        "encode_duration_seconds",
			Help:        "The seconds spent encoding and writing the output",
			ConstLabels: copyLabels(o.Labels),
		}),
		totalBytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "subcat",
			Name:        "total_bytes",
			Help:        "The total number of bytes read and written",
			ConstLabels: read,
		}),
		totalBytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "subcat",
			Name:        "total_bytes",
			Help:        "The total number of bytes read and written",
			ConstLabels: written,
		}),
		totalImagesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "subcat",
			Name:        "total_images",
			Help:        "The total number of source images loaded",
			ConstLabels: copyLabels(o.Labels),
		}),
		inputContentTypes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "subcat",
			Name:        "input_content_types",
			Help:        "The number of source images per detected content type",
			ConstLabels: copyLabels(o.Labels),
		}, []string{"content_type"}),
	}
}

func (m *Metrics) Register(r prometheus.Registerer) {
	r.MustRegister(
		m.currentJobs,
		m.jobDurationSeconds,
		m.totalFailedJobs,
		m.totalSuccessfulJobs,

		m.loadImageDurationSeconds,
		m.compositeDurationSeconds,
		m.encodeDurationSeconds,

		m.totalBytesRead,
		m.totalBytesWritten,
		m.totalImagesLoaded,
		m.inputContentTypes,
	)
}

// StartJob marks a job as running. The returned func records the outcome.
func (m *Metrics) StartJob() func(success bool) {
	start := time.Now()
	m.currentJobs.Inc()

	return func(success bool) {
		if success {
			m.totalSuccessfulJobs.Inc()
		} else {
			m.totalFailedJobs.Inc()
		}
		m.currentJobs.Dec()
		m.jobDurationSeconds.Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) LoadImage() func() {
	return m.timer(m.loadImageDurationSeconds)
}

func (m *Metrics) Composite() func() {
	return m.timer(m.compositeDurationSeconds)
}

func (m *Metrics) Encode() func() {
	return m.timer(m.encodeDurationSeconds)
}

func (m *Metrics) BytesRead(n int) {
	m.totalBytesRead.Add(float64(n))
}

func (m *Metrics) BytesWritten(n int) {
	m.totalBytesWritten.Add(float64(n))
}

// ImageLoaded counts a decoded source image by its sniffed content type.
func (m *Metrics) ImageLoaded(contentType string) {
	m.totalImagesLoaded.Inc()
	m.inputContentTypes.WithLabelValues(contentType).Inc()
}

func (m *Metrics) timer(h prometheus.Histogram) func() {
	start := time.Now()

	return func() {
		h.Observe(time.Since(start).Seconds())
	}
}
