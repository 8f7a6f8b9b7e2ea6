// Package metrics exposes the CourseFlow Prometheus collectors.
//
// Metric names follow the original operational dashboards:
//
//	enrollment_requests_total{status}  counter, status=queued|error
//	enrollment_latency_seconds         histogram, intake latency
//	courseflow_queue_depth{course_id}  gauge
//	courseflow_seats_taken{course_id}  gauge
//	courseflow_capacity{course_id}     gauge
//	allocation_outcomes_total{outcome} counter, worker-side decisions
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry *prometheus.Registry

	EnrollmentRequests *prometheus.CounterVec
	EnrollmentLatency  prometheus.Histogram
	AllocationOutcomes *prometheus.CounterVec

	QueueDepth *prometheus.GaugeVec
	SeatsTaken *prometheus.GaugeVec
	Capacity   *prometheus.GaugeVec
}

// New builds the collectors on a private registry so tests can run multiple
// instances without duplicate-registration panics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())

	m := &Metrics{
		registry: registry,
		EnrollmentRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_requests_total",
			Help: "Total enrollment requests by intake status.",
		}, []string{"status"}),
		EnrollmentLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "enrollment_latency_seconds",
			Help:    "Enrollment intake latency.",
			Buckets: prometheus.DefBuckets,
		}),
		AllocationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allocation_outcomes_total",
			Help: "Allocation transaction outcomes.",
		}, []string{"outcome"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "courseflow_queue_depth",
			Help: "Current intake queue depth per course.",
		}, []string{"course_id"}),
		SeatsTaken: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "courseflow_seats_taken",
			Help: "Seats taken per course.",
		}, []string{"course_id"}),
		Capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "courseflow_capacity",
			Help: "Course capacity.",
		}, []string{"course_id"}),
	}

	registry.MustRegister(
		m.EnrollmentRequests,
		m.EnrollmentLatency,
		m.AllocationOutcomes,
		m.QueueDepth,
		m.SeatsTaken,
		m.Capacity,
	)
	return m
}

// Registry returns the backing registry for the /metrics exposition handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CourseLabel renders a course id the way the gauges are labelled.
func CourseLabel(courseID int64) string {
	return strconv.FormatInt(courseID, 10)
}

// SetCourseGauges updates the per-course gauges in one shot.
func (m *Metrics) SetCourseGauges(courseID int64, queueDepth int64, seatsTaken, capacity int) {
	label := CourseLabel(courseID)
	m.QueueDepth.WithLabelValues(label).Set(float64(queueDepth))
	m.SeatsTaken.WithLabelValues(label).Set(float64(seatsTaken))
	m.Capacity.WithLabelValues(label).Set(float64(capacity))
}
