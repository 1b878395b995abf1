package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 提交完成的途径
const (
	CompletedAuto   = "auto"
	CompletedGraded = "graded"
	CompletedForced = "forced"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SubmissionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "langtest_submissions_started_total",
			Help: "Number of test attempts started",
		},
	)

	SubmissionsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langtest_submissions_submitted_total",
			Help: "Number of submitted attempts by outcome (completed or queued for grading)",
		},
		[]string{"outcome"},
	)

	AnswersGraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langtest_answers_graded_total",
			Help: "Number of manual grades written, by skill",
		},
		[]string{"skill"},
	)

	SubmissionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langtest_submissions_completed_total",
			Help: "Number of completed submissions by completion path",
		},
		[]string{"path"},
	)

	GradingQueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "langtest_grading_queue_length",
			Help: "Submissions waiting for manual grading at the last unfiltered queue listing",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			SubmissionsStarted,
			SubmissionsSubmitted,
			AnswersGraded,
			SubmissionsCompleted,
			GradingQueueLength,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
