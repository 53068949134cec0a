package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vigil",
		Subsystem: "monitor",
		Name:      "sessions_started_total",
		Help:      "Total monitoring sessions started.",
	})

	sessionsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vigil",
		Subsystem: "monitor",
		Name:      "sessions_closed_total",
		Help:      "Total sessions closed by final risk tier.",
	}, []string{"tier"}) // "green", "yellow", "red"

	observationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vigil",
		Subsystem: "monitor",
		Name:      "observations_total",
		Help:      "Total observations processed by channel.",
	}, []string{"channel"}) // "face", "audio", "interrupt"

	violationsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vigil",
		Subsystem: "monitor",
		Name:      "violations_recorded_total",
		Help:      "Total violations recorded by kind.",
	}, []string{"kind"})

	violationAppendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vigil",
		Subsystem: "monitor",
		Name:      "violation_append_failures_total",
		Help:      "Violation log appends that failed after all retries.",
	})

	sessionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vigil",
		Subsystem: "monitor",
		Name:      "session_duration_seconds",
		Help:      "Time from session start to close in seconds.",
		Buckets:   []float64{60, 300, 600, 1200, 1800, 2700, 3600, 7200},
	})

	sessionScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vigil",
		Subsystem: "monitor",
		Name:      "session_score",
		Help:      "Distribution of final session scores.",
		Buckets:   []float64{0, 10, 25, 50, 65, 75, 85, 95, 100},
	})
)

func init() {
	prometheus.MustRegister(
		sessionsStarted,
		sessionsClosed,
		observationsTotal,
		violationsRecorded,
		violationAppendFailures,
		sessionDuration,
		sessionScore,
	)
}
