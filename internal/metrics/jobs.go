package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(attemptsTotal, verdictsTotal, sectionTimeoutsTotal, knownIssuesTotal)
}

var (
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lava_job_attempts_total",
			Help: "Job attempts, labeled by how the attempt ended.",
		},
		[]string{"outcome"}, // verdict, retry, known_issue, interrupted, fatal
	)

	verdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lava_job_final_status_total",
			Help: "Final job status reported at the end of each attempt.",
		},
		[]string{"status"},
	)

	sectionTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lava_section_timeouts_total",
			Help: "Log sections that exceeded their time budget.",
		},
		[]string{"section_type"},
	)

	knownIssuesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lava_known_issues_total",
			Help: "Known environmental failure signatures detected in job logs.",
		},
		[]string{"issue"},
	)
)

func IncAttempt(outcome string) {
	attemptsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncFinalStatus(status string) {
	verdictsTotal.WithLabelValues(norm(status)).Inc()
}

func IncSectionTimeout(sectionType string) {
	sectionTimeoutsTotal.WithLabelValues(norm(sectionType)).Inc()
}

func IncKnownIssue(issue string) {
	knownIssuesTotal.WithLabelValues(norm(issue)).Inc()
}
