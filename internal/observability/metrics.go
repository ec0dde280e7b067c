package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rsvpdash_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	MessagesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rsvpdash_messages_created_total", Help: "Messages created by send calls"},
		[]string{"type"},
	)
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rsvpdash_message_transitions_total", Help: "Message status transitions"},
		[]string{"status", "result"},
	)
	RSVPSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rsvpdash_rsvp_submissions_total", Help: "RSVP submissions"},
		[]string{"result"},
	)
	ImportRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rsvpdash_import_rows_total", Help: "Contact import rows"},
		[]string{"result"},
	)
	ReportBuild = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "rsvpdash_report_build_seconds", Help: "Report aggregation latency"},
	)
	StatusCallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rsvpdash_status_callbacks_total", Help: "Signed status callbacks received"},
		[]string{"status"},
	)
	SchedulerPanics = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rsvpdash_scheduler_panics_total", Help: "Scheduled callbacks that panicked"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, MessagesCreated, StatusTransitions, RSVPSubmissions, ImportRows, ReportBuild, StatusCallbacks, SchedulerPanics)
}
