package progress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts progression activity.
type Metrics struct {
	toggles         prometheus.Counter
	conflictRetries prometheus.Counter
	daysUnlocked    prometheus.Counter
	goalsCompleted  prometheus.Counter
}

// NewMetrics registers progression counters with the given registerer.
// A nil registerer uses the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		toggles: factory.NewCounter(prometheus.CounterOpts{
			Name: "habitix_task_toggles_total",
			Help: "Total task toggle operations.",
		}),
		conflictRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "habitix_toggle_conflict_retries_total",
			Help: "Toggle saves retried after losing a revision race.",
		}),
		daysUnlocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "habitix_days_unlocked_total",
			Help: "Roadmap days unlocked by completed predecessors.",
		}),
		goalsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "habitix_goals_completed_total",
			Help: "Goals whose every day reached completion.",
		}),
	}
}

func (m *Metrics) incToggles() {
	if m != nil {
		m.toggles.Inc()
	}
}

func (m *Metrics) incConflictRetries() {
	if m != nil {
		m.conflictRetries.Inc()
	}
}

func (m *Metrics) incDaysUnlocked() {
	if m != nil {
		m.daysUnlocked.Inc()
	}
}

func (m *Metrics) incGoalsCompleted() {
	if m != nil {
		m.goalsCompleted.Inc()
	}
}
