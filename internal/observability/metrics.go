package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activitiesRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carbon_service",
		Subsystem: "accounting",
		Name:      "activities_recorded_total",
		Help:      "Number of activities accepted into the log, by category.",
	}, []string{"category"})
	carbonSavedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "carbon_service",
		Subsystem: "accounting",
		Name:      "carbon_saved_kg_total",
		Help:      "Total kg CO2e added to user accumulators.",
	})
	achievementsUnlocked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "carbon_service",
		Subsystem: "accounting",
		Name:      "achievements_unlocked_total",
		Help:      "Number of achievement unlock rows created.",
	})
	accountingFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "carbon_service",
		Subsystem: "accounting",
		Name:      "failures_total",
		Help:      "Storage failures in the record/accumulate/unlock pipeline.",
	})
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "carbon_service",
		Subsystem: "persistence",
		Name:      "last_activity_recorded_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted to Postgres.",
	})
)

func init() {
	prometheus.MustRegister(activitiesRecorded, carbonSavedTotal, achievementsUnlocked, accountingFailures, activityPersistGauge)
}

// RecordActivityRecorded counts a persisted activity and updates the watermark gauge.
func RecordActivityRecorded(category string, ts time.Time) {
	activitiesRecorded.WithLabelValues(category).Inc()
	if !ts.IsZero() {
		activityPersistGauge.Set(float64(ts.Unix()))
	}
}

// RecordCarbonSaved counts kg CO2e applied to an accumulator.
func RecordCarbonSaved(amount float64) {
	if amount > 0 {
		carbonSavedTotal.Add(amount)
	}
}

// RecordAchievementUnlocked counts a newly created unlock row.
func RecordAchievementUnlocked() {
	achievementsUnlocked.Inc()
}

// RecordAccountingFailure counts a storage failure surfaced by the pipeline.
func RecordAccountingFailure() {
	accountingFailures.Inc()
}
