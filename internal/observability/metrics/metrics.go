package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	metricPrefix = "portal_"

	resultSuccess      = "success"
	resultError        = "error"
	resultInconsistent = "inconsistent"
)

var (
	registerOnce sync.Once

	statementAssembleTotal   *prometheus.CounterVec
	statementAssembleLatency *prometheus.HistogramVec
	statementExportTotal     *prometheus.CounterVec
	statementExportLatency   *prometheus.HistogramVec
	yearSummaryTotal         *prometheus.CounterVec

	ledgerFetchLatency *prometheus.HistogramVec
	inconsistencyTotal prometheus.Counter

	sweepAccountsTotal *prometheus.CounterVec
	sweepLastRun       prometheus.Gauge
)

// Init registers portal metrics and, when db is set, DB-backed gauges.
func Init(db *sql.DB, logger logrus.FieldLogger) {
	registerOnce.Do(func() {
		statementAssembleTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_assemble_total",
				Help: "Total statement assemble operations by result",
			},
			[]string{"result"},
		)
		statementAssembleLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_assemble_latency_seconds",
				Help:    "Statement assemble latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		statementExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_export_total",
				Help: "Total statement export operations by format and result",
			},
			[]string{"format", "result"},
		)
		statementExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_export_latency_seconds",
				Help:    "Statement export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)
		yearSummaryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "year_summary_total",
				Help: "Total year summary operations by result",
			},
			[]string{"result"},
		)

		ledgerFetchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ledger_fetch_latency_seconds",
				Help:    "Ledger store fetch latency in seconds by stream",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stream"},
		)
		inconsistencyTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_inconsistency_total",
				Help: "Total per-service breakdowns that did not reconcile with the consolidated balance",
			},
		)

		sweepAccountsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sweep_accounts_total",
				Help: "Accounts checked by the consistency sweep by result",
			},
			[]string{"result"},
		)
		sweepLastRun = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "sweep_last_run_timestamp_seconds",
				Help: "Unix time of the last completed consistency sweep",
			},
		)

		prometheus.MustRegister(
			statementAssembleTotal,
			statementAssembleLatency,
			statementExportTotal,
			statementExportLatency,
			yearSummaryTotal,
			ledgerFetchLatency,
			inconsistencyTotal,
			sweepAccountsTotal,
			sweepLastRun,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveStatementAssemble records assemble latency and result.
func ObserveStatementAssemble(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if statementAssembleTotal != nil {
		statementAssembleTotal.WithLabelValues(result).Inc()
	}
	if statementAssembleLatency != nil {
		statementAssembleLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveStatementExport records export latency and result.
func ObserveStatementExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if statementExportTotal != nil {
		statementExportTotal.WithLabelValues(format, result).Inc()
	}
	if statementExportLatency != nil {
		statementExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncYearSummary counts a year summary request.
func IncYearSummary(result string) {
	if result == "" {
		result = resultSuccess
	}
	if yearSummaryTotal != nil {
		yearSummaryTotal.WithLabelValues(result).Inc()
	}
}

// ObserveLedgerFetch records the latency of one store read.
func ObserveLedgerFetch(stream string, duration time.Duration) {
	if stream == "" {
		stream = "unknown"
	}
	if ledgerFetchLatency != nil {
		ledgerFetchLatency.WithLabelValues(stream).Observe(duration.Seconds())
	}
}

// IncInconsistency counts a failed per-service cross-check.
func IncInconsistency() {
	if inconsistencyTotal != nil {
		inconsistencyTotal.Inc()
	}
}

// IncSweepAccount counts one account checked by the sweep.
func IncSweepAccount(result string) {
	if result == "" {
		result = resultSuccess
	}
	if sweepAccountsTotal != nil {
		sweepAccountsTotal.WithLabelValues(result).Inc()
	}
}

// MarkSweepCompleted stamps the completion time of a sweep.
func MarkSweepCompleted(at time.Time) {
	if sweepLastRun != nil {
		sweepLastRun.Set(float64(at.Unix()))
	}
}

// Exported constants for callers.
const (
	ResultSuccess      = resultSuccess
	ResultError        = resultError
	ResultInconsistent = resultInconsistent

	StreamCharges     = "charges"
	StreamSettlements = "settlements"
)
