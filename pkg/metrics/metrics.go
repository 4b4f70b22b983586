// Copyright Contributors to the Open Cluster Management project
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PromRegistry = prometheus.NewRegistry()

	SyncDuration = promauto.With(PromRegistry).NewHistogram(prometheus.HistogramOpts{
		Name: "acl_sync_duration_seconds",
		Help: "Time (seconds) a full ACL document sync cycle took, including retries and the reload wait.",
	})

	SyncFailed = promauto.With(PromRegistry).NewCounter(prometheus.CounterOpts{
		Name: "acl_sync_failed_total",
		Help: "The number of sync cycles that exhausted all retry attempts.",
	})

	SyncRetries = promauto.With(PromRegistry).NewCounter(prometheus.CounterOpts{
		Name: "acl_sync_retries_total",
		Help: "The number of sync attempts retried after a transient store failure.",
	})

	DocumentWriteConflicts = promauto.With(PromRegistry).NewCounter(prometheus.CounterOpts{
		Name: "acl_document_write_conflicts_total",
		Help: "The number of optimistic version conflicts detected while writing ACL documents.",
	})

	ReloadWaitTimeouts = promauto.With(PromRegistry).NewCounter(prometheus.CounterOpts{
		Name: "acl_reload_wait_timeouts_total",
		Help: "The number of sync cycles that timed out waiting for the enforcement layer to reload.",
	})

	CachedUsers = promauto.With(PromRegistry).NewGauge(prometheus.GaugeOpts{
		Name: "acl_cached_users",
		Help: "The number of user entries currently held in the project membership cache.",
	})

	DBConnectionFailed = promauto.With(PromRegistry).NewCounterVec(prometheus.CounterOpts{
		Name: "acl_db_connection_failed",
		Help: "The number of failed database connection attempts.",
	}, []string{"route"})

	DBQueryDuration = promauto.With(PromRegistry).NewHistogramVec(prometheus.HistogramOpts{
		Name: "acl_db_query_duration",
		Help: "Latency (seconds) for document store queries.",
	}, []string{"query_name"})

	AuthnFailed = promauto.With(PromRegistry).NewCounter(prometheus.CounterOpts{
		Name: "acl_authn_failed_total",
		Help: "The total number of project lookups rejected by the cluster authorization source.",
	})
)
