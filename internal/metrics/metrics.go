// Package metrics declares scint's docker/go-metrics namespaces: one
// *metrics.Namespace per subsystem, registered at package init so any
// component can pull a counter or timer off it without threading a
// registry handle through every constructor.
package metrics

import "github.com/docker/go-metrics"

const NamespacePrefix = "scint"

var (
	// CacheNamespace covers cache layout, manifest, and validity checks.
	CacheNamespace = metrics.NewNamespace(NamespacePrefix, "cache", nil)

	// SchedulerNamespace covers the DAG scheduler and worker pool.
	SchedulerNamespace = metrics.NewNamespace(NamespacePrefix, "scheduler", nil)

	// PromoteNamespace covers the cache promotion protocol.
	PromoteNamespace = metrics.NewNamespace(NamespacePrefix, "promote", nil)
)

func init() {
	metrics.Register(CacheNamespace)
	metrics.Register(SchedulerNamespace)
	metrics.Register(PromoteNamespace)
}

var (
	// CacheHits/CacheMisses count validity-check outcomes.
	CacheHits   = CacheNamespace.NewCounter("hits", "number of cache validity checks that succeeded")
	CacheMisses = CacheNamespace.NewCounter("misses", "number of cache validity checks that failed")

	// LegacyGemspecFallback counts how often the gemspec-presence
	// fallback accepted a cache entry that the strict manifest-based
	// check would have rejected.
	LegacyGemspecFallback = CacheNamespace.NewCounter("legacy_gemspec_fallback_total",
		"cache entries accepted via the legacy gemspec-presence fallback")

	// PromotionsWon/PromotionsLost count the two possible outcomes of a
	// promotion race: the caller that performed the move, and callers
	// that found the target already populated.
	PromotionsWon  = PromoteNamespace.NewCounter("won_total", "promote_tree calls that performed the move")
	PromotionsLost = PromoteNamespace.NewCounter("already_exists_total", "promote_tree calls that found the target already populated")

	// JobsDispatched is a per-type counter of scheduler dispatches.
	JobsDispatched = SchedulerNamespace.NewLabeledCounter("jobs_dispatched_total", "jobs dispatched to a worker", "type")

	// JobDuration times a job from dispatch to terminal state, per type.
	JobDuration = SchedulerNamespace.NewLabeledTimer("job_duration_seconds", "time from dispatch to terminal state", "type")
)
