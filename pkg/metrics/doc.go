/*
Package metrics provides Prometheus instrumentation for the enrichment
cache. It carries the teacher's package-level-gauge-plus-Timer pattern
(pkg/metrics/metrics.go in the original Warren tree) but swaps its
cluster metrics for cache/store/fetch ones: entry counts by state,
cache hit/miss totals, fetch batch duration and size, and store
operation counters.

Unlike the teacher — a single long-running cluster process — this
package may be exercised by several Service instances within one test
binary, so registration happens once via Register, guarded by
sync.Once, rather than unconditionally in an init() func.
*/
package metrics
