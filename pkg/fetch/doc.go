/*
Package fetch implements the fetch coordinator (spec.md §4.D): it
turns a caller's list of NCT ids into a guarantee that every id that
exists upstream is Ready in the cache, batching remote calls and
reconciling their results with pending cache entries under the
index's writer mutex.

Single-flight falls out of pkg/cache.Index.GetOrInsertPending: the
Pending entry is inserted before any network call, so a concurrent
caller requesting the same id observes the existing entry instead of
triggering a second fetch.
*/
package fetch
