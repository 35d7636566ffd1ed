/*
Package store defines the durable store abstraction used by the
enrichment cache to persist fetched study records across restarts.

Two backends implement Store (spec.md §4.B): sqlstore, backed by a
single SQLite table with an upsert-on-write contract and a migrations
table, and filestore, backed by one JSON file per NCT id under a data
directory. The rest of the cache (pkg/cache, pkg/fetch, pkg/ctgov)
only ever talks to the Store interface, never to a concrete backend,
so either can be swapped in at construction time with no other code
change.

A record is stored as self-describing JSON bytes: pkg/fetch decodes
the remote response into a types.StudyRecord and stores that value's
JSON encoding, so fields the type does not model are not kept.
Parsing the stored bytes back into a types.StudyRecord happens above
this layer, in pkg/cache.
*/
package store
