/*
Package cache implements the per-NCT cache entry state machine and the
in-memory index that holds one entry per distinct NCT id (spec.md
§4.C, §4.E).

# Entry lifecycle

	            create(pending)
	                  │
	                  ▼
	               Pending ─── found() ──► Pending(found)
	                  │                        │
	            fail(e) │                ready()│
	                  ▼                        ▼
	               Failed                    Ready
	                  │                        │
	            remove()│              lastAccess updated on load
	                  ▼                        │
	                deleted                    │
	                                      remove() → deleted

An entry created from an existing durable record starts Ready. An
entry created speculatively by the fetch coordinator (pkg/fetch) starts
Pending with a nil createdAt; found() fills createdAt once the
coordinator's remote call confirms the id exists upstream; ready()
signals any goroutines suspended in Load. No waiter channel is
allocated until the first caller actually suspends in Load — an entry
no one is awaiting carries no dangling wait state.

# Index locking

Index holds two locks for two different jobs: dataMu (an RWMutex)
guards the id->entry map itself so Get/Keys are non-blocking against
readers even while a writer transaction is in flight, and writerMu (a
plain Mutex) serializes the sequence "do a store write, then flip the
affected entries' state", so the store and the index can never drift
apart (spec.md §5). pkg/fetch and the expiry sweeper both take
writerMu around that sequence; they never hold it across the HTTP call
itself, only around the store transaction plus the entry/index
mutation that follows it.
*/
package cache
