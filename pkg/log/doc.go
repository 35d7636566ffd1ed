/*
Package log provides structured logging for the enrichment cache,
wrapping zerolog. It gives every component (cache, fetch coordinator,
sweeper, store backends, remote client, service facade) its own
component-tagged child logger via WithComponent, so a single process
log can be filtered down to one subsystem's output.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("fetch")
	logger.Info().Int("batch_size", len(ids)).Msg("issuing remote batch")

spec.md §6 specifies a single logger callback threaded through every
component, defaulting to the host's debug facility keyed
"ctgovservice". pkg/ctgov bridges a caller-supplied callback into this
package's logger (see Config.Logger in pkg/ctgov) so internal
diagnostics stay structured whether or not a caller overrides logging.
*/
package log
