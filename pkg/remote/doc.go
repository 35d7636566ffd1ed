/*
Package remote implements the ClinicalTrials.gov v2 API contract
described in spec.md §6: a GET against {endpoint}/studies with a
comma-separated filter.ids parameter, paginated via nextPageToken.

Its Client mirrors the teacher's pkg/health.HTTPChecker shape — an
injectable *http.Client field, a context-aware call, and a default
timeout — generalized from a single boolean health probe into a
paginated JSON-decoding fetch.
*/
package remote
