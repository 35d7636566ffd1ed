/*
Package merge implements the non-destructive projection of a remote
study record onto a caller's study object (spec.md §4.F): each named
target field is filled from the source record if and only if it is
currently absent, with the phase/category/status/arm-type mappings and
the title-casing rule spec.md specifies. Merge is pure and idempotent
with respect to (target, source).
*/
package merge
