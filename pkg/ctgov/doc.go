/*
Package ctgov is the service facade (spec.md §4.G): it wires a durable
store, the in-memory cache index, the fetch coordinator, and the
expiry sweeper into the four operations a caller actually needs —
UpdateResearchStudies, EnsureTrialsAvailable, GetCachedClinicalStudy,
and UpdateResearchStudy — plus Init/Destroy lifecycle management.
*/
package ctgov
