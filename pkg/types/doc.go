/*
Package types defines the data structures that flow through the
ClinicalTrials.gov enrichment cache.

There are two distinct shapes in play, and this package is careful to
keep them separate:

  - StudyRecord is the remote, authoritative description of a trial as
    returned by the ClinicalTrials.gov v2 API. It is parsed directly
    from the API's JSON and is otherwise opaque to the cache: the cache
    stores and retrieves it, but only pkg/merge interprets its fields.
  - StudyObject is the caller's own entity being enriched. It carries a
    richer, FHIR-ResearchStudy-shaped set of optional fields. The cache
    never constructs one from scratch; it only fills fields that are
    currently absent on an object the caller already owns.

# Study record shape

StudyRecord mirrors the ClinicalTrials.gov v2 "full study" JSON
envelope: a ProtocolSection containing named modules
(IdentificationModule, DescriptionModule, StatusModule, DesignModule,
ConditionsModule, EligibilityModule, ArmsInterventionsModule,
ContactsLocationsModule). Every module and every field within it is
optional on the wire; absence is represented by the Go zero value and
callers must treat zero values as "not present", never as meaningful
data.

# Study object shape

StudyObject's fields mirror spec.md's data model: Enrollment,
Description, Phase, Category, Status, Condition, Site, Arm, Protocol,
Contact, Period, and a Contained bag of referenceable sub-resources
(Group, Location, PlanDefinition). All are optional; an "absent" field
is a nil pointer, a nil/empty slice, or an empty string, depending on
its Go type.
*/
package types
