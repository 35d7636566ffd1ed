/*
Package nct provides parsing, formatting, and validation helpers for
ClinicalTrials.gov NCT identifiers.

An NCT id is exactly the three letters "NCT" followed by eight decimal
digits, e.g. "NCT02513394". This package treats the identifier as an
unsigned integer in the range 0..99999999 internally, so it can be used
as a compact map key and array index, while exposing the canonical
textual form at every boundary.

# Usage

	id, ok := nct.Parse("NCT02513394")
	if !ok {
		// not a well-formed NCT id
	}
	s := id.String() // "NCT02513394"

Extracting an id from a study object's identifier list:

	id, ok := nct.ExtractFromStudy(obj)

Grouping a batch of study objects by the NCT id each one carries:

	groups := nct.GroupByNct(objs)
*/
package nct
