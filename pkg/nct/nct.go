package nct

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/cuemby/ctgov-cache/pkg/types"
)

// ctgovSystem is the identifier system ExtractFromStudy prefers.
const ctgovSystem = "http://clinicaltrials.gov/"

// maxValue is the highest value an 8-digit NCT suffix can hold.
const maxValue = 99_999_999

var pattern = regexp.MustCompile(`^NCT[0-9]{8}$`)

// ErrInvalidIdentifier is returned by Format when n exceeds the 8-digit
// range an NCT id can encode.
var ErrInvalidIdentifier = errors.New("nct: invalid identifier")

// ID is an NCT identifier encoded as its 8-digit decimal suffix.
type ID uint32

// String renders id in its canonical "NCT########" textual form.
func (id ID) String() string {
	return fmt.Sprintf("NCT%08d", uint32(id))
}

// IsValid reports whether s is exactly "NCT" followed by 8 decimal
// digits.
func IsValid(s string) bool {
	return pattern.MatchString(s)
}

// Parse converts a canonical NCT string into an ID. It returns
// (0, false) if s is not well-formed.
func Parse(s string) (ID, bool) {
	if !IsValid(s) {
		return 0, false
	}
	n, err := strconv.ParseUint(s[3:], 10, 32)
	if err != nil {
		return 0, false
	}
	return ID(n), true
}

// Format renders n as a canonical NCT string. It fails if n is outside
// the range an 8-digit suffix can represent.
func Format(n uint32) (string, error) {
	if n > maxValue {
		return "", fmt.Errorf("%w: %d exceeds 8 digits", ErrInvalidIdentifier, n)
	}
	return ID(n).String(), nil
}

// ExtractFromStudy scans obj's identifier list for its NCT id. It
// prefers an identifier explicitly tagged with the ClinicalTrials.gov
// system; failing that, it falls back to the first identifier value
// that parses as a valid NCT id.
func ExtractFromStudy(obj *types.StudyObject) (string, bool) {
	if obj == nil {
		return "", false
	}
	for _, ident := range obj.Identifier {
		if ident.System == ctgovSystem {
			return ident.Value, true
		}
	}
	for _, ident := range obj.Identifier {
		if IsValid(ident.Value) {
			return ident.Value, true
		}
	}
	return "", false
}

// GroupByNct buckets study objects by the NCT id each one carries,
// preserving each bucket's insertion order. Objects with no
// extractable NCT id are omitted from the result.
func GroupByNct(objs []*types.StudyObject) map[string][]*types.StudyObject {
	groups := make(map[string][]*types.StudyObject)
	for _, obj := range objs {
		id, ok := ExtractFromStudy(obj)
		if !ok {
			continue
		}
		groups[id] = append(groups[id], obj)
	}
	return groups
}
