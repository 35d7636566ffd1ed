package types

// StudyRecord is the remote study description fetched from
// ClinicalTrials.gov. Field names mirror the v2 API's module layout so
// that pkg/merge's field-rule table reads as a direct translation of
// spec.md's source-path column.
type StudyRecord struct {
	ProtocolSection ProtocolSection `json:"protocolSection"`
}

// NCTID returns the identification module's NCT id, or "" if absent.
func (r *StudyRecord) NCTID() string {
	if r == nil {
		return ""
	}
	return r.ProtocolSection.Identification.NCTID
}

// ProtocolSection groups the named modules of a remote study record.
type ProtocolSection struct {
	Identification     IdentificationModule     `json:"identificationModule"`
	Description        DescriptionModule        `json:"descriptionModule"`
	Status              StatusModule              `json:"statusModule"`
	Design              DesignModule              `json:"designModule"`
	Conditions          ConditionsModule          `json:"conditionsModule"`
	Eligibility         EligibilityModule         `json:"eligibilityModule"`
	ArmsInterventions   ArmsInterventionsModule   `json:"armsInterventionsModule"`
	ContactsLocations   ContactsLocationsModule   `json:"contactsLocationsModule"`
}

type IdentificationModule struct {
	NCTID string `json:"nctId"`
}

type DescriptionModule struct {
	BriefSummary string `json:"briefSummary"`
}

type DateStruct struct {
	Date string `json:"date"`
}

type StatusModule struct {
	LastKnownStatus    string      `json:"lastKnownStatus"`
	OverallStatus      string      `json:"overallStatus"`
	StartDateStruct    DateStruct  `json:"startDateStruct"`
	CompletionDateStruct DateStruct `json:"completionDateStruct"`
}

type DesignInfo struct {
	InterventionModel            string `json:"interventionModel"`
	InterventionModelDescription string `json:"interventionModelDescription"`
	PrimaryPurpose                string `json:"primaryPurpose"`
	MaskingInfo                   MaskingInfo `json:"maskingInfo"`
	Allocation                    string `json:"allocation"`
	TimePerspective                string `json:"timePerspective"`
	ObservationalModel             string `json:"observationalModel"`
}

type MaskingInfo struct {
	Masking            string `json:"masking"`
	MaskingDescription string `json:"maskingDescription"`
}

type DesignModule struct {
	StudyType  string     `json:"studyType"`
	Phases     []string   `json:"phases"`
	DesignInfo DesignInfo `json:"designInfo"`
}

type ConditionsModule struct {
	Conditions []string `json:"conditions"`
}

type EligibilityModule struct {
	Criteria string `json:"eligibilityCriteria"`
}

type ArmGroup struct {
	Label       string `json:"label"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type Intervention struct {
	Type            string   `json:"type"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	ArmGroupLabels  []string `json:"armGroupLabels"`
	OtherNames      []string `json:"otherNames"`
}

type ArmsInterventionsModule struct {
	ArmGroups     []ArmGroup     `json:"armGroups"`
	Interventions []Intervention `json:"interventions"`
}

type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Location struct {
	Facility string        `json:"facility"`
	City     string        `json:"city"`
	State    string        `json:"state"`
	Country  string        `json:"country"`
	Zip      string        `json:"zip"`
	Contacts []ContactInfo `json:"contacts"`
}

type ContactsLocationsModule struct {
	CentralContacts []ContactInfo `json:"centralContacts"`
	Locations       []Location    `json:"locations"`
}

// --- Caller's entity -------------------------------------------------

// StudyObject is the caller's own study entity being enriched. Every
// field is optional; the cache only ever fills a field that is
// currently absent (spec.md invariant 5).
type StudyObject struct {
	ID          string
	Identifier  []Identifier
	Enrollment  *Reference
	Description string
	Phase       *CodeableConcept
	Category    []CodeableConcept
	Status      string
	Condition   []CodeableConcept
	Site        []Reference
	Arm         []Arm
	Protocol    []Reference
	Contact     []ContactDetail
	Period      *Period
	Contained   []ContainedResource
}

// Identifier is one entry of StudyObject.Identifier, e.g. the
// ClinicalTrials.gov registration the object was matched against.
type Identifier struct {
	System string
	Value  string
}

// CodeableConcept is a coded value with an optional human-readable
// rendering. Text-only CodeableConcepts (no Coding) are used for
// category and condition entries; Coding is populated when a concrete
// code system applies (e.g. the research-study-phase system).
type CodeableConcept struct {
	Text   string
	Coding []Coding
}

type Coding struct {
	System string
	Code   string
}

// Reference points at a Contained resource or an external one.
type Reference struct {
	Reference string // e.g. "#group1" for a contained resource
	Display   string
}

// Arm describes one arm of the study.
type Arm struct {
	Name        string
	Type        *CodeableConcept
	Description string
}

// ContactDetail is a name plus a set of telecom entries.
type ContactDetail struct {
	Name    string
	Telecom []ContactPoint
}

// ContactPoint is a single telecom entry (email or phone).
type ContactPoint struct {
	System string // "email" or "phone"
	Value  string
	Use    string // "work"
}

// Period is a start/end date pair, each an optional FHIR date string
// (YYYY, YYYY-MM, or YYYY-MM-DD).
type Period struct {
	Start string
	End   string
}

// ContainedResource is a referenceable sub-resource embedded in a
// StudyObject's Contained bag. The three concrete kinds the merge
// function produces implement it.
type ContainedResource interface {
	ResourceType() string
	ResourceID() string
}

// Group is a contained resource representing the enrolled population,
// referenced by StudyObject.Enrollment.
type Group struct {
	IDValue string
	Type    string // "person"
	Actual  bool
}

func (g *Group) ResourceType() string { return "Group" }
func (g *Group) ResourceID() string   { return g.IDValue }

// Address is a postal address, used by Location.
type Address struct {
	Use        string // "work"
	City       string
	State      string
	PostalCode string
	Country    string
}

// SiteLocation is a contained resource representing one study site,
// referenced by StudyObject.Site.
type SiteLocation struct {
	IDValue string
	Name    string
	Address *Address
	Telecom []ContactPoint
}

func (l *SiteLocation) ResourceType() string { return "Location" }
func (l *SiteLocation) ResourceID() string   { return l.IDValue }

// PlanDefinition is a contained resource representing one study arm's
// intervention plan, referenced by StudyObject.Protocol.
type PlanDefinition struct {
	IDValue                string
	Status                 string // "unknown"
	Title                  string
	Subtitle               string
	Description            string
	Type                   *CodeableConcept
	SubjectCodeableConcept *CodeableConcept
}

func (p *PlanDefinition) ResourceType() string { return "PlanDefinition" }
func (p *PlanDefinition) ResourceID() string   { return p.IDValue }
