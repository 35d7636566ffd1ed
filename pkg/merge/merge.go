package merge

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/cuemby/ctgov-cache/pkg/metrics"
	"github.com/cuemby/ctgov-cache/pkg/types"
)

const phaseCodeSystem = "http://terminology.hl7.org/CodeSystem/research-study-phase"

var fhirDate = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?$`)

var phaseKebab = map[string]string{
	"NA":            "n-a",
	"EARLY_PHASE1":  "early-phase-1",
	"PHASE1":        "phase-1",
	"PHASE2":        "phase-2",
	"PHASE3":        "phase-3",
	"PHASE4":        "phase-4",
	"PHASE1_PHASE2": "phase-1-phase-2",
	"PHASE2_PHASE3": "phase-2-phase-3",
}

var statusMap = map[string]string{
	"ACTIVE_NOT_RECRUITING":     "closed-to-accrual",
	"COMPLETED":                 "completed",
	"ENROLLING_BY_INVITATION":   "active",
	"NOT_YET_RECRUITING":        "approved",
	"RECRUITING":                "active",
	"SUSPENDED":                 "temporarily-closed-to-accrual",
	"TERMINATED":                "administratively-completed",
	"WITHDRAWN":                 "withdrawn",
	"AVAILABLE":                 "completed",
	"NO_LONGER_AVAILABLE":       "closed-to-accrual",
	"TEMPORARILY_NOT_AVAILABLE": "temporarily-closed-to-accrual",
	"APPROVED_FOR_MARKETING":    "completed",
	"WITHHELD":                  "in-review",
	"UNKNOWN":                   "in-review",
}

// Merge fills every absent field of target from source, per spec.md
// §4.F's field rules, and returns target. It is a no-op if source has
// no protocol section.
func Merge(target *types.StudyObject, source *types.StudyRecord) *types.StudyObject {
	if target == nil {
		return target
	}
	if source == nil || reflect.DeepEqual(source.ProtocolSection, types.ProtocolSection{}) {
		return target
	}
	metrics.MergeOpsTotal.Inc()

	ps := source.ProtocolSection

	mergeEnrollment(target, ps)
	mergeDescription(target, ps)
	mergePhase(target, ps)
	mergeCategory(target, ps)
	mergeStatus(target, ps)
	mergeCondition(target, ps)
	mergeSites(target, ps)
	mergeArms(target, ps)
	mergeProtocols(target, ps)
	mergeContacts(target, ps)
	mergePeriod(target, ps)

	return target
}

func mergeEnrollment(target *types.StudyObject, ps types.ProtocolSection) {
	if target.Enrollment != nil {
		return
	}
	criteria := ps.Eligibility.Criteria
	if criteria == "" {
		return
	}
	groupID := "group" + target.ID
	target.Contained = append(target.Contained, &types.Group{
		IDValue: groupID,
		Type:    "person",
		Actual:  false,
	})
	target.Enrollment = &types.Reference{
		Reference: "#" + groupID,
		Display:   criteria,
	}
}

func mergeDescription(target *types.StudyObject, ps types.ProtocolSection) {
	if target.Description != "" {
		return
	}
	target.Description = ps.Description.BriefSummary
}

func mergePhase(target *types.StudyObject, ps types.ProtocolSection) {
	if target.Phase != nil {
		return
	}
	if len(ps.Design.Phases) == 0 {
		return
	}
	code := phaseToKebab(ps.Design.Phases[0])
	target.Phase = &types.CodeableConcept{
		Coding: []types.Coding{{System: phaseCodeSystem, Code: code}},
	}
}

func phaseToKebab(token string) string {
	if v, ok := phaseKebab[token]; ok {
		return v
	}
	s := strings.ToLower(token)
	return strings.ReplaceAll(s, "_", "-")
}

func mergeCategory(target *types.StudyObject, ps types.ProtocolSection) {
	di := ps.Design.DesignInfo
	labels := []struct {
		label string
		value string
	}{
		{"Study Type", ps.Design.StudyType},
		{"Intervention Model", firstNonEmpty(di.InterventionModel, di.InterventionModelDescription)},
		{"Primary Purpose", di.PrimaryPurpose},
		{"Masking", firstNonEmpty(di.MaskingInfo.Masking, di.MaskingInfo.MaskingDescription)},
		{"Allocation", di.Allocation},
		{"Time Perspective", di.TimePerspective},
		{"Observational Model", di.ObservationalModel},
	}
	for _, l := range labels {
		if l.value == "" {
			continue
		}
		prefix := l.label + ":"
		if hasCategoryPrefix(target.Category, prefix) {
			continue
		}
		target.Category = append(target.Category, types.CodeableConcept{
			Text: fmt.Sprintf("%s: %s", l.label, titleCase(l.value)),
		})
	}
}

func hasCategoryPrefix(categories []types.CodeableConcept, prefix string) bool {
	for _, c := range categories {
		if strings.HasPrefix(c.Text, prefix) {
			return true
		}
	}
	return false
}

func mergeStatus(target *types.StudyObject, ps types.ProtocolSection) {
	if target.Status != "" && target.Status != "active" {
		return
	}
	mapped, ok := statusMap[ps.Status.LastKnownStatus]
	if !ok {
		return
	}
	target.Status = mapped
}

func mergeCondition(target *types.StudyObject, ps types.ProtocolSection) {
	if len(target.Condition) > 0 {
		return
	}
	for _, c := range ps.Conditions.Conditions {
		target.Condition = append(target.Condition, types.CodeableConcept{Text: c})
	}
}

func mergeSites(target *types.StudyObject, ps types.ProtocolSection) {
	if len(target.Site) > 0 {
		return
	}
	for i, loc := range ps.ContactsLocations.Locations {
		id := fmt.Sprintf("location-%d", i)
		site := &types.SiteLocation{
			IDValue: id,
			Name:    loc.Facility,
		}
		if loc.City != "" && loc.Country != "" {
			site.Address = &types.Address{
				Use:        "work",
				City:       loc.City,
				State:      loc.State,
				PostalCode: loc.Zip,
				Country:    loc.Country,
			}
		}
		site.Telecom = append(site.Telecom, contactPoints(loc.Contacts)...)

		target.Contained = append(target.Contained, site)
		target.Site = append(target.Site, types.Reference{
			Reference: "#" + id,
			Display:   loc.Facility,
		})
	}
}

func mergeArms(target *types.StudyObject, ps types.ProtocolSection) {
	if len(target.Arm) > 0 {
		return
	}
	for _, ag := range ps.ArmsInterventions.ArmGroups {
		if ag.Label == "" {
			continue
		}
		arm := types.Arm{
			Name:        ag.Label,
			Description: ag.Description,
		}
		if ag.Type != "" {
			arm.Type = &types.CodeableConcept{
				Text:   titleCase(ag.Type),
				Coding: []types.Coding{{Code: strings.ReplaceAll(strings.ToLower(ag.Type), "_", "-")}},
			}
		}
		target.Arm = append(target.Arm, arm)
	}
}

func mergeProtocols(target *types.StudyObject, ps types.ProtocolSection) {
	if len(target.Protocol) > 0 {
		return
	}
	index := 0
	for _, iv := range ps.ArmsInterventions.Interventions {
		labels := iv.ArmGroupLabels
		if len(labels) == 0 {
			labels = []string{""}
		}
		for _, label := range labels {
			id := fmt.Sprintf("plan-%d", index)
			index++
			plan := &types.PlanDefinition{
				IDValue:     id,
				Status:      "unknown",
				Title:       iv.Name,
				Description: iv.Description,
			}
			if len(iv.OtherNames) > 0 {
				plan.Subtitle = iv.OtherNames[0]
			}
			if iv.Type != "" {
				plan.Type = &types.CodeableConcept{Text: titleCase(iv.Type)}
			}
			if label != "" {
				plan.SubjectCodeableConcept = &types.CodeableConcept{Text: label}
			}
			target.Contained = append(target.Contained, plan)
			target.Protocol = append(target.Protocol, types.Reference{Reference: "#" + id})
		}
	}
}

func mergeContacts(target *types.StudyObject, ps types.ProtocolSection) {
	if len(target.Contact) > 0 {
		return
	}
	for _, c := range ps.ContactsLocations.CentralContacts {
		if c.Name == "" {
			continue
		}
		target.Contact = append(target.Contact, types.ContactDetail{
			Name:    c.Name,
			Telecom: contactPoints([]types.ContactInfo{c}),
		})
	}
}

func contactPoints(contacts []types.ContactInfo) []types.ContactPoint {
	var out []types.ContactPoint
	for _, c := range contacts {
		if c.Email != "" {
			out = append(out, types.ContactPoint{System: "email", Value: c.Email, Use: "work"})
		}
		if c.Phone != "" {
			out = append(out, types.ContactPoint{System: "phone", Value: c.Phone, Use: "work"})
		}
	}
	return out
}

func mergePeriod(target *types.StudyObject, ps types.ProtocolSection) {
	if target.Period != nil {
		return
	}
	start := ps.Status.StartDateStruct.Date
	end := ps.Status.CompletionDateStruct.Date

	period := types.Period{}
	any := false
	if fhirDate.MatchString(start) {
		period.Start = start
		any = true
	}
	if fhirDate.MatchString(end) {
		period.End = end
		any = true
	}
	if any {
		target.Period = &period
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// titleCase renders an upper-snake token like "CASE_CONTROL" as
// "Case Control" (spec.md §4.F title-casing rule).
func titleCase(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		lower := strings.ToLower(w)
		words[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(words, " ")
}
