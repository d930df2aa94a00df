// internal/qualification/engine.go
package qualification

import (
	"sort"
	"strings"
	"unicode"

	"lead-intake-workers/internal/models"
)

const (
	QualifiedThreshold = 60
	NurtureThreshold   = 40

	minPhoneDigits = 10
)

const (
	TagInvalid           = "invalid"
	TagUrgent            = "urgent"
	TagEmergency         = "emergency"
	TagVerifyInsurance   = "verify_insurance"
	TagFinancingInterest = "financing_interest"
)

// Input is the immutable snapshot of lead attributes the rules read.
type Input struct {
	Consent   bool
	Phone     string
	Urgency   string
	Insurance string
	Financing string
	ZipCode   string
	Notes     string
	Symptoms  []string
	Tags      []string
}

// Result is what a qualification run produces.
type Result struct {
	Status  models.QualificationStatus `json:"qualificationStatus"`
	Score   int                        `json:"qualificationScore"`
	Reasons []string                   `json:"qualificationReasons"`
	Tags    []string                   `json:"tags"`
}

// Rule is one predicate/effect pair evaluated against the input.
type Rule struct {
	Name  string
	Apply func(in Input, acc *Accumulator)
}

// Accumulator collects rule effects in evaluation order.
type Accumulator struct {
	score   int
	reasons []string
	tags    map[string]struct{}
}

func newAccumulator(tags []string) *Accumulator {
	acc := &Accumulator{reasons: []string{}, tags: make(map[string]struct{}, len(tags)+2)}
	for _, t := range tags {
		if t != "" {
			acc.tags[t] = struct{}{}
		}
	}
	return acc
}

func (a *Accumulator) Add(points int, reason string, tags ...string) {
	a.score += points
	a.reasons = append(a.reasons, reason)
	for _, t := range tags {
		a.tags[t] = struct{}{}
	}
}

func (a *Accumulator) Score() int { return a.score }

func (a *Accumulator) Reasons() []string { return a.reasons }

func (a *Accumulator) HasTag(tag string) bool {
	_, ok := a.tags[tag]
	return ok
}

func (a *Accumulator) sortedTags() []string {
	out := make([]string, 0, len(a.tags))
	for t := range a.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

type keywordRule struct {
	keywords []string
	points   int
	reason   string
	tag      string
}

var symptomRules = []keywordRule{
	{keywords: []string{"emergency", "toothache", "broken"}, points: 30, reason: "Emergency-like", tag: TagEmergency},
	{keywords: []string{"restorative", "crowns", "fillings"}, points: 15, reason: "Restorative intent"},
	{keywords: []string{"invisalign", "orthodontics"}, points: 15, reason: "Invisalign interest"},
	{keywords: []string{"cosmetic", "whitening", "veneers"}, points: 10, reason: "Cosmetic interest"},
	{keywords: []string{"checkup"}, points: 5, reason: "Checkup"},
}

// Rules returns the ordered rule list applied after the consent gate.
func Rules() []Rule {
	rules := []Rule{
		{Name: "phone", Apply: phoneRule},
		{Name: "urgency", Apply: urgencyRule},
	}
	for _, kr := range symptomRules {
		rules = append(rules, Rule{Name: "symptom:" + kr.keywords[0], Apply: kr.apply})
	}
	return append(rules,
		Rule{Name: "insurance", Apply: insuranceRule},
		Rule{Name: "financing", Apply: financingRule},
		Rule{Name: "zip", Apply: zipRule},
		Rule{Name: "notes", Apply: notesRule},
	)
}

var defaultRules = Rules()

// Qualify scores a lead snapshot. It performs no I/O and is deterministic.
func Qualify(in Input) Result {
	in = normalize(in)
	acc := newAccumulator(in.Tags)

	if !in.Consent {
		acc.Add(0, "Missing HIPAA consent", TagInvalid)
		return Result{
			Status:  models.QualificationDisqualified,
			Score:   0,
			Reasons: acc.reasons,
			Tags:    acc.sortedTags(),
		}
	}

	for _, r := range defaultRules {
		r.Apply(in, acc)
	}

	return Result{
		Status:  StatusForScore(acc.score),
		Score:   acc.score,
		Reasons: acc.reasons,
		Tags:    acc.sortedTags(),
	}
}

// StatusForScore maps a final score onto its band.
func StatusForScore(score int) models.QualificationStatus {
	switch {
	case score >= QualifiedThreshold:
		return models.QualificationQualified
	case score >= NurtureThreshold:
		return models.QualificationNurture
	default:
		return models.QualificationDisqualified
	}
}

// normalize lower-cases the enumerated answers without trimming them, so a
// padded value matches no rule. Only notes are trimmed.
func normalize(in Input) Input {
	in.Urgency = strings.ToLower(in.Urgency)
	in.Insurance = strings.ToLower(in.Insurance)
	in.Financing = strings.ToLower(in.Financing)
	in.Notes = strings.TrimSpace(in.Notes)
	return in
}

func phoneRule(in Input, acc *Accumulator) {
	if countDigits(in.Phone) < minPhoneDigits {
		acc.Add(-20, "Weak phone")
	}
}

func urgencyRule(in Input, acc *Accumulator) {
	switch in.Urgency {
	case "today":
		acc.Add(30, "Urgent: today", TagUrgent)
	case "this week":
		acc.Add(15, "Urgent: this week")
	default:
		acc.Add(5, "Flexible")
	}
}

func (kr keywordRule) apply(in Input, acc *Accumulator) {
	if !anyContains(in.Symptoms, kr.keywords) {
		return
	}
	if kr.tag != "" {
		acc.Add(kr.points, kr.reason, kr.tag)
		return
	}
	acc.Add(kr.points, kr.reason)
}

func insuranceRule(in Input, acc *Accumulator) {
	switch in.Insurance {
	case "":
	case "self-pay":
		acc.Add(5, "Self-pay", TagVerifyInsurance)
	default:
		acc.Add(10, "Insurance: "+in.Insurance)
	}
}

func financingRule(in Input, acc *Accumulator) {
	if in.Financing == "yes" {
		acc.Add(10, "Financing requested", TagFinancingInterest)
	}
}

func zipRule(in Input, acc *Accumulator) {
	if in.ZipCode != "" {
		acc.Add(5, "Provided ZIP")
	}
}

func notesRule(in Input, acc *Accumulator) {
	if in.Notes != "" {
		acc.Add(5, "Left notes")
	}
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func anyContains(entries, keywords []string) bool {
	for _, e := range entries {
		e = strings.ToLower(e)
		for _, k := range keywords {
			if strings.Contains(e, k) {
				return true
			}
		}
	}
	return false
}
