package qualification

import (
	"testing"

	"lead-intake-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func baseInput() Input {
	return Input{
		Consent: true,
		Phone:   "(555) 123-4567",
	}
}

func score(t *testing.T, in Input) Result {
	t.Helper()
	res := Qualify(in)
	require.NotEmpty(t, res.Reasons)
	return res
}

// ==========================
// Consent Gate
// ==========================

func TestQualify_MissingConsent(t *testing.T) {
	tests := []struct {
		name  string
		input Input
	}{
		{name: "empty lead", input: Input{}},
		{
			name: "otherwise perfect lead",
			input: Input{
				Phone:     "5551234567",
				Urgency:   "today",
				Symptoms:  []string{"Toothache", "Whitening"},
				Insurance: "Delta",
				Financing: "yes",
				ZipCode:   "12345",
				Notes:     "asap",
				Tags:      []string{"web"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Qualify(tt.input)
			assert.Equal(t, models.QualificationDisqualified, res.Status)
			assert.Equal(t, 0, res.Score)
			assert.Equal(t, []string{"Missing HIPAA consent"}, res.Reasons)
			assert.Contains(t, res.Tags, TagInvalid)
			for _, tag := range tt.input.Tags {
				assert.Contains(t, res.Tags, tag)
			}
			assert.NotContains(t, res.Tags, TagUrgent)
		})
	}
}

// ==========================
// Individual Rules
// ==========================

func TestQualify_PhoneQuality(t *testing.T) {
	tests := []struct {
		name      string
		phone     string
		wantScore int
		weak      bool
	}{
		{name: "missing phone", phone: "", wantScore: -15, weak: true},
		{name: "nine digits", phone: "555-123-456", wantScore: -15, weak: true},
		{name: "ten digits with punctuation", phone: "(555) 123-4567", wantScore: 5},
		{name: "international", phone: "+1 555 123 4567", wantScore: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			in.Phone = tt.phone
			res := score(t, in)
			assert.Equal(t, tt.wantScore, res.Score)
			if tt.weak {
				assert.Equal(t, "Weak phone", res.Reasons[0])
			} else {
				assert.NotContains(t, res.Reasons, "Weak phone")
			}
		})
	}
}

func TestQualify_Urgency(t *testing.T) {
	tests := []struct {
		urgency string
		points  int
		reason  string
		urgent  bool
	}{
		{urgency: "today", points: 30, reason: "Urgent: today", urgent: true},
		{urgency: "TODAY", points: 30, reason: "Urgent: today", urgent: true},
		{urgency: "This Week", points: 15, reason: "Urgent: this week"},
		{urgency: "next month", points: 5, reason: "Flexible"},
		{urgency: "", points: 5, reason: "Flexible"},
	}

	for _, tt := range tests {
		t.Run("urgency="+tt.urgency, func(t *testing.T) {
			in := baseInput()
			in.Urgency = tt.urgency
			res := score(t, in)
			assert.Equal(t, tt.points, res.Score)
			assert.Equal(t, []string{tt.reason}, res.Reasons)
			if tt.urgent {
				assert.Contains(t, res.Tags, TagUrgent)
			} else {
				assert.NotContains(t, res.Tags, TagUrgent)
			}
		})
	}
}

func TestQualify_SymptomKeywords(t *testing.T) {
	tests := []struct {
		name     string
		symptoms []string
		points   int
		reasons  []string
		tags     []string
	}{
		{name: "toothache", symptoms: []string{"Severe Toothache"}, points: 30, reasons: []string{"Emergency-like"}, tags: []string{TagEmergency}},
		{name: "broken tooth", symptoms: []string{"broken tooth"}, points: 30, reasons: []string{"Emergency-like"}, tags: []string{TagEmergency}},
		{name: "crowns", symptoms: []string{"Crowns"}, points: 15, reasons: []string{"Restorative intent"}},
		{name: "orthodontics", symptoms: []string{"ORTHODONTICS"}, points: 15, reasons: []string{"Invisalign interest"}},
		{name: "veneers", symptoms: []string{"veneers"}, points: 10, reasons: []string{"Cosmetic interest"}},
		{name: "checkup", symptoms: []string{"Annual checkup"}, points: 5, reasons: []string{"Checkup"}},
		{
			name:     "independent rules stack",
			symptoms: []string{"Emergency", "Fillings", "Invisalign", "Whitening", "Checkup"},
			points:   30 + 15 + 15 + 10 + 5,
			reasons:  []string{"Emergency-like", "Restorative intent", "Invisalign interest", "Cosmetic interest", "Checkup"},
			tags:     []string{TagEmergency},
		},
		{name: "one rule fires once for many matches", symptoms: []string{"toothache", "broken"}, points: 30, reasons: []string{"Emergency-like"}, tags: []string{TagEmergency}},
		{name: "no match", symptoms: []string{"sensitivity"}, points: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			in.Symptoms = tt.symptoms
			res := score(t, in)
			// urgency baseline is Flexible (+5)
			assert.Equal(t, 5+tt.points, res.Score)
			assert.Equal(t, append([]string{"Flexible"}, tt.reasons...), res.Reasons)
			for _, tag := range tt.tags {
				assert.Contains(t, res.Tags, tag)
			}
		})
	}
}

func TestQualify_InsuranceAndFinancing(t *testing.T) {
	tests := []struct {
		name      string
		insurance string
		financing string
		points    int
		reasons   []string
		tags      []string
	}{
		{name: "insured", insurance: "Delta", points: 10, reasons: []string{"Insurance: delta"}},
		{name: "self pay", insurance: "Self-Pay", points: 5, reasons: []string{"Self-pay"}, tags: []string{TagVerifyInsurance}},
		{name: "financing", financing: "YES", points: 10, reasons: []string{"Financing requested"}, tags: []string{TagFinancingInterest}},
		{name: "financing no", financing: "no", points: 0},
		{
			name:      "both",
			insurance: "self-pay",
			financing: "yes",
			points:    15,
			reasons:   []string{"Self-pay", "Financing requested"},
			tags:      []string{TagVerifyInsurance, TagFinancingInterest},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			in.Insurance = tt.insurance
			in.Financing = tt.financing
			res := score(t, in)
			assert.Equal(t, 5+tt.points, res.Score)
			assert.Equal(t, append([]string{"Flexible"}, tt.reasons...), res.Reasons)
			for _, tag := range tt.tags {
				assert.Contains(t, res.Tags, tag)
			}
		})
	}
}

func TestQualify_PaddedAnswersAreNotTrimmed(t *testing.T) {
	in := baseInput()
	in.Urgency = " Today "
	in.Financing = "yes "
	in.Insurance = " "
	res := score(t, in)

	assert.Equal(t, 15, res.Score)
	assert.Equal(t, []string{"Flexible", "Insurance:  "}, res.Reasons)
	assert.NotContains(t, res.Tags, TagUrgent)
	assert.NotContains(t, res.Tags, TagFinancingInterest)
}

func TestQualify_CompletenessSignals(t *testing.T) {
	in := baseInput()
	in.ZipCode = "12345"
	in.Notes = "   "
	res := score(t, in)
	assert.Equal(t, 10, res.Score)
	assert.Equal(t, []string{"Flexible", "Provided ZIP"}, res.Reasons)

	in.Notes = "please call after 5"
	res = score(t, in)
	assert.Equal(t, 15, res.Score)
	assert.Equal(t, []string{"Flexible", "Provided ZIP", "Left notes"}, res.Reasons)
}

// ==========================
// Status Bands
// ==========================

func TestStatusForScore_Boundaries(t *testing.T) {
	tests := []struct {
		score int
		want  models.QualificationStatus
	}{
		{score: 100, want: models.QualificationQualified},
		{score: 60, want: models.QualificationQualified},
		{score: 59, want: models.QualificationNurture},
		{score: 40, want: models.QualificationNurture},
		{score: 39, want: models.QualificationDisqualified},
		{score: -20, want: models.QualificationDisqualified},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusForScore(tt.score), "score %d", tt.score)
	}
}

func TestQualify_BandBoundariesThroughRules(t *testing.T) {
	// today(30) + toothache(30) = 60
	in := baseInput()
	in.Urgency = "today"
	in.Symptoms = []string{"toothache"}
	res := score(t, in)
	assert.Equal(t, 60, res.Score)
	assert.Equal(t, models.QualificationQualified, res.Status)

	// weak phone(-20) + today(30) + toothache(30) + insured(10) + zip(5) + notes(5) = 60
	in.Phone = ""
	in.Insurance = "Aetna"
	in.ZipCode = "02139"
	in.Notes = "x"
	res = score(t, in)
	assert.Equal(t, 60, res.Score)
	assert.Equal(t, models.QualificationQualified, res.Status)

	// this week(15) + crowns(15) + insured(10) = 40
	in = baseInput()
	in.Urgency = "this week"
	in.Symptoms = []string{"crowns"}
	in.Insurance = "Cigna"
	res = score(t, in)
	assert.Equal(t, 40, res.Score)
	assert.Equal(t, models.QualificationNurture, res.Status)

	// flexible(5) + crowns(15) + cosmetic(10) + self-pay(5) + zip(5) = 40, minus weak phone = 20
	in = baseInput()
	in.Phone = "123"
	in.Symptoms = []string{"crowns", "cosmetic"}
	in.Insurance = "self-pay"
	in.ZipCode = "1"
	res = score(t, in)
	assert.Equal(t, 20, res.Score)
	assert.Equal(t, models.QualificationDisqualified, res.Status)
}

// ==========================
// End To End
// ==========================

func TestQualify_ExampleLead(t *testing.T) {
	res := Qualify(Input{
		Consent:   true,
		Phone:     "555-867-5309",
		Urgency:   "today",
		Symptoms:  []string{"Toothache"},
		Insurance: "Delta",
		Financing: "no",
		ZipCode:   "12345",
		Notes:     "call me",
		Tags:      []string{"website", "urgent"},
	})

	assert.Equal(t, 80, res.Score)
	assert.Equal(t, models.QualificationQualified, res.Status)
	assert.Equal(t, []string{
		"Urgent: today",
		"Emergency-like",
		"Insurance: delta",
		"Provided ZIP",
		"Left notes",
	}, res.Reasons)
	assert.Equal(t, []string{"emergency", "urgent", "website"}, res.Tags)
}

func TestQualify_Deterministic(t *testing.T) {
	in := Input{
		Consent:  true,
		Phone:    "5551234567",
		Symptoms: []string{"Veneers", "Checkup"},
		Tags:     []string{"b", "a", "b"},
	}
	first := Qualify(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Qualify(in))
	}
	assert.Equal(t, []string{"a", "b"}, first.Tags)
}

func TestRules_Order(t *testing.T) {
	names := make([]string, 0)
	for _, r := range Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"phone", "urgency",
		"symptom:emergency", "symptom:restorative", "symptom:invisalign", "symptom:cosmetic", "symptom:checkup",
		"insurance", "financing", "zip", "notes",
	}, names)
}

func TestResult_Apply(t *testing.T) {
	lead := models.NewLead()
	lead.HIPAA = true
	lead.Phone = "5551234567"
	lead.Urgency = "today"
	lead.Symptoms = []string{"broken crown"}
	lead.Tags = []string{"dashboard"}

	res := Qualify(InputFromLead(lead))
	require.Equal(t, 60, res.Score)

	assert.True(t, res.Apply(lead))
	assert.Equal(t, models.QualificationQualified, lead.QualificationStatus)
	assert.Equal(t, 60, lead.QualificationScore)
	assert.Equal(t, []string{"Urgent: today", "Emergency-like"}, lead.QualificationReasons)
	assert.Equal(t, []string{"dashboard", "emergency", "urgent"}, lead.Tags)

	// a re-run with identical inputs keeps the status
	assert.False(t, Qualify(InputFromLead(lead)).Apply(lead))
}
