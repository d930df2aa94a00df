package qualification

import "lead-intake-workers/internal/models"

// InputFromLead projects the scoring inputs out of a stored lead.
func InputFromLead(l *models.Lead) Input {
	return Input{
		Consent:   l.HIPAA,
		Phone:     l.Phone,
		Urgency:   l.Urgency,
		Insurance: l.Insurance,
		Financing: l.Financing,
		ZipCode:   l.ZipCode,
		Notes:     l.Notes,
		Symptoms:  append([]string(nil), l.Symptoms...),
		Tags:      append([]string(nil), l.Tags...),
	}
}

// Apply writes the result onto the lead and reports whether the
// qualification status changed.
func (r Result) Apply(l *models.Lead) bool {
	changed := l.QualificationStatus != r.Status
	l.QualificationStatus = r.Status
	l.QualificationScore = r.Score
	l.QualificationReasons = append([]string(nil), r.Reasons...)
	l.Tags = append([]string(nil), r.Tags...)
	return changed
}
