package followup

import (
	"strconv"
	"strings"

	"lead-intake-workers/internal/models"
)

// ContextForLead builds the fixed placeholder projection of a lead. Every key
// is present; absent attributes render as empty strings.
func ContextForLead(l *models.Lead) RenderContext {
	name := l.FullName()
	if name == "" {
		name = l.Email
	}
	return RenderContext{
		"first_name": l.FirstName,
		"last_name":  l.LastName,
		"name":       name,
		"email":      l.Email,
		"phone":      l.Phone,
		"service":    l.Service,
		"source":     l.Source,
		"insurance":  l.Insurance,
		"urgency":    l.Urgency,
		"situation":  l.Situation,
		"score":      strconv.Itoa(l.QualificationScore),
		"status":     string(l.QualificationStatus),
	}
}

// Placeholders lists the keys ContextForLead provides, in a stable order.
func Placeholders() []string {
	return []string{
		"first_name", "last_name", "name", "email", "phone", "service",
		"source", "insurance", "urgency", "situation", "score", "status",
	}
}

// UnknownPlaceholders returns the {{key}} tokens in text that no lead context
// can fill.
func UnknownPlaceholders(text string) []string {
	known := make(map[string]bool)
	for _, k := range Placeholders() {
		known[k] = true
	}

	var out []string
	for {
		start := strings.Index(text, openDelim)
		if start < 0 {
			return out
		}
		rest := text[start+len(openDelim):]
		end := strings.Index(rest, closeDelim)
		if end < 0 {
			return out
		}
		if key := rest[:end]; !known[key] && !strings.Contains(key, openDelim) {
			out = append(out, key)
		}
		text = rest[end+len(closeDelim):]
	}
}
