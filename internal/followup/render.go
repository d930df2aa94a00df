package followup

import "strings"

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// RenderContext maps placeholder keys to their substitution values.
type RenderContext map[string]string

// Render replaces {{key}} tokens with values from ctx in a single left-to-right
// pass. Unknown keys are left verbatim and substituted values are never rescanned.
func Render(text string, ctx RenderContext) string {
	if !strings.Contains(text, openDelim) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	for {
		start := strings.Index(text, openDelim)
		if start < 0 {
			break
		}
		end := strings.Index(text[start+len(openDelim):], closeDelim)
		if end < 0 {
			break
		}
		key := text[start+len(openDelim) : start+len(openDelim)+end]

		val, ok := ctx[key]
		if !ok {
			// emit one brace so an inner "{{" can still open a token
			b.WriteString(text[:start+1])
			text = text[start+1:]
			continue
		}

		b.WriteString(text[:start])
		b.WriteString(val)
		text = text[start+len(openDelim)+end+len(closeDelim):]
	}

	b.WriteString(text)
	return b.String()
}
