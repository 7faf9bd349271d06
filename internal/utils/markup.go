package utils

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer turns user-submitted post and answer bodies into HTML that is
// safe to render. Bodies are plain text with paragraphs and fenced code
// blocks; any HTML the author typed is filtered through a UGC policy.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[a-zA-Z0-9_+-]+$`)).OnElements("code")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return &Sanitizer{policy: p}
}

// Render converts a body to sanitized HTML.
func (s *Sanitizer) Render(body string) string {
	var b strings.Builder
	inCode := false
	var para []string

	flush := func() {
		if len(para) == 0 {
			return
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(para, "<br>"))
		b.WriteString("</p>")
		para = para[:0]
	}

	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inCode {
				b.WriteString("</code></pre>")
				inCode = false
				continue
			}
			flush()
			lang := strings.TrimPrefix(trimmed, "```")
			if lang != "" {
				b.WriteString(`<pre><code class="language-` + html.EscapeString(lang) + `">`)
			} else {
				b.WriteString("<pre><code>")
			}
			inCode = true
			continue
		}
		if inCode {
			b.WriteString(html.EscapeString(line))
			b.WriteString("\n")
			continue
		}
		if trimmed == "" {
			flush()
			continue
		}
		para = append(para, line)
	}
	if inCode {
		b.WriteString("</code></pre>")
	}
	flush()

	return s.policy.Sanitize(b.String())
}

// Clean strips every tag from short plain-text fields such as titles.
func (s *Sanitizer) Clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(bluemonday.StrictPolicy().Sanitize(text)))
}
