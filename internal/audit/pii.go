// Package audit provides middleware over the audit-log port.
package audit

import (
	"context"
	"regexp"

	"github.com/raytchel123/raytchel/pkg/domain"
	"github.com/raytchel123/raytchel/pkg/ports"
)

// Middleware wraps an AuditLog to add behavior.
type Middleware func(ports.AuditLog) ports.AuditLog

type piiMasker struct {
	next     ports.AuditLog
	patterns []*regexp.Regexp
}

// DefaultPIIPatterns covers the identifiers audit entries must never
// retain in clear text: CPF and card-like digit runs.
var DefaultPIIPatterns = []string{
	`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`,
	`\b(?:\d[ -]?){13,16}\b`,
}

// NewPIIMasker creates a middleware that replaces every match of the
// given patterns inside string detail values with "***" before the entry
// is persisted. Entries are cloned; callers never see masked values.
func NewPIIMasker(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.AuditLog) ports.AuditLog {
		return &piiMasker{next: next, patterns: patterns}
	}
}

func (m *piiMasker) Append(ctx context.Context, entry domain.AuditEntry) error {
	if entry.Detail != nil {
		entry.Detail = m.maskMap(entry.Detail)
	}
	return m.next.Append(ctx, entry)
}

func (m *piiMasker) maskMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case string:
			out[k] = m.mask(val)
		case map[string]any:
			out[k] = m.maskMap(val)
		case []any:
			masked := make([]any, len(val))
			for i, item := range val {
				if s, ok := item.(string); ok {
					masked[i] = m.mask(s)
				} else if sub, ok := item.(map[string]any); ok {
					masked[i] = m.maskMap(sub)
				} else {
					masked[i] = item
				}
			}
			out[k] = masked
		default:
			out[k] = v
		}
	}
	return out
}

func (m *piiMasker) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, "***")
	}
	return s
}
