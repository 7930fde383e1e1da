package memory

import (
	"context"
	"sync"

	"github.com/raytchel123/raytchel/pkg/domain"
)

// AuditLog implements ports.AuditLog as an in-memory append-only slice.
type AuditLog struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

// NewAuditLog creates an empty in-memory audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Append records an entry.
func (l *AuditLog) Append(ctx context.Context, entry domain.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a copy of everything appended so far. Test helper; the
// services themselves never read the log back.
func (l *AuditLog) Entries() []domain.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.AuditEntry(nil), l.entries...)
}
