package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/raytchel123/raytchel/pkg/domain"
)

func (s *Store) auditKey() string { return s.key("audit") }

// Append pushes an entry onto the audit list. Append-only: nothing in
// this package reads or trims the list.
func (l *AuditLog) Append(ctx context.Context, entry domain.AuditEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry %s: %w", entry.ID, err)
	}
	if err := l.client.RPush(ctx, l.auditKey(), raw).Err(); err != nil {
		return &domain.ExternalServiceError{Service: "redis", Err: err}
	}
	return nil
}
