package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raytchel123/raytchel/internal/adapters/memory"
	redisadapter "github.com/raytchel123/raytchel/internal/adapters/redis"
	"github.com/raytchel123/raytchel/internal/audit"
	"github.com/raytchel123/raytchel/internal/config"
	"github.com/raytchel123/raytchel/pkg/ports"
)

// stores bundles the wired persistence ports plus the close hook for
// whatever backs them.
type stores struct {
	flows         ports.FlowStore
	snapshots     ports.SnapshotStore
	conversations ports.ConversationStore
	audit         ports.AuditLog
	close         func() error
}

// buildStores wires redis-backed stores when an address is configured,
// in-memory ones otherwise.
func buildStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	maskPII := audit.NewPIIMasker(audit.DefaultPIIPatterns)

	if cfg.Redis.Addr == "" {
		logger.Warn("no redis configured, using in-memory stores")
		return &stores{
			flows:         memory.NewFlowStore(),
			snapshots:     memory.NewSnapshotStore(),
			conversations: memory.NewConversationStore(),
			audit:         maskPII(memory.NewAuditLog()),
			close:         func() error { return nil },
		}, nil
	}

	store := redisadapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		store.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("using redis stores", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)

	return &stores{
		flows:         store.Flows(),
		snapshots:     store.Snapshots(),
		conversations: store.Conversations(),
		audit:         maskPII(store.Audit()),
		close:         store.Close,
	}, nil
}
