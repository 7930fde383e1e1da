/*
Package ports defines the driven ports (interfaces) for the Raytchel core.

These interfaces decouple the services from storage implementations, so the
same logic runs against the in-memory adapter (tests, embedding) and the
Redis adapter (deployment).

# Key interfaces

  - FlowStore: versioned flow persistence with compare-and-swap updates.
  - SnapshotStore: append-only snapshot history with an atomic active pointer.
  - ConversationStore: conversation persistence with guarded transitions.
  - AuditLog: append-only mutation record.
*/
package ports
