/*
Package domain contains the core value types shared across the Raytchel
authoring core: flow graphs, snapshots, guardrail decisions, conversations
and the error taxonomy.

Types here are plain data. Behavior lives in the services (internal/flows,
internal/snapshot, internal/guardrail, internal/conversation) and the pure
validator (pkg/flowgraph).
*/
package domain
