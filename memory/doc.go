// Package memory saves and restores conversations as JSON snapshots.
//
// Persistence model:
//   - id, model, sampling settings and the full message lineage are stored.
//   - Handlers, tools and response schemas are not; pass them to Load.
package memory
