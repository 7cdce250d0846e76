// Package tools defines the contract a tool must satisfy to be invocable by the model.
//
// Includes:
//   - Tool: name, description, JSON parameter schema, Invoke.
//   - Definition + New: adapt a plain function into a Tool.
//   - GenerateSchema[T](): derive a parameter schema from a Go struct.
//   - Set: ordered, exact-name resolution; a miss is an *UnknownToolError.
//   - CLI: run an allow-listed command line program.
//   - Workspace: sandboxed read_file, list_files and write_file.
//
// Invariant: Invoke never returns an error. Failures inside a tool are folded
// into Result.Content so one bad call cannot abort a conversation.
package tools
