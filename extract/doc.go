// Package extract turns raw model output into typed results.
//
// Rules:
//   - A payload the backend already validated is returned as-is.
//   - Otherwise the text is trimmed and a surrounding ```json fence removed.
//   - With a Schema, the text must validate against it and is decoded into the
//     schema's Go type; failures are reported as *StructuredOutputError with the
//     raw text attached. Nothing is coerced or guessed.
//   - Without a Schema, the trimmed text is the result.
//
// Extraction is pure: no I/O, no global state.
package extract
