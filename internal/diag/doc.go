// Package diag defines the diagnostic model shared by the phases of a patch
// pass.
//
// A Diagnostic carries a Severity, a numeric Code with a stable string form,
// a short message and a Location naming the offending file, class, behavior
// and parameter. Phases emit through a Reporter; BagReporter collects into a
// Bag which supports sorting and deduplication. Rendering lives in
// internal/diagfmt.
//
// Code ranges follow the error taxonomy of the tool:
//
//   - CFG1xxx configuration errors (fatal for the pass)
//   - NUL2xxx nullness conflicts (fatal for one class)
//   - STR3xxx structural anomalies (warnings, processing continues)
//   - IO4xxx  filesystem failures
//   - GEN5xxx code generation failures (fatal for one class)
//   - OBS6xxx observability
package diag
