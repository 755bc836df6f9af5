// Package diag defines the diagnostic model shared by the unit reader,
// the binding analysis pass and the driver.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity: Info, Warning or Error (severity.go).
//   - Code: compact numeric identifier with a stable string form (codes.go).
//     SYN codes come from the unit script reader, SEM codes from binding
//     analysis, IO and CFG codes from the driver and configuration layer.
//   - Message: short, actionable text. Binding findings always name the
//     reference form, the active mode and the value category.
//   - Primary span and optional Notes.
//   - Fixes: suggested alternatives. For BindingForbidden the first fix
//     names the recommended form or declarator.
//
// # Emitting diagnostics
//
// Producers talk to a Reporter. ReportError / ReportWarning / ReportInfo
// return a ReportBuilder that chains WithNote / WithFix before Emit.
// BagReporter collects into a Bag, which supports sorting, deduplication,
// filtering and merging. Rendering lives in internal/diagfmt.
package diag
