// Package ui renders terminal output for the powerview-ble commands.
//
// Components follow a "print once and exit" pattern:
//
//   - RenderHeader: command banner with ordered parameters
//   - Result: success, failure and warning boxes
//   - Table: aligned columns for scan and list output
//   - Confirm: yes/no prompt before overwriting stored state
//   - RunWithSpinner: a Bubble Tea spinner while a shade command runs
//
// Logging stays silent unless POWERVIEW_LOG_LEVEL or --log-level is set, so
// these components own stdout.
package ui
