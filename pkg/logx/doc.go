// Package logx configures autopub's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional operator sink (warn-and-above forwarded to the notification
//     webhook, min-level + rate limited)
package logx
