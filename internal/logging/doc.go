// Package logging provides structured, context-aware logging for agentd.
//
// It wraps go.uber.org/zap with:
//   - Context field extraction (trace correlation, request IDs, task IDs)
//   - Credential redaction before fields reach an encoder
//   - Console and JSON encoders selected by config
//
// Loggers are created from a Config and passed down explicitly; packages
// accept a *zap.Logger (or this package's Logger) in their constructors and
// substitute zap.NewNop() when given nil.
package logging
