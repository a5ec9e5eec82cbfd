// Package logging provides context-aware structured logging for roadwatch.
//
// It wraps zap with:
//   - a Trace level below Debug for wire-level detail
//   - correlation fields pulled from context (trace, session, request,
//     incident and resource key)
//   - a redacting encoder so bearer tokens, passwords and invite codes
//     never reach the output
//   - optional sampling and an OpenTelemetry log bridge
//
// Packages that only need a plain logger take a *zap.Logger; Logger.Underlying
// hands one out.
//
//	logger, err := logging.NewLogger(logging.FromSettings(cfg.Logging), nil)
//	ctx = logging.WithSessionID(ctx, sessionID)
//	logger.Info(ctx, "incidents reconciled", zap.Int("count", n))
package logging
