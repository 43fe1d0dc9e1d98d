// Package logging provides structured logging with OpenTelemetry integration.
//
// The package wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - console output on stderr plus an optional OpenTelemetry bridge
//   - context field injection (trace_id, project.id, request.id)
//   - field and pattern redaction at the encoder
//   - sampling below error level
//
// # Usage
//
//	cfg, err := logging.FromSettings(appCfg.Logging)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithProjectID(ctx, p.ID)
//	logger.Info(ctx, "node added", zap.String("node.id", id))
//
// File content and project instructions are user data. Fields named
// "content" or "instructions" are redacted by default; log lengths instead.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "node added", zap.String("node.id", "n1"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "node added")
//	tl.AssertField(t, "node added", "node.id", "n1")
package logging
