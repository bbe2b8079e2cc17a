// Package logging provides structured logging for siteconf using slog.
//
// The package supports text and JSON output, verbosity-derived levels
// (including [LevelTrace] for per-key store traffic), a [MultiHandler] for
// mirroring logs into a file, and secret redaction: attribute values whose
// key looks sensitive, or whose value looks like a credential such as a
// JWT action token, are masked before they are written.
//
//	logger := logging.New(logging.Config{
//		Level:  slog.LevelInfo,
//		Format: logging.FormatText,
//		Output: os.Stderr,
//	})
//	logger.Info("snapshot captured", "reason", "before_reset")
//
// For tests, [ForTest] routes output through t.Log; [NewDiscard] drops it.
package logging
