// Package logging provides structured logging for the PowerView tools.
//
// This package wraps zap logger with convenience functions for common logging
// patterns. It provides both general logging functions and specialized
// functions for BLE link and frame logging.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (frame hex dumps, advertisements)
//   - Info: Normal operations (connections, commands, bridge requests)
//   - Warn: Non-fatal issues (rejected responses, link loss)
//   - Error: Failures surfaced to the user
//
// # Structured Logging
//
// Every entry about a shade carries a "device" field:
//
//	log := logging.ForDevice("DUE:1A2B")
//	log.Info("Command sent", zap.Stringer("opcode", op), zap.Uint8("seq", seq))
//
// # Specialized Logging
//
//	logging.LogConnection(name, "connected", zap.Duration("took", d))
//	logging.LogFrame(name, "tx", frame)
//	logging.LogAdvertisement(addr, rssi, data)
//
// # Configuration
//
// Logging is silent unless a level is given, either through the --log-level
// flag or the POWERVIEW_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize(logLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Logs are written to stderr in console format so command output on stdout
// stays clean.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize and SetLogger
// must be called before other goroutines start logging.
package logging
