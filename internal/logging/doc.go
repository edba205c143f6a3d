// Package logging provides leveled output for timecapsule commands.
//
// Standard output carries capsules and payloads, so every message goes to
// the logger's writer (standard error by default).
//
// # Verbosity Levels
//
//   - --verbose: shows info messages
//   - --debug: shows info and debug messages
//
// Warnings and errors are always shown.
//
// # Usage
//
//	log := logging.Logger{Verbose: verbose, Debug: debug}
//	log.Infof("Locked %d bytes under %d challenges", n, len(challenges))
//
// Never pass key material, passwords or payload bytes to a Logger.
package logging
