// Package logging wraps a process-global zap logger.
//
// The server core emits diagnostics through the package-level helpers; the
// CLI decides the level and destination. Without initialization the
// logger is a no-op so library users and tests stay quiet.
package logging
