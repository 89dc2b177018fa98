// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger writing to stderr with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Stdout is never touched: it belongs to the process the launcher hands off to.
// Every service accepts a context and extracts the logger from it, enabling
// scoped, structured logging throughout the codebase.
package logger
