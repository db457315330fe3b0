// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder and an optional file sink,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Every daemon worker names its logger and passes it down through the context,
// so log lines carry the worker name without global bookkeeping.
package logger
