// Package logging provides slog-based structured logging with console and
// JSON handlers plus helpers for context-derived fields.
package logging
