// Package services defines shared utilities consumed by the delivery,
// republish and transcode flows and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run correlation ids, tracking version ids,
//     and operation names for logging.
//   - Structured error markers plus the Wrap helper that separate
//     per-entity recoverable failures (recorded in the run report) from
//     run-fatal transport and configuration failures.
package services
