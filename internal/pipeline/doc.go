// Package pipeline persists the publish database that delivery and
// republish operations read from: projects, subsets, versions,
// representations, and the delivery ledger.
package pipeline
