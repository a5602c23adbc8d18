// Package deliver ships published representations to client delivery
// folders, resolving names and path templates from tracking overrides and
// recording every shipped file in the delivery ledger.
package deliver
