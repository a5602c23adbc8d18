// Command shuttle is the operator CLI for the client delivery pipeline:
// it delivers published representations into the per-project delivery
// area, and submits farm jobs that regenerate or newly publish client
// media for tracked versions.
package main
