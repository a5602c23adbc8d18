// Package overrides resolves delivery configuration from the tracking
// site's entity hierarchy. Settings cascade from Project down to Version,
// with deeper levels replacing what their parents configure per delivery
// type.
package overrides
