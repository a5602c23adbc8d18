// Package naming resolves delivery path templates. Templates use
// {key}, {key[sub]} and {key:0>N} padded tokens filled from a nested data
// context; unresolved tokens are collected into a single error so the
// planner can report every gap at once.
package naming
