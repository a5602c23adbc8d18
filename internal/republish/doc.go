// Package republish rebuilds client deliverables for already published
// versions by submitting headless publish jobs to the render farm.
//
// Two flows share the same submission machinery. Republish regenerates
// the review and final outputs of a version in place, next to its
// rendered frames. Generate delivery media publishes the outputs as a
// new delivery subset staged under a temporary directory, leaving the
// source version untouched.
//
// Both flows write a publish manifest beside the output directory that
// the farm worker consumes, and both short-circuit with a successful
// report when everything requested already exists unless forced.
package republish
