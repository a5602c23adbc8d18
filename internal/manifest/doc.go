// Package manifest defines the publish job manifest consumed by the
// farm-side publish worker and helpers to read and write it.
package manifest
