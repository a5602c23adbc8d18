// Package shotgrid is the tracking-system query layer: entity search,
// update, and upload by type + filters + fields, plus typed views over the
// raw records that validate required fields at the boundary instead of
// trusting payload shape downstream.
package shotgrid
