// Package sequence implements frame-sequence algebra for published file
// lists: detecting frame numbers, grouping files into collections,
// collapsing a collection into the "head{first}-{last}#tail" token consumed
// by the conversion tool, and expanding '#'-padded patterns into expected
// per-frame file lists.
package sequence
