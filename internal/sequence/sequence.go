package sequence

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrAmbiguousSequence reports that a file list resolved to more than one
// frame collection and cannot be collapsed into a single sequence token.
// This is a configuration error for the representation being processed.
var ErrAmbiguousSequence = errors.New("ambiguous frame sequence")

// frameRe matches the trailing frame number of a render file name, e.g.
// "sh010_comp.1001.exr". The separator before the frame stays in the head
// so head+frame+tail reassembles the original name.
var frameRe = regexp.MustCompile(`^(.*?)(\d+)(\.\w+)$`)

// Collection is a set of files sharing a head and tail around a frame
// number run.
type Collection struct {
	Head    string
	Tail    string
	Padding int
	Frames  []int
}

// Token renders the collection as a single "head{first}-{last}#tail"
// sequence token consumed by the colorspace conversion tool.
func (c Collection) Token() string {
	if len(c.Frames) == 0 {
		return c.Head + c.Tail
	}
	return fmt.Sprintf("%s%d-%d#%s", c.Head, c.Frames[0], c.Frames[len(c.Frames)-1], c.Tail)
}

// Split returns the frame component of a file name, or "" for a single
// file without a frame number.
func Split(name string) (head, frame, tail string) {
	match := frameRe.FindStringSubmatch(filepath.Base(name))
	if match == nil {
		return name, "", ""
	}
	return match[1], match[2], match[3]
}

// CollectFrames maps each path to its frame string, "" when the file name
// carries no frame number. Mirrors how the delivery executor iterates a
// representation's files.
func CollectFrames(paths []string) map[string]string {
	out := make(map[string]string, len(paths))
	for _, path := range paths {
		_, frame, _ := Split(path)
		out[path] = frame
	}
	return out
}

// Assemble groups file names into frame collections plus a remainder of
// names without frame numbers. Collections are keyed by head+tail+padding.
func Assemble(names []string) ([]Collection, []string) {
	type key struct {
		head    string
		tail    string
		padding int
	}
	groups := make(map[key][]int)
	order := make([]key, 0, 4)
	var remainder []string

	for _, name := range names {
		head, frame, tail := Split(name)
		if frame == "" {
			remainder = append(remainder, name)
			continue
		}
		k := key{head: head, tail: tail, padding: len(frame)}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		value, err := strconv.Atoi(frame)
		if err != nil {
			remainder = append(remainder, name)
			continue
		}
		groups[k] = append(groups[k], value)
	}

	collections := make([]Collection, 0, len(order))
	for _, k := range order {
		frames := groups[k]
		sort.Ints(frames)
		collections = append(collections, Collection{
			Head:    k.head,
			Tail:    k.tail,
			Padding: k.padding,
			Frames:  frames,
		})
	}
	return collections, remainder
}

// Collapse merges a per-frame file list into a single sequence token. Lists
// without frame numbers pass through unchanged. More than one collection is
// ErrAmbiguousSequence.
func Collapse(names []string) ([]string, error) {
	collections, remainder := Assemble(names)
	if len(collections) == 0 {
		return names, nil
	}
	if len(collections) > 1 {
		return nil, fmt.Errorf("%w: %d collections in %v", ErrAmbiguousSequence, len(collections), names)
	}
	out := []string{collections[0].Token()}
	return append(out, remainder...), nil
}

// HashPath replaces the trailing frame number of a path with '#' padding,
// producing the pattern the expected-files expansion consumes.
func HashPath(path string) string {
	dir := filepath.Dir(path)
	head, frame, tail := Split(filepath.Base(path))
	if frame == "" {
		return path
	}
	hashed := head + strings.Repeat("#", len(frame)) + tail
	if dir == "." {
		return hashed
	}
	return filepath.Join(dir, hashed)
}

// ExpectedFiles expands a '#'-padded path into the per-frame file list for
// the inclusive frame range. A path without padding tokens is returned
// as-is.
func ExpectedFiles(path string, frameStart, frameEnd int) []string {
	dir := filepath.Dir(path)
	name := filepath.Base(path)

	first := strings.Index(name, "#")
	if first < 0 {
		return []string{path}
	}
	last := strings.LastIndex(name, "#")
	padding := last - first + 1

	var files []string
	for frame := frameStart; frame <= frameEnd; frame++ {
		frameStr := fmt.Sprintf("%0*d", padding, frame)
		expanded := name[:first] + frameStr + name[last+1:]
		files = append(files, filepath.ToSlash(filepath.Join(dir, expanded)))
	}
	return files
}
