// Package catalog discovers the per-channel images produced by the
// imaging step and fixes each one's position on the cube's channel axis.
package catalog

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ParseError reports a filename the channel index could not be
// extracted from. It aborts catalog construction: a file we cannot
// place on the channel axis means the naming convention is broken.
type ParseError struct {
	Filename string
	Marker   string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot extract channel number from %q (marker %q): %s",
		e.Filename, e.Marker, e.Reason)
}

// Channel is one discovered channel image.
type Channel struct {
	// Index is the 0-based channel position inside the cube. The
	// filename carries it 1-based.
	Index int
	Path  string
}

// Catalog is the ordered set of discovered channel images. Ordering is
// lexicographic over filenames, which is the output ordering contract
// for the statistics table; it matches numeric channel order only when
// the naming scheme zero-pads the channel number.
type Catalog struct {
	Channels []Channel
}

// Discover lists dir for files matching pattern (a filepath.Match
// glob), sorts them by name and extracts each one's channel index.
func Discover(dir, pattern, marker string) (*Catalog, error) {
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no channel images matching %q in %s", pattern, dir)
	}
	sort.Strings(paths)

	c := &Catalog{Channels: make([]Channel, 0, len(paths))}
	for _, p := range paths {
		n, err := ChannelIndex(filepath.Base(p), marker)
		if err != nil {
			return nil, err
		}
		c.Channels = append(c.Channels, Channel{Index: n - 1, Path: p})
	}
	return c, nil
}

// ChannelIndex parses the 1-based channel number out of a filename: the
// run of digits immediately following marker.
func ChannelIndex(filename, marker string) (int, error) {
	i := strings.Index(filename, marker)
	if i < 0 {
		return 0, &ParseError{Filename: filename, Marker: marker, Reason: "marker not found"}
	}
	j := i + len(marker)
	n := 0
	digits := 0
	for j < len(filename) && filename[j] >= '0' && filename[j] <= '9' {
		n = n*10 + int(filename[j]-'0')
		digits++
		j++
	}
	if digits == 0 {
		return 0, &ParseError{Filename: filename, Marker: marker, Reason: "no digits after marker"}
	}
	return n, nil
}

// ChannelCount returns the cube's channel axis extent: the channel
// number of the lexicographically last entry.
func (c *Catalog) ChannelCount() int {
	return c.Channels[len(c.Channels)-1].Index + 1
}

// Reference returns the lowest (first sorted) entry, whose header seeds
// the cube header.
func (c *Catalog) Reference() Channel {
	return c.Channels[0]
}
