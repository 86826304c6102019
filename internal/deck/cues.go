package deck

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MaxCues is the number of cue label slots (spec.md §3: "0 ... 511").
const MaxCues = 512

// cueFileUnset is the sentinel written to the sidecar file for an unset
// label; kept bit-compatible with the original C++ firmware's format.
const cueFileUnset = math.Inf(1)

// Cues is a sparse map from label to position in seconds, persisted
// alongside the source file as a plain-text ".cue" sidecar: one
// floating-point value per line, line number = label, unset positions
// written as the sentinel.
type Cues struct {
	positions map[uint]float64
}

// NewCues returns an empty cue set.
func NewCues() *Cues {
	return &Cues{positions: make(map[uint]float64)}
}

// Set records a cue position.
func (c *Cues) Set(label uint, position float64) {
	c.positions[label] = position
}

// Get returns the cue's position and whether it is set.
func (c *Cues) Get(label uint) (float64, bool) {
	p, ok := c.positions[label]
	return p, ok
}

// Unset removes a cue.
func (c *Cues) Unset(label uint) {
	delete(c.positions, label)
}

// Reset clears every cue.
func (c *Cues) Reset() {
	c.positions = make(map[uint]float64)
}

// cuePath swaps pathname's extension for ".cue"; returns "" if pathname
// has no extension to replace.
func cuePath(pathname string) string {
	ext := filepath.Ext(pathname)
	if ext == "" {
		return ""
	}
	return strings.TrimSuffix(pathname, ext) + ".cue"
}

// LoadFromFile replaces the current cue set with the contents of
// pathname's ".cue" sidecar, if one exists. Missing files are not an
// error: a track simply has no cues yet.
func (c *Cues) LoadFromFile(pathname string) error {
	path := cuePath(pathname)
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	c.positions = make(map[uint]float64)
	scanner := bufio.NewScanner(f)
	var index uint
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			index++
			continue
		}
		pos, err := strconv.ParseFloat(line, 64)
		if err == nil && pos != cueFileUnset {
			c.positions[index] = pos
		}
		index++
	}
	return scanner.Err()
}

// SaveToFile writes the cue set to pathname's ".cue" sidecar. Per
// spec.md §4.2, it writes nothing when no cue is set, and nothing when
// cue 0 is set to exactly zero (treated as uninitialized).
func (c *Cues) SaveToFile(pathname string) error {
	if len(c.positions) == 0 {
		return nil
	}
	if p, ok := c.positions[0]; ok && p == 0 {
		return nil
	}
	path := cuePath(pathname)
	if path == "" {
		return nil
	}

	var maxLabel uint
	for label := range c.positions {
		if label > maxLabel {
			maxLabel = label
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i := uint(0); i <= maxLabel; i++ {
		if p, ok := c.positions[i]; ok {
			fmt.Fprintf(w, "%v\n", p)
		} else {
			fmt.Fprintf(w, "%v\n", cueFileUnset)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}
