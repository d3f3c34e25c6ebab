// Package workorder formats and parses work-order codes of the form
// PM-<year>-<zero-padded sequence>.
package workorder

import (
	"fmt"
	"regexp"
	"strconv"
)

var codeRe = regexp.MustCompile(`^PM-(\d{4})-(\d{6})$`)

// Code is a parsed work-order code.
type Code struct {
	Year int
	Seq  int
}

// Format renders a work-order code for the given year and sequence.
func Format(year, seq int) string {
	return fmt.Sprintf("PM-%d-%06d", year, seq)
}

// Parse validates raw against the PM-<year>-<seq> shape and extracts its
// parts.
func Parse(raw string) (Code, error) {
	m := codeRe.FindStringSubmatch(raw)
	if m == nil {
		return Code{}, fmt.Errorf("malformed work order code %q", raw)
	}

	year, err := strconv.Atoi(m[1])
	if err != nil {
		return Code{}, fmt.Errorf("malformed work order year in %q: %w", raw, err)
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil {
		return Code{}, fmt.Errorf("malformed work order sequence in %q: %w", raw, err)
	}
	if seq == 0 {
		return Code{}, fmt.Errorf("work order sequence must start at 1: %q", raw)
	}
	return Code{Year: year, Seq: seq}, nil
}
