// Package cliindex parses the instance's "--muscle-index=i0,i1,..."
// command-line value into an ensemble index, the way pkg/procedure
// turns a "Service::Method" string into its two parts: split on a
// separator, validate each part, hand back a structured value. Lifted
// out of the communicator (spec.md §6, "Global command-line parsing for
// --muscle-index") so construction takes the index explicitly instead
// of reading os.Args itself.
package cliindex

import (
	"fmt"
	"strconv"
	"strings"
)

// Flag is the command-line flag name this package parses the value of.
const Flag = "--muscle-index"

// Parse turns a "i0,i1,..." value into an ensemble index. An empty
// string means a non-replicated singleton and parses to a nil index.
func Parse(value string) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	parts := strings.Split(value, ",")
	index := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("cliindex: invalid component %q in %s=%q: %w", part, Flag, value, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("cliindex: negative component %d in %s=%q", n, Flag, value)
		}
		index[i] = n
	}
	return index, nil
}

// FromArgs scans args for "--muscle-index=..." (or "--muscle-index"
// followed by a separate value) and parses it. It returns a nil index,
// no error, if the flag is absent.
func FromArgs(args []string) ([]int, error) {
	for i, arg := range args {
		if value, ok := strings.CutPrefix(arg, Flag+"="); ok {
			return Parse(value)
		}
		if arg == Flag && i+1 < len(args) {
			return Parse(args[i+1])
		}
	}
	return nil, nil
}

// Format renders an index back into "--muscle-index" value form, the
// inverse of Parse, e.g. for forwarding to a spawned subprocess.
func Format(index []int) string {
	parts := make([]string, len(index))
	for i, n := range index {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
