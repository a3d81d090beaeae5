package sets

import "strings"

// Formatter provides a lazy, fmt.Stringer-compliant way to format a Set
// for logging. The conversion to a sorted string only happens when the
// String() method is called by the logging framework.
type Formatter struct {
	set Set
}

// Format returns a Formatter for use in logging statements. It delays the
// sorting and joining until the value is actually rendered.
func Format(set Set) Formatter {
	return Formatter{set: set}
}

// String implements the fmt.Stringer interface.
func (f Formatter) String() string {
	if len(f.set) == 0 {
		return "[]"
	}
	return "[" + strings.Join(Sorted(f.set), ", ") + "]"
}
