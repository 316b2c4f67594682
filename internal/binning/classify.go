// Package binning orders bin labels and pairs them with colorscale entries.
package binning

import (
	"strconv"
	"strings"
)

// Sentinel is the bin label for a missing or unclassifiable value.
const Sentinel = "nan"

// Class is the ordering group of a bin label.
type Class int

const (
	ClassSentinel Class = iota
	ClassNegative
	ClassNonNegative
	// ClassMalformed labels start with neither a digit nor '-'. They are ordered with
	// the non-negative group.
	ClassMalformed
)

func (c Class) String() string {
	switch c {
	case ClassSentinel:
		return "sentinel"
	case ClassNegative:
		return "negative"
	case ClassNonNegative:
		return "non_negative"
	case ClassMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Classify assigns a label to its ordering group. Only the literal sentinel is dropped;
// the sign is read from the first character.
func Classify(label string) Class {
	switch {
	case label == Sentinel:
		return ClassSentinel
	case strings.HasPrefix(label, "-"):
		return ClassNegative
	case label != "" && (label[0] >= '0' && label[0] <= '9' || label[0] == '.' || label[0] == '+'):
		return ClassNonNegative
	default:
		return ClassMalformed
	}
}

// LowerBound parses the leading number of a range label such as "-0.5 to -0.2".
func LowerBound(label string) (float64, bool) {
	field, _, _ := strings.Cut(strings.TrimSpace(label), " ")
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
