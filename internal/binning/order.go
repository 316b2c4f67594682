package binning

import (
	"cmp"
	"slices"
)

// Mode selects how bins are ordered within their sign group.
type Mode string

const (
	// ModeLexical sorts labels as strings: non-negative descending, negative ascending.
	// Multi-digit magnitudes ("-10" vs "-2") do not follow numeric order.
	ModeLexical Mode = "lexical"
	// ModeNumeric orders by the parsed lower bound, highest to lowest.
	ModeNumeric Mode = "numeric"
)

// ParseMode maps a config value to a Mode, defaulting to ModeLexical.
func ParseMode(s string) Mode {
	if Mode(s) == ModeNumeric {
		return ModeNumeric
	}
	return ModeLexical
}

// Order drops the sentinel and returns non-negative labels followed by negative labels.
// Malformed labels stay in the non-negative group.
// The result depends only on the multiset of labels, never on input order.
func Order(labels []string, mode Mode) []string {
	var nonNeg, neg, malformed []string
	for _, l := range labels {
		switch Classify(l) {
		case ClassSentinel:
		case ClassNegative:
			neg = append(neg, l)
		case ClassNonNegative:
			nonNeg = append(nonNeg, l)
		case ClassMalformed:
			malformed = append(malformed, l)
		}
	}

	if mode == ModeNumeric {
		sortNumericDesc(nonNeg)
		sortNumericDesc(neg)
		slices.SortFunc(malformed, descending)
		out := make([]string, 0, len(nonNeg)+len(malformed)+len(neg))
		out = append(out, nonNeg...)
		out = append(out, malformed...)
		return append(out, neg...)
	}

	nonNeg = append(nonNeg, malformed...)
	slices.SortFunc(nonNeg, descending)
	slices.Sort(neg)

	out := make([]string, 0, len(nonNeg)+len(neg))
	out = append(out, nonNeg...)
	return append(out, neg...)
}

// Malformed returns the labels Order placed by fallback rather than by sign.
func Malformed(labels []string) []string {
	var out []string
	for _, l := range labels {
		if Classify(l) == ClassMalformed {
			out = append(out, l)
		}
	}
	return out
}

func descending(a, b string) int {
	return cmp.Compare(b, a)
}

// sortNumericDesc sorts by lower bound descending, breaking ties by label.
func sortNumericDesc(labels []string) {
	slices.SortFunc(labels, func(a, b string) int {
		av, aok := LowerBound(a)
		bv, bok := LowerBound(b)
		switch {
		case aok && bok && av != bv:
			return cmp.Compare(bv, av)
		case aok && !bok:
			return -1
		case !aok && bok:
			return 1
		}
		return descending(a, b)
	})
}
