package domain

import "strconv"

// HeightValue parses a decimal string height.
func HeightValue(height string) (int64, error) {
	return strconv.ParseInt(height, 10, 64)
}

// FormatHeight renders a numeric height in its canonical string form.
func FormatHeight(height int64) string {
	return strconv.FormatInt(height, 10)
}

// CompareHeights orders two string heights numerically. Heights that fail to
// parse are ordered lexicographically, which matches the store's behavior for
// malformed values.
func CompareHeights(a, b string) int {
	av, aerr := HeightValue(a)
	bv, berr := HeightValue(b)
	if aerr != nil || berr != nil {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}
