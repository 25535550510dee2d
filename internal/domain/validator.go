package domain

import "strings"

// NormalizeConsensusAddr canonicalizes a raw consensus address for directory
// keys: trimmed and upper-cased, matching the hex form nodes report in block
// headers. Writers and readers must both use it or mixed-case entries never
// resolve.
func NormalizeConsensusAddr(addr string) string {
	return strings.ToUpper(strings.TrimSpace(addr))
}
