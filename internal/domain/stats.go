package domain

import (
	"strings"
	"time"
)

// TransactionStats is the per-network denormalized counter row. It is a
// derived, eventually consistent view over Transaction and is corrected by
// periodic full recomputes.
type TransactionStats struct {
	Network      string
	TotalCount   int64
	LatestHeight int64
	CountByType  map[string]int64
	Count24h     int64
	UpdatedAt    time.Time
}

// SanitizeTypeKey rewrites a message type identifier into a form safe to use
// as a grouped-count map key: the leading slash is dropped and dots become
// underscores.
func SanitizeTypeKey(msgType string) string {
	if msgType == "" {
		return "unknown"
	}
	key := strings.TrimPrefix(msgType, "/")
	return strings.ReplaceAll(key, ".", "_")
}
