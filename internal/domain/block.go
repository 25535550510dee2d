package domain

import "time"

// SignatureEntry records one commit signature on a block.
type SignatureEntry struct {
	Validator string    `json:"validator,omitempty"`
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
}

// Block is the canonical indexed block record. Height is a decimal string;
// numeric ordering is the store's responsibility.
type Block struct {
	Network        string
	Height         string
	BlockHash      string
	Proposer       string
	NumTxs         int64
	Time           time.Time
	Signatures     []SignatureEntry
	AppHash        string
	TotalGasWanted int64
	TotalGasUsed   int64
}
