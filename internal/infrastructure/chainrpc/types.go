package chainrpc

import "time"

// RawBlock mirrors the JSON-RPC block response of a CometBFT node. Gas totals
// are not part of the node response; push feeds that precompute them may fill
// the optional fields so ingestion can skip the per-transaction sum.
type RawBlock struct {
	BlockID RawBlockID    `json:"block_id"`
	Block   RawBlockInner `json:"block"`

	TotalGasWanted string `json:"total_gas_wanted,omitempty"`
	TotalGasUsed   string `json:"total_gas_used,omitempty"`
}

type RawBlockID struct {
	Hash string `json:"hash"`
}

type RawBlockInner struct {
	Header     RawHeader    `json:"header"`
	Data       RawBlockData `json:"data"`
	LastCommit RawCommit    `json:"last_commit"`
}

type RawHeader struct {
	ChainID         string    `json:"chain_id"`
	Height          string    `json:"height"`
	Time            time.Time `json:"time"`
	AppHash         string    `json:"app_hash"`
	ProposerAddress string    `json:"proposer_address"`
}

type RawBlockData struct {
	Txs []string `json:"txs"`
}

type RawCommit struct {
	Signatures []RawCommitSig `json:"signatures"`
}

type RawCommitSig struct {
	ValidatorAddress string    `json:"validator_address"`
	Timestamp        time.Time `json:"timestamp"`
}

// RawTxResult mirrors one entry of a tx or tx_search response. Timestamp is
// absent on node responses and carried only by push feeds; ingestion falls
// back to the enclosing block time.
type RawTxResult struct {
	Hash      string        `json:"hash"`
	Height    string        `json:"height"`
	TxResult  RawTxResponse `json:"tx_result"`
	Tx        string        `json:"tx"`
	Timestamp time.Time     `json:"timestamp,omitempty"`
}

type RawTxResponse struct {
	Code      uint32 `json:"code"`
	Log       string `json:"log"`
	GasWanted string `json:"gas_wanted"`
	GasUsed   string `json:"gas_used"`
}
