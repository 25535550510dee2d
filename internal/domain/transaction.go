package domain

import (
	"encoding/json"
	"time"
)

type TxStatus string

const (
	TxStatusPending TxStatus = "pending"
	TxStatusSuccess TxStatus = "success"
	TxStatusFailed  TxStatus = "failed"
)

// Coin is a single fee denomination amount.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// Fee is the declared transaction fee.
type Fee struct {
	Amount   []Coin `json:"amount"`
	GasLimit string `json:"gas_limit"`
}

// Message is one decoded transaction message. Inner carries the message's
// inner discriminator when the decoder can derive one (e.g. the wrapped
// message type of an exec envelope), otherwise it is empty.
type Message struct {
	Type    string          `json:"type"`
	Inner   string          `json:"inner,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Transaction is the canonical indexed transaction record. Messages is nil
// when the record was stored lite; IsLite marks that the content was
// intentionally dropped and can be rehydrated from the upstream node.
type Transaction struct {
	Network          string
	TxHash           string
	Height           string
	Status           TxStatus
	Fee              Fee
	MessageCount     int
	Type             string
	FirstMessageType string
	Reason           string
	Time             time.Time
	Messages         []Message
	IsLite           bool
}
