package streaming

import (
	"encoding/json"
	"errors"

	"chainindex/internal/infrastructure/chainrpc"
)

type EnvelopeKind string

const (
	EnvelopeKindBlock EnvelopeKind = "block"
	EnvelopeKindTx    EnvelopeKind = "tx"
)

// Envelope is the tagged union carried by the live event feed. Exactly one of
// Block or Tx is set, matching Kind; Decode rejects anything else so the
// ingestion pipeline never sees an ambiguous payload.
type Envelope struct {
	Kind    EnvelopeKind          `json:"kind"`
	Network string                `json:"network"`
	TraceID string                `json:"trace_id,omitempty"`
	Block   *chainrpc.RawBlock    `json:"block,omitempty"`
	Tx      *chainrpc.RawTxResult `json:"tx,omitempty"`
}

func Encode(env Envelope) ([]byte, error) {
	if err := validate(env); err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func Decode(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, err
	}
	if err := validate(env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func validate(env Envelope) error {
	if env.Network == "" {
		return errors.New("network is required")
	}
	switch env.Kind {
	case EnvelopeKindBlock:
		if env.Block == nil || env.Tx != nil {
			return errors.New("block envelope must carry exactly a block payload")
		}
	case EnvelopeKindTx:
		if env.Tx == nil || env.Block != nil {
			return errors.New("tx envelope must carry exactly a tx payload")
		}
	default:
		return errors.New("unknown envelope kind")
	}
	return nil
}
