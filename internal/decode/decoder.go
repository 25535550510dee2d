package decode

import (
	"encoding/json"
	"errors"

	"chainindex/internal/domain"
)

// DecodedTx is the canonical result of decoding one transaction payload.
type DecodedTx struct {
	Messages []domain.Message
	Fee      domain.Fee
	Memo     string
}

// Decoder turns a decoded-form transaction envelope into canonical messages
// by dispatching each message through the registry. The protobuf wire step is
// an external concern; the payload handed here is its JSON projection.
type Decoder struct {
	registry *Registry
}

func NewDecoder(registry *Registry) (*Decoder, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	return &Decoder{registry: registry}, nil
}

type txEnvelope struct {
	Body struct {
		Messages []json.RawMessage `json:"messages"`
		Memo     string            `json:"memo"`
	} `json:"body"`
	AuthInfo struct {
		Fee struct {
			Amount   []domain.Coin `json:"amount"`
			GasLimit string        `json:"gas_limit"`
		} `json:"fee"`
	} `json:"auth_info"`
}

func (d *Decoder) DecodeTx(payload []byte) (DecodedTx, error) {
	var envelope txEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return DecodedTx{}, err
	}
	if len(envelope.Body.Messages) == 0 {
		return DecodedTx{}, errors.New("transaction has no messages")
	}

	messages := make([]domain.Message, 0, len(envelope.Body.Messages))
	for _, raw := range envelope.Body.Messages {
		typeURL := typeOf(raw)
		msg, err := d.registry.Decode(typeURL, raw)
		if err != nil {
			return DecodedTx{}, err
		}
		messages = append(messages, msg)
	}

	return DecodedTx{
		Messages: messages,
		Fee: domain.Fee{
			Amount:   envelope.AuthInfo.Fee.Amount,
			GasLimit: envelope.AuthInfo.Fee.GasLimit,
		},
		Memo: envelope.Body.Memo,
	}, nil
}
