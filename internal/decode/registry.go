package decode

import (
	"encoding/json"
	"errors"

	"chainindex/internal/domain"
)

// Func decodes one message payload of a known type into its canonical form.
type Func func(typeURL string, content json.RawMessage) (domain.Message, error)

// Registry maps message type identifiers to decode functions. It is built
// once at startup from a fixed manifest; unknown types fall through to a
// passthrough decoder that preserves the payload.
type Registry struct {
	funcs    map[string]Func
	fallback Func
}

func NewRegistry(manifest map[string]Func) *Registry {
	funcs := make(map[string]Func, len(manifest))
	for typeURL, fn := range manifest {
		funcs[typeURL] = fn
	}
	return &Registry{funcs: funcs, fallback: passthrough}
}

func (r *Registry) Decode(typeURL string, content json.RawMessage) (domain.Message, error) {
	if typeURL == "" {
		return domain.Message{}, errors.New("message type is missing")
	}
	if fn, ok := r.funcs[typeURL]; ok {
		return fn(typeURL, content)
	}
	return r.fallback(typeURL, content)
}

// DefaultManifest covers the message families the indexer inspects beyond
// passthrough: wrappers whose inner discriminator feeds the first-message-type
// field.
func DefaultManifest() map[string]Func {
	manifest := map[string]Func{
		"/cosmos.authz.v1beta1.MsgExec":            wrapped("msgs"),
		"/ibc.core.client.v1.MsgUpdateClient":      inner("client_message"),
		"/ibc.core.channel.v1.MsgRecvPacket":       packetPort,
		"/ibc.core.channel.v1.MsgAcknowledgement":  packetPort,
		"/ibc.core.channel.v1.MsgTimeout":          packetPort,
		"/cosmwasm.wasm.v1.MsgExecuteContract":     wasmExecute,
		"/cosmos.gov.v1.MsgSubmitProposal":         wrapped("messages"),
		"/cosmos.gov.v1beta1.MsgSubmitProposal":    inner("content"),
		"/cosmos.bank.v1beta1.MsgSend":             passthrough,
		"/cosmos.bank.v1beta1.MsgMultiSend":        passthrough,
		"/cosmos.staking.v1beta1.MsgDelegate":      passthrough,
		"/cosmos.staking.v1beta1.MsgUndelegate":    passthrough,
		"/cosmos.distribution.v1beta1.MsgWithdrawDelegatorReward": passthrough,
	}
	return manifest
}

func passthrough(typeURL string, content json.RawMessage) (domain.Message, error) {
	return domain.Message{Type: typeURL, Content: content}, nil
}

// wrapped derives the inner discriminator from the first element of a nested
// message list field.
func wrapped(field string) Func {
	return func(typeURL string, content json.RawMessage) (domain.Message, error) {
		msg := domain.Message{Type: typeURL, Content: content}
		var body map[string]json.RawMessage
		if err := json.Unmarshal(content, &body); err != nil {
			return msg, nil
		}
		var list []json.RawMessage
		if err := json.Unmarshal(body[field], &list); err != nil || len(list) == 0 {
			return msg, nil
		}
		msg.Inner = typeOf(list[0])
		return msg, nil
	}
}

// inner derives the inner discriminator from a single nested message field.
func inner(field string) Func {
	return func(typeURL string, content json.RawMessage) (domain.Message, error) {
		msg := domain.Message{Type: typeURL, Content: content}
		var body map[string]json.RawMessage
		if err := json.Unmarshal(content, &body); err != nil {
			return msg, nil
		}
		if nested, ok := body[field]; ok {
			msg.Inner = typeOf(nested)
		}
		return msg, nil
	}
}

func packetPort(typeURL string, content json.RawMessage) (domain.Message, error) {
	msg := domain.Message{Type: typeURL, Content: content}
	var body struct {
		Packet struct {
			SourcePort string `json:"source_port"`
		} `json:"packet"`
	}
	if err := json.Unmarshal(content, &body); err == nil {
		msg.Inner = body.Packet.SourcePort
	}
	return msg, nil
}

func wasmExecute(typeURL string, content json.RawMessage) (domain.Message, error) {
	msg := domain.Message{Type: typeURL, Content: content}
	var body struct {
		Msg map[string]json.RawMessage `json:"msg"`
	}
	if err := json.Unmarshal(content, &body); err == nil {
		for method := range body.Msg {
			msg.Inner = method
			break
		}
	}
	return msg, nil
}

func typeOf(raw json.RawMessage) string {
	var probe struct {
		Type string `json:"@type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.Type
}
