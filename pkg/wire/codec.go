// Package wire implements the gossip node's self-delimiting wire format:
// one JSON-encoded Message per TCP connection, with the payload encoded as
// an externally-tagged union (the variant name is the JSON object's sole
// key).
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/atvirokodosprendimai/gossipmesh/pkg/node"
)

// wireMessage mirrors node.Message's field names for the wire schema.
type wireMessage struct {
	Src     node.Address    `json:"src"`
	Dst     node.Address    `json:"dst"`
	ID      uint32          `json:"id"`
	ReplyTo *uint32         `json:"reply_to"`
	Payload json.RawMessage `json:"payload"`
}

// Encode renders a Message as the self-delimiting JSON envelope sent over
// one TCP connection.
func Encode(m node.Message) ([]byte, error) {
	payload, err := encodePayload(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("wire: encode payload: %w", err)
	}
	wm := wireMessage{Src: m.Src, Dst: m.Dst, ID: m.ID, ReplyTo: m.ReplyTo, Payload: payload}
	data, err := json.Marshal(wm)
	if err != nil {
		return nil, fmt.Errorf("wire: encode message: %w", err)
	}
	return data, nil
}

// Decode parses bytes read to EOF from one TCP connection into a Message.
// Malformed input returns an error; callers must drop the connection and
// must not inject an event on failure.
func Decode(data []byte) (node.Message, error) {
	var wm wireMessage
	if err := json.Unmarshal(data, &wm); err != nil {
		return node.Message{}, fmt.Errorf("wire: decode message: %w", err)
	}
	if wm.ID == 0 {
		return node.Message{}, fmt.Errorf("wire: message id must be non-zero")
	}
	payload, err := decodePayload(wm.Payload)
	if err != nil {
		return node.Message{}, fmt.Errorf("wire: decode payload: %w", err)
	}
	return node.Message{
		Src:     wm.Src,
		Dst:     wm.Dst,
		ID:      wm.ID,
		ReplyTo: wm.ReplyTo,
		Payload: payload,
	}, nil
}

// taggedRegisterOk, taggedGossipRandom, etc. are the inner field sets for
// variants that carry data; unit variants encode as a bare tag key mapped
// to null.

type taggedRegisterOk struct {
	Known []node.Address `json:"known"`
}

type taggedGossipRandom struct {
	Message string `json:"message"`
}

type taggedGossipSuspect struct {
	Suspects []node.Address `json:"suspects"`
}

func suspectsToSlice(s map[node.Address]struct{}) []node.Address {
	out := make([]node.Address, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	return out
}

func suspectsFromSlice(s []node.Address) map[node.Address]struct{} {
	out := make(map[node.Address]struct{}, len(s))
	for _, a := range s {
		out[a] = struct{}{}
	}
	return out
}

func encodePayload(p node.Payload) (json.RawMessage, error) {
	switch v := p.(type) {
	case node.Register:
		return taggedNull("Register")
	case node.RegisterOk:
		return tagged("RegisterOk", taggedRegisterOk{Known: v.Known})
	case node.GossipRandom:
		return tagged("GossipRandom", taggedGossipRandom{Message: v.Message})
	case node.GossipRandomOk:
		return taggedNull("GossipRandomOk")
	case node.GossipSuspect:
		return tagged("GossipSuspect", taggedGossipSuspect{Suspects: suspectsToSlice(v.Suspects)})
	case node.GossipSuspectOk:
		return taggedNull("GossipSuspectOk")
	default:
		return nil, fmt.Errorf("wire: unknown payload type %T", p)
	}
}

func tagged(tag string, inner any) (json.RawMessage, error) {
	innerJSON, err := json.Marshal(inner)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{tag: innerJSON})
}

func taggedNull(tag string) (json.RawMessage, error) {
	return json.Marshal(map[string]json.RawMessage{tag: json.RawMessage("null")})
}

// decodePayload accepts both the "null" and "{}" encodings of unit
// variants, since encoders vary on this across implementations of the
// same externally-tagged convention.
func decodePayload(raw json.RawMessage) (node.Payload, error) {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("not an externally-tagged object: %w", err)
	}
	if len(wrapper) != 1 {
		return nil, fmt.Errorf("expected exactly one variant tag, got %d", len(wrapper))
	}
	for tag, inner := range wrapper {
		switch tag {
		case "Register":
			return node.Register{}, nil
		case "RegisterOk":
			var t taggedRegisterOk
			if err := json.Unmarshal(inner, &t); err != nil {
				return nil, err
			}
			return node.RegisterOk{Known: t.Known}, nil
		case "GossipRandom":
			var t taggedGossipRandom
			if err := json.Unmarshal(inner, &t); err != nil {
				return nil, err
			}
			return node.GossipRandom{Message: t.Message}, nil
		case "GossipRandomOk":
			return node.GossipRandomOk{}, nil
		case "GossipSuspect":
			var t taggedGossipSuspect
			if err := json.Unmarshal(inner, &t); err != nil {
				return nil, err
			}
			return node.GossipSuspect{Suspects: suspectsFromSlice(t.Suspects)}, nil
		case "GossipSuspectOk":
			return node.GossipSuspectOk{}, nil
		default:
			return nil, fmt.Errorf("unknown payload variant %q", tag)
		}
	}
	panic("unreachable")
}
