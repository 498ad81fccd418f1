package wire

import (
	"testing"

	"github.com/atvirokodosprendimai/gossipmesh/pkg/node"
)

func a(port uint16) node.Address { return node.Address{Host: "127.0.0.1", Port: port} }

func roundTrip(t *testing.T, m node.Message) node.Message {
	t.Helper()
	data, err := Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v (payload was %s)", err, data)
	}
	return decoded
}

func TestRoundTripRegister(t *testing.T) {
	m := node.Message{Src: a(9001), Dst: a(9002), ID: 1, Payload: node.Register{}}
	got := roundTrip(t, m)
	if got.Src != m.Src || got.Dst != m.Dst || got.ID != m.ID {
		t.Errorf("envelope fields mismatched: got %+v", got)
	}
	if _, ok := got.Payload.(node.Register); !ok {
		t.Errorf("expected Register, got %T", got.Payload)
	}
}

func TestRoundTripRegisterOkWithKnownPeers(t *testing.T) {
	replyTo := uint32(41)
	m := node.Message{
		Src: a(9001), Dst: a(9002), ID: 42, ReplyTo: &replyTo,
		Payload: node.RegisterOk{Known: []node.Address{a(1), a(2)}},
	}
	got := roundTrip(t, m)
	if got.ReplyTo == nil || *got.ReplyTo != 41 {
		t.Fatal("expected reply_to preserved")
	}
	ok, isOk := got.Payload.(node.RegisterOk)
	if !isOk {
		t.Fatalf("expected RegisterOk, got %T", got.Payload)
	}
	if len(ok.Known) != 2 {
		t.Errorf("expected 2 known peers, got %d", len(ok.Known))
	}
}

func TestRoundTripGossipSuspectSet(t *testing.T) {
	m := node.Message{
		Src: a(9001), Dst: a(9002), ID: 3,
		Payload: node.GossipSuspect{Suspects: map[node.Address]struct{}{a(5): {}, a(6): {}}},
	}
	got := roundTrip(t, m)
	gs, ok := got.Payload.(node.GossipSuspect)
	if !ok {
		t.Fatalf("expected GossipSuspect, got %T", got.Payload)
	}
	if len(gs.Suspects) != 2 {
		t.Errorf("expected 2 suspects, got %d", len(gs.Suspects))
	}
}

func TestDecodeRejectsUnknownVariant(t *testing.T) {
	_, err := Decode([]byte(`{"src":"1.2.3.4:1","dst":"1.2.3.4:2","id":1,"reply_to":null,"payload":{"Bogus":null}}`))
	if err == nil {
		t.Error("expected decode to reject an unknown payload tag")
	}
}

func TestDecodeRejectsZeroID(t *testing.T) {
	_, err := Decode([]byte(`{"src":"1.2.3.4:1","dst":"1.2.3.4:2","id":0,"reply_to":null,"payload":{"Register":null}}`))
	if err == nil {
		t.Error("expected decode to reject id 0")
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	if err == nil {
		t.Error("expected decode to reject malformed JSON")
	}
}

func TestAddressStringRoundTrip(t *testing.T) {
	addr, err := node.ParseAddress("10.0.0.5:51820")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if addr.String() != "10.0.0.5:51820" {
		t.Errorf("got %s", addr.String())
	}
}
