package eapaka

import (
	"bytes"
	"testing"

	"github.com/mnsio/ikev2-eap/eap"
	"github.com/mnsio/ikev2-eap/platform"
)

type fakeAkaSim struct {
	vector *platform.AkaVector
	err    error
}

func (f fakeAkaSim) AuthenticateSim(rands [][16]byte) ([]platform.SimVector, error) { return nil, nil }
func (f fakeAkaSim) AuthenticateAka(rand, autn []byte) (*platform.AkaVector, error) {
	return f.vector, f.err
}

func signedAkaChallenge(t *testing.T, identifier uint8, identity string, rand, autn []byte, vector *platform.AkaVector) ([]byte, AkaKeys) {
	t.Helper()
	keys := DeriveKeysAka(identity, vector.Ck, vector.Ik)
	pkt := &Packet{Subtype: SubtypeChallenge, Attributes: []Attribute{
		&AtRandAttr{Rands: [][]byte{rand}},
		AtAutn(autn),
		&AtMacAttr{Mac: make([]byte, 16)},
	}}
	if err := pkt.Sign(eap.TypeAKA, eap.CodeRequest, identifier, keys.KAut); err != nil {
		t.Fatalf("sign challenge: %v", err)
	}
	wire, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("marshal challenge: %v", err)
	}
	return wire, keys
}

func TestAkaMethodChallengeSuccessDerivesMskAndEmsk(t *testing.T) {
	rand := bytes.Repeat([]byte{0x44}, 16)
	autn := bytes.Repeat([]byte{0x55}, 16)
	vector := &platform.AkaVector{Res: []byte("res-value"), Ck: bytes.Repeat([]byte{0x66}, 16), Ik: bytes.Repeat([]byte{0x77}, 16)}

	wire, keys := signedAkaChallenge(t, 9, "234150999999999", rand, autn, vector)
	m := NewAkaMethod(fakeSubscriber{id: "234150999999999"}, fakeAkaSim{vector: vector})

	out := m.HandleRequest(9, wire)
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if !out.Done || !out.Ok {
		t.Fatalf("Done=%v Ok=%v, want both true", out.Done, out.Ok)
	}
	if !bytes.Equal(out.MSK, keys.MSK) || !bytes.Equal(out.EMSK, keys.EMSK) {
		t.Fatalf("MSK/EMSK did not match the keys derived from the same vector")
	}

	resp, err := ParsePacket(out.Response)
	if err != nil {
		t.Fatalf("parsing reply: %v", err)
	}
	res, ok := resp.Find(AT_RES).(*AtResAttr)
	if !ok || !bytes.Equal(res.Res, vector.Res) {
		t.Fatalf("reply AT_RES = %+v, want %x", resp.Find(AT_RES), vector.Res)
	}
	verified, err := resp.Verify(eap.TypeAKA, eap.CodeResponse, 9, keys.KAut)
	if err != nil {
		t.Fatalf("verify reply mac: %v", err)
	}
	if !verified {
		t.Fatalf("the method's own response did not carry a valid AT_MAC")
	}
}

func TestAkaMethodChallengeRejectsForgedMac(t *testing.T) {
	rand := bytes.Repeat([]byte{0x44}, 16)
	autn := bytes.Repeat([]byte{0x55}, 16)
	vector := &platform.AkaVector{Res: []byte("res-value"), Ck: bytes.Repeat([]byte{0x66}, 16), Ik: bytes.Repeat([]byte{0x77}, 16)}

	pkt := &Packet{Subtype: SubtypeChallenge, Attributes: []Attribute{
		&AtRandAttr{Rands: [][]byte{rand}},
		AtAutn(autn),
		&AtMacAttr{Mac: bytes.Repeat([]byte{0xFF}, 16)}, // never signed with the real KAut
	}}
	wire, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("marshal challenge: %v", err)
	}
	m := NewAkaMethod(fakeSubscriber{id: "234150999999999"}, fakeAkaSim{vector: vector})

	out := m.HandleRequest(9, wire)
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if !out.Done || out.Ok {
		t.Fatalf("Done=%v Ok=%v, want Done=true Ok=false for a forged MAC", out.Done, out.Ok)
	}
}

func TestAkaMethodSynchronizationFailureRequestsResync(t *testing.T) {
	rand := bytes.Repeat([]byte{0x44}, 16)
	autn := bytes.Repeat([]byte{0x55}, 16)
	auts := bytes.Repeat([]byte{0x88}, 14)
	vector := &platform.AkaVector{Auts: auts}

	pkt := &Packet{Subtype: SubtypeChallenge, Attributes: []Attribute{
		&AtRandAttr{Rands: [][]byte{rand}},
		AtAutn(autn),
		&AtMacAttr{Mac: make([]byte, 16)},
	}}
	wire, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("marshal challenge: %v", err)
	}
	m := NewAkaMethod(fakeSubscriber{id: "234150999999999"}, fakeAkaSim{vector: vector})

	out := m.HandleRequest(3, wire)
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Done {
		t.Fatalf("a synchronization failure must not finish the method")
	}
	resp, err := ParsePacket(out.Response)
	if err != nil {
		t.Fatalf("parsing reply: %v", err)
	}
	if resp.Subtype != SubtypeSynchronizationFailure {
		t.Fatalf("Subtype = %d, want SubtypeSynchronizationFailure", resp.Subtype)
	}
	autsAttr, ok := resp.Find(AT_AUTS).(*AtAutsAttr)
	if !ok || !bytes.Equal(autsAttr.Auts, auts) {
		t.Fatalf("reply AT_AUTS = %+v, want %x", resp.Find(AT_AUTS), auts)
	}
}

func TestAkaMethodChallengeMissingAutnIsClientError(t *testing.T) {
	rand := bytes.Repeat([]byte{0x44}, 16)
	pkt := &Packet{Subtype: SubtypeChallenge, Attributes: []Attribute{
		&AtRandAttr{Rands: [][]byte{rand}},
		&AtMacAttr{Mac: make([]byte, 16)},
	}}
	wire, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("marshal challenge: %v", err)
	}
	m := NewAkaMethod(fakeSubscriber{id: "234150999999999"}, fakeAkaSim{})

	out := m.HandleRequest(3, wire)
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	resp, err := ParsePacket(out.Response)
	if err != nil {
		t.Fatalf("parsing reply: %v", err)
	}
	if resp.Subtype != SubtypeClientError {
		t.Fatalf("Subtype = %d, want SubtypeClientError", resp.Subtype)
	}
}

func TestAkaMethodTypeIsAKA(t *testing.T) {
	m := NewAkaMethod(fakeSubscriber{}, fakeAkaSim{})
	if m.Type() != eap.TypeAKA {
		t.Fatalf("Type() = %v, want TypeAKA", m.Type())
	}
}
