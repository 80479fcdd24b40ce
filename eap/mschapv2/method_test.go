package mschapv2

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mnsio/ikev2-eap/eap"
)

// fixedRandom hands out a caller-supplied byte string for Read, which
// lets a test drive the RFC 2759 §9.2 peer-challenge vector through the
// method rather than a value only this run will ever reproduce.
type fixedRandom struct{ b []byte }

func (f fixedRandom) Read(b []byte) (int, error) {
	return copy(b, f.b), nil
}

func TestMethodChallengeResponseSuccess(t *testing.T) {
	authChallenge := mustHex(t, "5B5D7C7D7B3F2F3E3C2C602132262628")
	peerChallenge := mustHex(t, "21402324255E262A28295F2B3A337C7E")
	ntResponse := mustHex(t, "82309ECD8D708B5EA08FAA3981CD83544233114A3D85D6DF")

	m := NewMethod("User", "clientPass", fixedRandom{peerChallenge})
	if m.Type() != eap.TypeMSCHAPv2 {
		t.Fatalf("Type() = %v, want TypeMSCHAPv2", m.Type())
	}

	challenge := &ChallengePacket{Identifier: 7, Challenge: authChallenge, Name: "server"}
	out := m.HandleRequest(7, encodeChallenge(challenge))
	if out.Err != nil {
		t.Fatalf("handling Challenge: %v", out.Err)
	}
	resp, err := ParseResponseForTest(out.Response)
	if err != nil {
		t.Fatalf("parsing our own Response: %v", err)
	}
	if !bytes.Equal(resp.NtResponse, ntResponse) {
		t.Fatalf("NT-Response = %x, want %x", resp.NtResponse, ntResponse)
	}
	if !bytes.Equal(resp.PeerChallenge, peerChallenge) {
		t.Fatalf("PeerChallenge = %x, want %x", resp.PeerChallenge, peerChallenge)
	}

	authResp := GenerateAuthenticatorResponse("clientPass", ntResponse, peerChallenge, authChallenge, "User")
	success := append([]byte{uint8(OpSuccess), 7}, []byte(authResp)...)
	out = m.HandleRequest(7, success)
	if out.Err != nil {
		t.Fatalf("handling Success: %v", out.Err)
	}
	if !out.Done || !out.Ok {
		t.Fatalf("Outcome = %+v, want Done=true Ok=true", out)
	}
	if len(out.MSK) != 64 {
		t.Fatalf("MSK length = %d, want 64", len(out.MSK))
	}
	if out.Response[0] != uint8(OpSuccess) {
		t.Fatalf("expected a Success ack, got op-code %d", out.Response[0])
	}
}

func TestMethodRejectsForgedAuthenticatorResponse(t *testing.T) {
	authChallenge := mustHex(t, "5B5D7C7D7B3F2F3E3C2C602132262628")
	peerChallenge := mustHex(t, "21402324255E262A28295F2B3A337C7E")

	m := NewMethod("User", "clientPass", fixedRandom{peerChallenge})
	challenge := &ChallengePacket{Identifier: 1, Challenge: authChallenge}
	m.HandleRequest(1, encodeChallenge(challenge))

	forged := append([]byte{uint8(OpSuccess), 1}, []byte("S=0000000000000000000000000000000000000000")...)
	out := m.HandleRequest(1, forged)
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if !out.Done || out.Ok {
		t.Fatalf("Outcome = %+v, want Done=true Ok=false", out)
	}
	if out.Response[0] != uint8(OpFailure) {
		t.Fatalf("expected a Failure ack, got op-code %d", out.Response[0])
	}
}

func TestMethodHandlesFailure(t *testing.T) {
	authChallenge := mustHex(t, "5B5D7C7D7B3F2F3E3C2C602132262628")
	peerChallenge := mustHex(t, "21402324255E262A28295F2B3A337C7E")

	m := NewMethod("User", "wrongPass", fixedRandom{peerChallenge})
	m.HandleRequest(2, encodeChallenge(&ChallengePacket{Identifier: 2, Challenge: authChallenge}))

	failure := append([]byte{uint8(OpFailure), 2}, []byte("E=691 R=0")...)
	out := m.HandleRequest(2, failure)
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if !out.Done || out.Ok {
		t.Fatalf("Outcome = %+v, want Done=true Ok=false", out)
	}
}

func encodeChallenge(c *ChallengePacket) []byte {
	buf := []byte{uint8(OpChallenge), c.Identifier, byte(len(c.Challenge))}
	buf = append(buf, c.Challenge...)
	buf = append(buf, []byte(c.Name)...)
	return buf
}

// ParseResponseForTest decodes a Response packet's fields, mirroring
// ResponsePacket.Encode's layout; no production code needs to parse its
// own Response, so this exists only for the test above.
func ParseResponseForTest(data []byte) (*ResponsePacket, error) {
	// op-code(1) identifier(1) value-size(1) peer-challenge(16) reserved(8) nt-response(24) flags(1)
	const headerLen = 3 + 16 + 8 + 24 + 1
	if len(data) < headerLen {
		return nil, errors.New("mschapv2: response too short")
	}
	return &ResponsePacket{
		Identifier:    data[1],
		PeerChallenge: append([]byte{}, data[3:19]...),
		NtResponse:    append([]byte{}, data[27:51]...),
		Name:          string(data[headerLen:]),
	}, nil
}
