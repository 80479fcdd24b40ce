package ikeauth

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/mnsio/ikev2-eap/crypto"
	"github.com/mnsio/ikev2-eap/eap"
	"github.com/mnsio/ikev2-eap/ike"
	"github.com/mnsio/ikev2-eap/protocol"
)

// fixedRandom hands out the RFC 2759 peer-challenge vector so the
// MSCHAPv2 method produces the known-answer NT-Response.
type fixedRandom struct{ peerChallenge []byte }

func (f fixedRandom) Read(b []byte) (int, error) {
	copy(b, f.peerChallenge)
	return len(b), nil
}

func testSaRecord(t *testing.T) *ike.SaRecord {
	t.Helper()
	suite, err := crypto.NewCipherSuite(protocol.IKE_AES_CBC_SHA256_MODP2048.AsList())
	if err != nil {
		t.Fatalf("NewCipherSuite: %v", err)
	}
	ni := bytes.Repeat([]byte{0x11}, 32)
	nr := bytes.Repeat([]byte{0x22}, 32)
	shared := bytes.Repeat([]byte{0x33}, 256)
	spiI := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	spiR := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	keys := crypto.DeriveIkeKeys(suite, ni, nr, shared, spiI, spiR, true)
	return &ike.SaRecord{Suite: suite, Keys: keys, IsInitiator: true}
}

func mschapv2Config() *ike.Config {
	cfg := ike.DefaultConfig()
	cfg.LocalAuth = ike.AuthConfig{
		Method: protocol.AuthMethodEAP,
		Eap: []ike.EapSession{
			{Kind: ike.EapMschapv2, Username: "User", Password: "clientPass"},
		},
	}
	return cfg
}

// encodeChallenge builds the raw EAP-MSCHAPv2 Challenge TypeData per
// RFC 2759 §3: op-code, identifier, value-size, challenge, name.
func encodeChallenge(identifier uint8, challenge []byte, name string) []byte {
	buf := []byte{1, identifier, byte(len(challenge))}
	buf = append(buf, challenge...)
	buf = append(buf, []byte(name)...)
	return buf
}

// encodeSuccess builds the raw EAP-MSCHAPv2 Success TypeData per RFC
// 2759 §4: op-code, identifier, "S=<hex>" message.
func encodeSuccess(identifier uint8, authenticatorResponse string) []byte {
	buf := []byte{3, identifier}
	buf = append(buf, []byte(authenticatorResponse)...)
	return buf
}

func TestAuthenticatorRejectsEapPayloadWhenNotConfiguredForEap(t *testing.T) {
	cfg := ike.DefaultConfig()
	cfg.LocalAuth = ike.AuthConfig{Method: protocol.AUTH_SHARED_KEY_MESSAGE_INTEGRITY_CODE, Psk: []byte("secret")}
	a := New(cfg, testSaRecord(t), Collaborators{})
	if a.IsEap() {
		t.Fatalf("IsEap() = true for a PSK-configured authenticator")
	}

	req := &eap.Message{Code: eap.CodeRequest, Identifier: 1, Type: eap.TypeMSCHAPv2, TypeData: []byte{1, 1, 0}}
	if _, _, _, _, err := a.HandleEapPayload(&protocol.EapPayload{PayloadHeader: &protocol.PayloadHeader{}, EapMessage: req.Encode()}); err == nil {
		t.Fatalf("expected an error handling an EAP payload with no EAP method configured")
	}
}

func TestAuthenticatorDrivesMschapv2ToSuccessAndDerivesAuth(t *testing.T) {
	authChallenge, err := hex.DecodeString("5B5D7C7D7B3F2F3E3C2C602132262628")
	if err != nil {
		t.Fatalf("decode authChallenge: %v", err)
	}
	peerChallenge, err := hex.DecodeString("21402324255E262A28295F2B3A337C7E")
	if err != nil {
		t.Fatalf("decode peerChallenge: %v", err)
	}
	wantNtResponse, err := hex.DecodeString("82309ECD8D708B5EA08FAA3981CD83544233114A3D85D6DF")
	if err != nil {
		t.Fatalf("decode wantNtResponse: %v", err)
	}
	wantAuthResponse := "S=407A5589115FD0D6209F510FE9C04566932CDA56"

	cfg := mschapv2Config()
	rec := testSaRecord(t)
	collab := Collaborators{Rand: fixedRandom{peerChallenge: peerChallenge}}
	a := New(cfg, rec, collab)
	if !a.IsEap() {
		t.Fatalf("IsEap() = false for an EAP-configured authenticator")
	}

	challengeReq := &eap.Message{Code: eap.CodeRequest, Identifier: 1, Type: eap.TypeMSCHAPv2,
		TypeData: encodeChallenge(1, authChallenge, "server")}
	reply, done, _, _, err := a.HandleEapPayload(&protocol.EapPayload{PayloadHeader: &protocol.PayloadHeader{}, EapMessage: challengeReq.Encode()})
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if done {
		t.Fatalf("challenge: method reported done early")
	}
	respMsg, err := eap.Decode(reply.EapMessage)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// ResponsePacket.Encode layout: op, id, value-size, 16 peer-challenge,
	// 8 reserved, 24 nt-response, 1 flags, name.
	if len(respMsg.TypeData) < 3+49 {
		t.Fatalf("response TypeData too short: %d bytes", len(respMsg.TypeData))
	}
	gotNtResponse := respMsg.TypeData[3+16+8 : 3+16+8+24]
	if !bytes.Equal(gotNtResponse, wantNtResponse) {
		t.Fatalf("NtResponse = %x, want %x", gotNtResponse, wantNtResponse)
	}

	successReq := &eap.Message{Code: eap.CodeRequest, Identifier: 1, Type: eap.TypeMSCHAPv2,
		TypeData: encodeSuccess(1, wantAuthResponse)}
	var msk []byte
	var ok bool
	reply, done, ok, msk, err = a.HandleEapPayload(&protocol.EapPayload{PayloadHeader: &protocol.PayloadHeader{}, EapMessage: successReq.Encode()})
	if err != nil {
		t.Fatalf("success: %v", err)
	}
	if !done || !ok {
		t.Fatalf("success: done=%v ok=%v, want both true", done, ok)
	}
	if reply == nil {
		t.Fatalf("success: expected an ack response")
	}
	if len(msk) == 0 {
		t.Fatalf("success: expected a non-empty MSK")
	}

	ownMessage := []byte("initiator ike_auth bytes")
	peerNonce := []byte("peer nonce bytes")
	idBody := []byte{1, 0, 0, 0, 'a', 'l', 'i', 'c', 'e'}
	auth := a.BuildEapAuth(msk, ownMessage, peerNonce, idBody, true)
	if len(auth) == 0 {
		t.Fatalf("BuildEapAuth returned an empty AUTH value")
	}
	again := a.BuildEapAuth(msk, ownMessage, peerNonce, idBody, true)
	if !bytes.Equal(auth, again) {
		t.Fatalf("BuildEapAuth is not deterministic for the same MSK")
	}
}

func TestAuthenticatorNaksUnconfiguredEapType(t *testing.T) {
	cfg := mschapv2Config()
	rec := testSaRecord(t)
	a := New(cfg, rec, Collaborators{Rand: fixedRandom{peerChallenge: make([]byte, 16)}})

	req := &eap.Message{Code: eap.CodeRequest, Identifier: 7, Type: eap.TypeSIM, TypeData: []byte{10}}
	reply, done, _, _, err := a.HandleEapPayload(&protocol.EapPayload{PayloadHeader: &protocol.PayloadHeader{}, EapMessage: req.Encode()})
	if err != nil {
		t.Fatalf("HandleEapPayload: %v", err)
	}
	if done {
		t.Fatalf("a NAK must not complete the conversation")
	}
	nak, err := eap.Decode(reply.EapMessage)
	if err != nil {
		t.Fatalf("decode nak: %v", err)
	}
	if nak.Type != eap.TypeNak {
		t.Fatalf("reply type = %v, want Nak", nak.Type)
	}
}
