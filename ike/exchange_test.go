package ike

import (
	"bytes"
	"net"
	"testing"

	"github.com/mnsio/ikev2-eap/crypto"
	"github.com/mnsio/ikev2-eap/protocol"
)

func testKeys(t *testing.T) *crypto.Keys {
	t.Helper()
	suite := newTestSuite(t)
	ni := bytes.Repeat([]byte{0x11}, 32)
	nr := bytes.Repeat([]byte{0x22}, 32)
	shared := bytes.Repeat([]byte{0x33}, 256)
	spiI := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	spiR := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	return crypto.DeriveIkeKeys(suite, ni, nr, shared, spiI, spiR, true)
}

// testPeerKeys derives the responder's side of the same key schedule as
// testKeys; its Open reads what testKeys seals.
func testPeerKeys(t *testing.T) *crypto.Keys {
	t.Helper()
	suite := newTestSuite(t)
	ni := bytes.Repeat([]byte{0x11}, 32)
	nr := bytes.Repeat([]byte{0x22}, 32)
	shared := bytes.Repeat([]byte{0x33}, 256)
	spiI := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	spiR := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	return crypto.DeriveIkeKeys(suite, ni, nr, shared, spiI, spiR, false)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.LocalId = Identity{IdType: protocol.ID_RFC822_ADDR, Data: []byte("alice@example.com")}
	return cfg
}

func TestBuildAuthRequestEapRoundTrip(t *testing.T) {
	keys := testKeys(t)
	rec := &SaRecord{IsInitiator: true, SpiI: protocol.Spi{1, 2, 3, 4, 5, 6, 7, 8}, Keys: keys}
	cfg := testConfig()

	msg := BuildAuthRequestEap(rec, cfg, 0)
	wire, err := msg.Encode(keys)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded := &protocol.Message{}
	if err := decoded.DecodeHeaderOnly(wire); err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if err := decoded.DecodePayloads(wire, testPeerKeys(t)); err != nil {
		t.Fatalf("decode payloads: %v", err)
	}
	if decoded.Payloads.Get(protocol.PayloadTypeAUTH) != nil {
		t.Fatalf("the eap-path opening request must carry no AUTH payload")
	}
	idi, ok := decoded.Payloads.Get(protocol.PayloadTypeIDi).(*protocol.IdPayload)
	if !ok {
		t.Fatalf("missing IDi payload")
	}
	if string(idi.Data) != "alice@example.com" {
		t.Fatalf("IDi data = %q, want alice@example.com", idi.Data)
	}
}

func TestBuildAuthRequestFinalRoundTrip(t *testing.T) {
	keys := testKeys(t)
	rec := &SaRecord{IsInitiator: true, SpiI: protocol.Spi{1, 2, 3, 4, 5, 6, 7, 8}, Keys: keys}
	cfg := testConfig()
	_, initNet, err := net.ParseCIDR("10.0.0.0/24")
	if err != nil {
		t.Fatalf("parse cidr: %v", err)
	}
	_, respNet, err := net.ParseCIDR("10.0.1.0/24")
	if err != nil {
		t.Fatalf("parse cidr: %v", err)
	}
	cfg.AddSelector(initNet, respNet)

	authData := []byte("fake-auth-value-not-verified-here")
	msg := BuildAuthRequestFinal(rec, cfg, 1, authData)
	wire, err := msg.Encode(keys)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded := &protocol.Message{}
	if err := decoded.DecodeHeaderOnly(wire); err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if err := decoded.DecodePayloads(wire, testPeerKeys(t)); err != nil {
		t.Fatalf("decode payloads: %v", err)
	}
	auth, ok := decoded.Payloads.Get(protocol.PayloadTypeAUTH).(*protocol.AuthPayload)
	if !ok {
		t.Fatalf("missing AUTH payload")
	}
	if !bytes.Equal(auth.Data, authData) {
		t.Fatalf("AUTH data = %x, want %x", auth.Data, authData)
	}
	if decoded.Payloads.Get(protocol.PayloadTypeSA) == nil {
		t.Fatalf("missing child SA payload")
	}
	if decoded.Payloads.Get(protocol.PayloadTypeTSi) == nil || decoded.Payloads.Get(protocol.PayloadTypeTSr) == nil {
		t.Fatalf("missing traffic selector payloads")
	}
}

func TestParseAuthResponseExtractsEapPayload(t *testing.T) {
	payloads := protocol.NewPayloads()
	payloads.Add(&protocol.EapPayload{
		PayloadHeader: &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeNone},
		EapMessage:    []byte{1, 2, 3, 4},
	})
	content := ParseAuthResponse(payloads)
	if content.Eap == nil || !bytes.Equal(content.Eap.EapMessage, []byte{1, 2, 3, 4}) {
		t.Fatalf("ParseAuthResponse did not extract the EAP payload: %+v", content)
	}
	if content.PeerAuth != nil {
		t.Fatalf("unexpected PeerAuth: %+v", content.PeerAuth)
	}
}

func TestAuthMethodForWireMapsEapToSharedKey(t *testing.T) {
	if got := authMethodForWire(protocol.AuthMethodEAP); got != protocol.AUTH_SHARED_KEY_MESSAGE_INTEGRITY_CODE {
		t.Fatalf("authMethodForWire(EAP) = %v, want AUTH_SHARED_KEY_MESSAGE_INTEGRITY_CODE", got)
	}
	if got := authMethodForWire(protocol.AUTH_RSA_DIGITAL_SIGNATURE); got != protocol.AUTH_RSA_DIGITAL_SIGNATURE {
		t.Fatalf("authMethodForWire passed through a non-EAP method unexpectedly: %v", got)
	}
}
