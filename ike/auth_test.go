package ike

import (
	"bytes"
	"testing"

	"github.com/mnsio/ikev2-eap/crypto"
	"github.com/mnsio/ikev2-eap/protocol"
)

func newTestSuite(t *testing.T) *crypto.CipherSuite {
	t.Helper()
	suite, err := crypto.NewCipherSuite(protocol.IKE_AES_CBC_SHA256_MODP2048.AsList())
	if err != nil {
		t.Fatalf("NewCipherSuite: %v", err)
	}
	return suite
}

func TestComputeAuthPskIsDeterministicAndKeyed(t *testing.T) {
	rec := &SaRecord{Suite: newTestSuite(t)}
	psk := []byte("shared-secret")
	ownMessage := []byte("first ike sa_init message bytes")
	peerNonce := []byte("peer nonce bytes")
	idBody := []byte{1, 0, 0, 0, 'a', 'l', 'i', 'c', 'e'}
	skP := []byte("sk_pi material")

	a := rec.ComputeAuthPsk(psk, ownMessage, peerNonce, idBody, skP)
	b := rec.ComputeAuthPsk(psk, ownMessage, peerNonce, idBody, skP)
	if !bytes.Equal(a, b) {
		t.Fatalf("ComputeAuthPsk is not deterministic: %x != %x", a, b)
	}

	wrongPsk := rec.ComputeAuthPsk([]byte("different-secret"), ownMessage, peerNonce, idBody, skP)
	if bytes.Equal(a, wrongPsk) {
		t.Fatalf("AUTH value did not change with a different psk")
	}

	wrongId := rec.ComputeAuthPsk(psk, ownMessage, peerNonce, []byte{1, 0, 0, 0, 'e', 'v', 'e'}, skP)
	if bytes.Equal(a, wrongId) {
		t.Fatalf("AUTH value did not change with a different id payload body")
	}
}
