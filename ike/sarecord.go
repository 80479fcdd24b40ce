package ike

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/mnsio/ikev2-eap/crypto"
	"github.com/mnsio/ikev2-eap/protocol"
)

// SaRecord is one IKE SA's negotiation/keying state: the SPI pair, both
// nonces, the DH exchange, and - once IKE_SA_INIT completes - the
// derived key schedule, kept separate from the session/event-loop
// concerns in Session.
type SaRecord struct {
	SpiI, SpiR protocol.Spi

	IsInitiator bool

	Suite *crypto.CipherSuite

	Ni, Nr *big.Int

	dhPriv   *big.Int
	DhPublic *big.Int
	DhShared *big.Int

	Keys *crypto.Keys

	// InitReqBytes/InitRespBytes are the complete encoded IKE_SA_INIT
	// request and response, kept for the AUTH payload's SignedOctets
	// (RFC 7296 §2.15).
	InitReqBytes, InitRespBytes []byte

	nextMsgId uint32 // next message ID this side will use for a local request

	// peerExpected is the next peer request message ID accepted as new,
	// under the single in-flight request RFC 7296 §2.3 allows without
	// pipelining: the ID just below it is a retransmission of the last
	// processed request, and any other ID is rejected.
	peerExpected uint32
}

// NewSaRecord starts a fresh IKE SA record for the initiator side,
// generating Ni and a DH keypair in the chosen group.
func NewSaRecord(suite *crypto.CipherSuite) (*SaRecord, error) {
	r := &SaRecord{IsInitiator: true, Suite: suite}
	nonce, err := randomNonce(suite.Prf.Length)
	if err != nil {
		return nil, err
	}
	r.Ni = nonce
	if err := r.generateDhKeypair(); err != nil {
		return nil, err
	}
	return r, nil
}

// randomNonce draws an RFC 7296 §2.10-compliant nonce: at least half the
// key size of the negotiated PRF and never less than 16 octets.
func randomNonce(prfLen int) (*big.Int, error) {
	bits := prfLen * 8
	if bits < 128 {
		bits = 128
	}
	b := make([]byte, bits/8)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	b[0] |= 0x80 // force full bit length, matching rand.Prime's guarantee
	return new(big.Int).SetBytes(b), nil
}

func (r *SaRecord) generateDhKeypair() error {
	priv, err := r.Suite.DhGroup.GeneratePrivate()
	if err != nil {
		return err
	}
	r.dhPriv = priv
	r.DhPublic = r.Suite.DhGroup.Public(priv)
	return nil
}

// SetPeerKe validates and records the peer's KE payload value, deriving
// the shared secret; rejects degenerate DH values per RFC 7296 §5.
func (r *SaRecord) SetPeerKe(peerPublic *big.Int) error {
	if !r.Suite.DhGroup.ValidPublicValue(peerPublic) {
		return fmt.Errorf("ike: peer ke payload is a degenerate dh value")
	}
	r.DhShared = r.Suite.DhGroup.Shared(r.dhPriv, peerPublic)
	return nil
}

// DeriveKeys computes the IKE SA key schedule once both nonces, both
// SPIs and the DH shared secret are known.
func (r *SaRecord) DeriveKeys() error {
	if r.DhShared == nil {
		return fmt.Errorf("ike: dh exchange incomplete")
	}
	r.Keys = crypto.DeriveIkeKeys(r.Suite, r.Ni.Bytes(), r.Nr.Bytes(), r.DhShared.Bytes(), r.SpiI[:], r.SpiR[:], r.IsInitiator)
	return nil
}

// NextMessageId returns the message ID to stamp on our next local
// request, and advances the counter (RFC 7296 §2.2: IDs start at zero
// and increment by one per request, independently per direction).
func (r *SaRecord) NextMessageId() uint32 {
	id := r.nextMsgId
	r.nextMsgId++
	return id
}

// RecordReceived checks whether a peer request with the given message
// ID is the next one in sequence, a duplicate of the last processed
// request (safe to answer again with the cached response), or a replay
// to be silently dropped (RFC 7296 §2.1's message-ID window of one
// outstanding request).
//
// It returns ok=true exactly once per distinct, in-order message ID.
func (r *SaRecord) RecordReceived(msgId uint32) (ok bool, isRetransmit bool) {
	switch {
	case msgId == r.peerExpected:
		r.peerExpected++
		return true, false
	case msgId == r.peerExpected-1:
		return false, true
	default:
		return false, false
	}
}

// CompareNonce implements the simultaneous-rekey tie-break RFC 7296
// §2.25.1 specifies: the side whose nonce is numerically lower loses and
// must delete its own new SA in favor of the peer's. mine/peer are this
// exchange's Ni values (the nonce each side sent with its
// CREATE_CHILD_SA rekey request), compared as unsigned big-endian octet
// strings.
func CompareNonce(mine, peer []byte) int {
	return bytes.Compare(mine, peer)
}

// ProposalFor builds the SA payload proposal this side offers for prot,
// stamped with spi (the local SPI once one/four octets have been
// allocated for a child SA, or unused for the IKE SA itself).
func ProposalFor(prot protocol.ProtocolId, cfg protocol.ProposalConfig, spi []byte) *protocol.Proposal {
	return protocol.ProposalFromConfig(prot, cfg, spi)
}
