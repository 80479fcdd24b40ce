package ike

// keyPadText is the fixed string RFC 7296 §2.15 mixes into the
// pre-shared-key AUTH computation.
const keyPadText = "Key Pad for IKEv2"

// ComputeAuthPsk computes the AUTH payload value for the shared-key
// method (RFC 7296 §2.15):
//
//	AUTH = prf(prf(psk, "Key Pad for IKEv2"), SignedOctets)
//	SignedOctets = RealMessage | PeerNonce | prf(SK_px, IdPayloadBody)
//
// ownMessage is the complete first message this side sent (encoded
// bytes), peerNonce is the other side's nonce, idPayloadBody is the
// encoded ID payload body (type octet + 3 reserved + identification
// data) for the side whose AUTH is being computed, and skP is SK_pi
// (computing our own AUTH as initiator) or SK_pr (verifying the peer's,
// or computing our own as responder).
func (rec *SaRecord) ComputeAuthPsk(psk, ownMessage, peerNonce, idPayloadBody, skP []byte) []byte {
	keyPad := rec.Suite.Prf.Apply(psk, []byte(keyPadText))
	macedId := rec.Suite.Prf.Apply(skP, idPayloadBody)
	signed := append(append(append([]byte{}, ownMessage...), peerNonce...), macedId...)
	return rec.Suite.Prf.Apply(keyPad, signed)
}
