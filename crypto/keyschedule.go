package crypto

import "github.com/mnsio/ikev2-eap/protocol"

// Keys is the full IKE SA key schedule (RFC 7296 §2.14): SKEYSEED plus
// the seven derived keys, bound to one CipherSuite and to which side of
// the exchange this process played. Keys implements protocol.Cryptor so
// a Message can be sealed/opened directly against it.
type Keys struct {
	suite       *CipherSuite
	isInitiator bool

	SKEYSEED []byte
	KEYMAT   []byte

	SkD        []byte
	SkAi, SkAr []byte
	SkEi, SkEr []byte
	SkPi, SkPr []byte
}

// DeriveIkeKeys computes SKEYSEED and the IKE SA key schedule from the
// two nonces, the DH shared secret and both SPIs, per RFC 7296 §2.14:
//
//	SKEYSEED = prf(Ni | Nr, g^ir)
//	{SK_d | SK_ai | SK_ar | SK_ei | SK_er | SK_pi | SK_pr}
//	    = prf+ (SKEYSEED, Ni | Nr | SPIi | SPIr)
func DeriveIkeKeys(suite *CipherSuite, ni, nr, sharedSecret, spiI, spiR []byte, isInitiator bool) *Keys {
	skeyseed := suite.Prf.Apply(append(append([]byte{}, ni...), nr...), sharedSecret)

	kmLen := 3*suite.Prf.Length + 2*suite.KeyLen + 2*suite.MacKeyLen
	seed := append(append([]byte{}, ni...), nr...)
	seed = append(seed, spiI...)
	seed = append(seed, spiR...)
	keymat := suite.Prf.PrfPlus(skeyseed, seed, kmLen)

	k := &Keys{suite: suite, isInitiator: isInitiator, SKEYSEED: skeyseed, KEYMAT: keymat}
	offset := 0
	take := func(n int) []byte {
		b := keymat[offset : offset+n]
		offset += n
		return b
	}
	k.SkD = take(suite.Prf.Length)
	k.SkAi = take(suite.MacKeyLen)
	k.SkAr = take(suite.MacKeyLen)
	k.SkEi = take(suite.KeyLen)
	k.SkEr = take(suite.KeyLen)
	k.SkPi = take(suite.Prf.Length)
	k.SkPr = take(suite.Prf.Length)
	return k
}

// ChildKeymat is the Child SA (ESP) key material derived from SK_d
// (RFC 7296 §2.17): KEYMAT = prf+(SK_d, [g^ir(new) |] Ni | Nr).
type ChildKeymat struct {
	EncrI, IntegI []byte
	EncrR, IntegR []byte
}

// DeriveChildKeys derives one Child SA's keys. extraDh is the new DH
// shared secret for a PFS-rekeyed child SA, or nil for the first child
// SA created inside IKE_AUTH.
func DeriveChildKeys(suite *CipherSuite, skD, ni, nr, extraDh []byte) *ChildKeymat {
	kmLen := 2*suite.KeyLen + 2*suite.MacKeyLen
	seed := append(append([]byte{}, extraDh...), ni...)
	seed = append(seed, nr...)
	keymat := suite.Prf.PrfPlus(skD, seed, kmLen)

	offset := 0
	take := func(n int) []byte {
		b := keymat[offset : offset+n]
		offset += n
		return b
	}
	return &ChildKeymat{
		EncrI:  take(suite.KeyLen),
		IntegI: take(suite.MacKeyLen),
		EncrR:  take(suite.KeyLen),
		IntegR: take(suite.MacKeyLen),
	}
}

// encKeys/macKeys pick (mine, peer's) key from the asymmetric initiator/
// responder key pairs (RFC 7296 §2.15: the initiator's SK_ei/SK_ai
// protect its own outgoing messages; the responder reads them back with
// the same keys).
func (k *Keys) encKeys() (mine, peer []byte) {
	if k.isInitiator {
		return k.SkEi, k.SkEr
	}
	return k.SkEr, k.SkEi
}

func (k *Keys) macKeys() (mine, peer []byte) {
	if k.isInitiator {
		return k.SkAi, k.SkAr
	}
	return k.SkAr, k.SkAi
}

// Open implements protocol.Cryptor. raw is the complete incoming
// message (header through the end of the SK payload); it verifies and
// decrypts with the peer's keys, returning the inner payload chain.
func (k *Keys) Open(raw []byte) ([]byte, error) {
	_, peerMac := k.macKeys()
	_, peerEnc := k.encKeys()
	return k.suite.Cipher.VerifyDecrypt(raw, peerMac, peerEnc)
}

// Seal implements protocol.Cryptor: it finishes encoding header (filling
// in MsgLength), builds the SK payload's own generic header around the
// to-be-encrypted chain, and encrypts+authenticates with this side's
// own keys.
func (k *Keys) Seal(header *protocol.Header, firstPayload protocol.PayloadType, plain []byte) ([]byte, error) {
	myMac, _ := k.macKeys()
	myEnc, _ := k.encKeys()

	bodyLen := len(plain) + k.suite.Cipher.Overhead(plain)
	header.MsgLength = uint32(protocol.IkeHeaderLen+protocol.PayloadHeaderLen) + uint32(bodyLen)
	prefix := append(header.Encode(), protocol.EncodePayloadHeader(firstPayload, uint16(bodyLen))...)

	body, err := k.suite.Cipher.EncryptMac(prefix, plain, myMac, myEnc)
	if err != nil {
		return nil, err
	}
	return append(prefix, body...), nil
}
