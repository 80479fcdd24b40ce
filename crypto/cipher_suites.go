package crypto

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mnsio/ikev2-eap/protocol"
)

// Cipher is the common capability of both the AEAD and non-AEAD
// transform combinations: authenticated open and seal around an IKE
// packet body.
type Cipher interface {
	Overhead(clear []byte) int
	VerifyDecrypt(ike, skA, skE []byte) (dec []byte, err error)
	EncryptMac(headers, payload, skA, skE []byte) (b []byte, err error)
}

// CipherSuite is the fully resolved set of algorithms for one
// negotiated SA (IKE or Child), built from the ProposalConfig the
// two sides agreed on.
type CipherSuite struct {
	Cipher // aead or simpleCipher
	Prf    *Prf
	DhGroup *dhGroup

	// Lengths, in bytes, of the key material needed for each component.
	KeyLen, MacKeyLen int
}

// NewCipherSuite builds a CipherSuite from a negotiated transform list
// (the transforms carried by the Proposal the peer accepted).
func NewCipherSuite(trs []*protocol.Transform) (*CipherSuite, error) {
	cs := &CipherSuite{}
	var aeadC *aeadCipher
	var plainC *simpleCipher

	for _, tr := range trs {
		switch tr.Type {
		case protocol.TRANSFORM_TYPE_DH:
			dh, err := dhTransform(tr.TransformId)
			if err != nil {
				return nil, err
			}
			cs.DhGroup = dh
		case protocol.TRANSFORM_TYPE_PRF:
			prf, err := prfTransform(tr.TransformId)
			if err != nil {
				return nil, err
			}
			cs.Prf = prf
		case protocol.TRANSFORM_TYPE_ENCR:
			keyLen := int(tr.KeyLength) / 8 // attribute carries bits
			var ok bool
			if plainC, ok = cipherTransform(tr.TransformId, keyLen, plainC); ok {
				cs.KeyLen = keyLen
				continue
			}
			if aeadC, keyLen, ok = aeadTransform(tr.TransformId, keyLen, aeadC); ok {
				cs.KeyLen = keyLen
				continue
			}
			return nil, fmt.Errorf("crypto: unsupported encr transform %d", tr.TransformId)
		case protocol.TRANSFORM_TYPE_INTEG:
			var ok bool
			if plainC, ok = integrityTransform(tr.TransformId, plainC); !ok {
				return nil, fmt.Errorf("crypto: unsupported integ transform %d", tr.TransformId)
			}
			cs.MacKeyLen = plainC.macTruncLen
		case protocol.TRANSFORM_TYPE_ESN:
			// carried for completeness; child SA sequence number width,
			// not a cryptographic primitive this package constructs.
		default:
			return nil, fmt.Errorf("crypto: unsupported transform type %d", tr.Type)
		}
	}
	if plainC == nil && aeadC == nil {
		return nil, fmt.Errorf("crypto: cipher transform was not set")
	}
	if plainC != nil && aeadC != nil {
		return nil, fmt.Errorf("crypto: invalid cipher transform combination")
	}
	if plainC != nil {
		cs.Cipher = plainC
	}
	if aeadC != nil {
		cs.Cipher = aeadC
		// an AEAD transform carries its own integrity guarantee; IKE
		// still derives an SK_a pair, but they are zero-length.
		cs.MacKeyLen = 0
	}
	return cs, nil
}

func (cs *CipherSuite) CheckIkeTransforms(logger log.Logger) error {
	if cs.DhGroup == nil || cs.Prf == nil {
		return fmt.Errorf("crypto: invalid ike cipher transform combination")
	}
	level.Debug(logger).Log("msg", "ike cipher suite", "suite", fmt.Sprintf("%+v", *cs))
	return nil
}

func (cs *CipherSuite) CheckEspTransforms(logger log.Logger) error {
	level.Debug(logger).Log("msg", "esp cipher suite", "suite", fmt.Sprintf("%+v", *cs))
	return nil
}
