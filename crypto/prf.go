package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"github.com/mnsio/ikev2-eap/protocol"
)

// prfFunc computes prf(key, data) for one negotiated PRF algorithm.
type prfFunc func(key, data []byte) []byte

// Prf wraps a negotiated PRF transform together with its output length,
// and provides the iterated prf+ construction used throughout the IKEv2
// key schedule (RFC 7296 §2.13).
type Prf struct {
	protocol.PrfTransformId
	Length int
	prf    prfFunc
}

func hmacPrf(h func() hash.Hash) prfFunc {
	return func(key, data []byte) []byte {
		mac := hmac.New(h, key)
		mac.Write(data)
		return mac.Sum(nil)
	}
}

func prfTransform(id uint16) (*Prf, error) {
	switch protocol.PrfTransformId(id) {
	case protocol.PRF_HMAC_MD5:
		return &Prf{PrfTransformId: protocol.PRF_HMAC_MD5, Length: md5.Size, prf: hmacPrf(md5.New)}, nil
	case protocol.PRF_HMAC_SHA1:
		return &Prf{PrfTransformId: protocol.PRF_HMAC_SHA1, Length: sha1.Size, prf: hmacPrf(sha1.New)}, nil
	case protocol.PRF_HMAC_SHA2_256:
		return &Prf{PrfTransformId: protocol.PRF_HMAC_SHA2_256, Length: sha256.Size, prf: hmacPrf(sha256.New)}, nil
	case protocol.PRF_HMAC_SHA2_384:
		return &Prf{PrfTransformId: protocol.PRF_HMAC_SHA2_384, Length: sha512.Size384, prf: hmacPrf(sha512.New384)}, nil
	case protocol.PRF_HMAC_SHA2_512:
		return &Prf{PrfTransformId: protocol.PRF_HMAC_SHA2_512, Length: sha512.Size, prf: hmacPrf(sha512.New)}, nil
	default:
		return nil, fmt.Errorf("crypto: unsupported prf transform %d", id)
	}
}

// Apply computes prf(key, data).
func (p *Prf) Apply(key, data []byte) []byte { return p.prf(key, data) }

// PrfPlus is the prf+ key-stretching construction (RFC 7296 §2.13):
//
//	prf+(K,S) = T1 | T2 | T3 | ...
//	T1 = prf(K, S | 0x01)
//	Tn = prf(K, T(n-1) | S | n)
//
// and returns the first wantBytes octets.
func (p *Prf) PrfPlus(key, seed []byte, wantBytes int) []byte {
	var out []byte
	var prev []byte
	for round := byte(1); len(out) < wantBytes; round++ {
		in := append(append([]byte{}, prev...), seed...)
		in = append(in, round)
		prev = p.prf(key, in)
		out = append(out, prev...)
	}
	return out[:wantBytes]
}
