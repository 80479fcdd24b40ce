package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/mnsio/ikev2-eap/protocol"
)

// macFunc computes the full, untruncated MAC over b under key.
type macFunc func(key, b []byte) []byte

// integrityTransform fills in the MAC side of a simpleCipher from a
// negotiated INTEG transform. The cipher may already carry an ENCR
// transform set by cipherTransform; only the mac-related fields are
// touched here.
func integrityTransform(id uint16, cipher *simpleCipher) (*simpleCipher, bool) {
	_, truncLen, fn, ok := _integrityTransform(id)
	if !ok {
		return nil, false
	}
	if cipher == nil {
		cipher = &simpleCipher{}
	}
	cipher.macLen = truncLen
	cipher.macTruncLen = truncLen
	cipher.macFunc = fn
	cipher.AuthTransformId = protocol.AuthTransformId(id)
	return cipher, true
}

func _integrityTransform(id uint16) (fullLen, truncLen int, fn macFunc, ok bool) {
	switch protocol.AuthTransformId(id) {
	case protocol.AUTH_HMAC_MD5_96:
		return md5.Size, 12, truncatedHmac(md5.New, 12), true
	case protocol.AUTH_HMAC_SHA1_96:
		return sha1.Size, 12, truncatedHmac(sha1.New, 12), true
	case protocol.AUTH_HMAC_SHA2_256_128:
		return sha256.Size, 16, truncatedHmac(sha256.New, 16), true
	case protocol.AUTH_HMAC_SHA2_384_192:
		return sha512.Size384, 24, truncatedHmac(sha512.New384, 24), true
	case protocol.AUTH_HMAC_SHA2_512_256:
		return sha512.Size, 32, truncatedHmac(sha512.New, 32), true
	default:
		return 0, 0, nil, false
	}
}

func truncatedHmac(h func() hash.Hash, truncLen int) macFunc {
	return func(key, b []byte) []byte {
		mac := hmac.New(h, key)
		mac.Write(b)
		full := mac.Sum(nil)
		return full[:truncLen]
	}
}

func verifyMac(key, ike []byte, macLen int, fn macFunc) error {
	if macLen == 0 {
		return nil
	}
	if len(ike) < macLen {
		return protocol.ERR_INVALID_SYNTAX
	}
	body := ike[:len(ike)-macLen]
	want := ike[len(ike)-macLen:]
	got := fn(key, body)
	if !hmac.Equal(got, want) {
		return protocol.ERR_AUTHENTICATION_FAILED
	}
	return nil
}
