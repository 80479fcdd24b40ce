package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/mnsio/ikev2-eap/protocol"
)

// aeadSaltLen is the fixed salt length IKEv2 combines with the explicit
// per-packet IV to build the 12-byte GCM nonce (RFC 7296 §5.1, RFC 5282).
const aeadSaltLen = 4

// aeadCipher wraps an AEAD transform (AES-GCM). Unlike simpleCipher,
// encryption and integrity are a single negotiated transform: there is
// no separate INTEG transform to fold in.
type aeadCipher struct {
	protocol.EncrTransformId
	icvLen int
	keyLen int
	salt   []byte
	aead   func(key []byte) (cipher.AEAD, error)
}

func (c *aeadCipher) String() string { return c.EncrTransformId.String() }

// standardGcmIvLen is the explicit per-packet IV length RFC 5282 uses
// with AES-GCM's standard 12-byte nonce, once the 4-byte salt is
// subtracted (RFC 7296 §5.1).
const standardGcmIvLen = 12 - aeadSaltLen

func (c *aeadCipher) Overhead(clear []byte) int {
	return standardGcmIvLen + c.icvLen
}

func newAesGcm(keyLen int) func(key []byte) (cipher.AEAD, error) {
	return func(key []byte) (cipher.AEAD, error) {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	}
}

// aeadTransform recognizes the AES-GCM ICV variants. keyLen is the
// requested cipher key length in bytes (from the transform's
// KEY_LENGTH attribute); it does not include the 4-byte salt, which is
// transmitted as part of the key material but not counted against the
// negotiated key length. The returned length is keyLen plus the salt,
// the size of the SK_e key material VerifyDecrypt and EncryptMac split.
func aeadTransform(cipherId uint16, keyLen int, existing *aeadCipher) (*aeadCipher, int, bool) {
	icvLen, ok := aeadIcvLen(protocol.EncrTransformId(cipherId))
	if !ok {
		return nil, keyLen, false
	}
	c := existing
	if c == nil {
		c = &aeadCipher{}
	}
	c.EncrTransformId = protocol.EncrTransformId(cipherId)
	c.icvLen = icvLen
	c.keyLen = keyLen
	c.aead = newAesGcm(keyLen)
	return c, keyLen + aeadSaltLen, true
}

func aeadIcvLen(id protocol.EncrTransformId) (int, bool) {
	switch id {
	case protocol.ENCR_AES_GCM_8_ICV:
		return 8, true
	case protocol.ENCR_AES_GCM_12_ICV:
		return 12, true
	case protocol.ENCR_AES_GCM_16_ICV:
		return 16, true
	default:
		return 0, false
	}
}

// VerifyDecrypt opens the AEAD sealed box. ike is the complete packet
// (header + SK payload header + IV + ciphertext + ICV); skE carries the
// cipher key followed by the 4-byte salt (RFC 7296 §5.1).
func (c *aeadCipher) VerifyDecrypt(ike, skA, skE []byte) ([]byte, error) {
	key, salt := skE[:len(skE)-aeadSaltLen], skE[len(skE)-aeadSaltLen:]
	aead, err := c.aead(key)
	if err != nil {
		return nil, err
	}
	b := ike[protocol.IkeHeaderLen:]
	body := b[protocol.PayloadHeaderLen:]
	ivLen := aead.NonceSize() - aeadSaltLen
	if len(body) < ivLen+c.icvLen {
		return nil, protocol.ERR_INVALID_SYNTAX
	}
	iv := body[:ivLen]
	ciphertextAndTag := body[ivLen:]
	nonce := append(append([]byte{}, salt...), iv...)
	assoc := ike[:protocol.IkeHeaderLen+protocol.PayloadHeaderLen]
	return aead.Open(nil, nonce, ciphertextAndTag, assoc)
}

// EncryptMac seals payload with the header bytes as associated data,
// returning IV || ciphertext || tag.
func (c *aeadCipher) EncryptMac(headers, payload, skA, skE []byte) ([]byte, error) {
	key, salt := skE[:len(skE)-aeadSaltLen], skE[len(skE)-aeadSaltLen:]
	aead, err := c.aead(key)
	if err != nil {
		return nil, err
	}
	ivLen := aead.NonceSize() - aeadSaltLen
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	nonce := append(append([]byte{}, salt...), iv...)
	sealed := aead.Seal(nil, nonce, payload, headers)
	return append(iv, sealed...), nil
}
