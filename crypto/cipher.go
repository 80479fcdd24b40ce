package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"

	camellia "github.com/dgryski/go-camellia"
	"github.com/mnsio/ikev2-eap/protocol"
)

// cipherFunc builds either a cipher.BlockMode (CBC) or a no-op for the
// null transform, keyed and directioned by isRead.
type cipherFunc func(key, iv []byte, isRead bool) interface{}

func cipherTransform(cipherId uint16, keyLen int, existing *simpleCipher) (*simpleCipher, bool) {
	blockSize, fn, ok := _cipherTransform(cipherId)
	if !ok {
		return nil, false
	}
	c := existing
	if c == nil {
		c = &simpleCipher{}
	}
	c.keyLen = keyLen
	c.blockLen = blockSize
	c.ivLen = blockSize
	c.cipherFunc = fn
	c.EncrTransformId = protocol.EncrTransformId(cipherId)
	return c, true
}

func _cipherTransform(cipherId uint16) (int, cipherFunc, bool) {
	switch protocol.EncrTransformId(cipherId) {
	case protocol.ENCR_CAMELLIA_CBC:
		return camellia.BlockSize, cipherCamellia, true
	case protocol.ENCR_AES_CBC:
		return aes.BlockSize, cipherAES, true
	case protocol.ENCR_NULL:
		return 1, cipherNull, true
	default:
		return 0, nil, false
	}
}

// simpleCipher implements the non-AEAD (encrypt-then-MAC / MAC-then-decrypt)
// combination of one ENCR transform and one INTEG transform.
type simpleCipher struct {
	macTruncLen, macLen int
	macFunc

	keyLen, ivLen, blockLen int
	cipherFunc

	protocol.EncrTransformId
	protocol.AuthTransformId
}

func (cs *simpleCipher) String() string {
	return cs.EncrTransformId.String() + "+" + cs.AuthTransformId.String()
}

func (cs *simpleCipher) Overhead(clear []byte) int {
	return cs.blockLen - len(clear)%cs.blockLen + cs.macLen + cs.ivLen
}

// VerifyDecrypt MAC-then-decrypts an encoded IKE packet. ike is the full
// packet (header through trailing MAC); skA/skE are the integrity and
// encryption keys for this direction.
func (cs *simpleCipher) VerifyDecrypt(ike, skA, skE []byte) (dec []byte, err error) {
	if err = verifyMac(skA, ike, cs.macLen, cs.macFunc); err != nil {
		return
	}
	b := ike[protocol.IkeHeaderLen:]
	return decrypt(b[protocol.PayloadHeaderLen:len(b)-cs.macLen], skE, cs.ivLen, cs.cipherFunc)
}

// EncryptMac encrypt-then-MACs payload; the MAC covers headers (the
// already-encoded IKE header and SK payload header) followed by the
// ciphertext, per RFC 7296 §3.14, but only the ciphertext and trailing
// MAC are returned - the caller already has headers.
func (cs *simpleCipher) EncryptMac(headers, payload, skA, skE []byte) (b []byte, err error) {
	encr, err := encrypt(payload, skE, cs.ivLen, cs.cipherFunc)
	if err != nil {
		return
	}
	data := append(append([]byte{}, headers...), encr...)
	mac := cs.macFunc(skA, data)
	return append(encr, mac...), nil
}

func cipherAES(key, iv []byte, isRead bool) interface{} {
	block, _ := aes.NewCipher(key)
	if isRead {
		return cipher.NewCBCDecrypter(block, iv)
	}
	return cipher.NewCBCEncrypter(block, iv)
}

func cipherCamellia(key, iv []byte, isRead bool) interface{} {
	block, _ := camellia.New(key)
	if isRead {
		return cipher.NewCBCDecrypter(block, iv)
	}
	return cipher.NewCBCEncrypter(block, iv)
}

func cipherNull([]byte, []byte, bool) interface{} { return nil }

func decrypt(b, key []byte, ivLen int, cipherFn cipherFunc) (dec []byte, err error) {
	if len(b) < ivLen {
		return nil, protocol.ERR_INVALID_SYNTAX
	}
	iv := b[0:ivLen]
	ciphertext := b[ivLen:]
	mode := cipherFn(key, iv, true)
	if mode == nil {
		// null transform
		return ciphertext, nil
	}
	block := mode.(cipher.BlockMode)
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, errors.New("crypto: ciphertext is not a multiple of the block size")
	}
	clear := make([]byte, len(ciphertext))
	block.CryptBlocks(clear, ciphertext)
	padlen := clear[len(clear)-1] + 1 // padlen byte itself
	if int(padlen) > block.BlockSize() || int(padlen) > len(clear) {
		return nil, errors.New("crypto: pad length is larger than block size")
	}
	return clear[:len(clear)-int(padlen)], nil
}

func encrypt(clear, key []byte, ivLen int, cipherFn cipherFunc) (b []byte, err error) {
	iv := make([]byte, ivLen)
	if ivLen > 0 {
		if _, err = rand.Read(iv); err != nil {
			return nil, err
		}
	}
	mode := cipherFn(key, iv, false)
	if mode == nil {
		// null transform
		return clear, nil
	}
	block := mode.(cipher.BlockMode)
	padlen := block.BlockSize() - len(clear)%block.BlockSize()
	pad := make([]byte, padlen)
	pad[padlen-1] = byte(padlen - 1)
	padded := append(append([]byte{}, clear...), pad...)
	ciphertext := make([]byte, len(padded))
	block.CryptBlocks(ciphertext, padded)
	return append(iv, ciphertext...), nil
}
