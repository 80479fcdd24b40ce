// Package mschapv2 implements the EAP-MSCHAPv2 (RFC 2759, draft-kamath-
// pppext-eap-mschapv2) peer state machine and its pure cryptographic
// primitives.
package mschapv2

import (
	"crypto/des"
	"crypto/sha1"
	"crypto/subtle"
	"unicode/utf16"

	"golang.org/x/crypto/md4"
)

// NtPasswordHash is MD4(UTF-16LE(password)) (RFC 2759 §8.3).
func NtPasswordHash(password string) []byte {
	h := md4.New()
	h.Write(utf16LE(password))
	return h.Sum(nil)
}

// HashNtPasswordHash is MD4(NtPasswordHash) (RFC 2759 §8.4), used only to
// compute the authenticator response, never transmitted.
func HashNtPasswordHash(hash []byte) []byte {
	h := md4.New()
	h.Write(hash)
	return h.Sum(nil)
}

// ChallengeHash combines the peer and authenticator challenges with the
// username into the 8-byte value actually DES-encrypted (RFC 2759 §8.2).
// Any NT-style domain prefix ("DOMAIN\user") is stripped from username
// before hashing.
func ChallengeHash(peerChallenge, authChallenge []byte, username string) []byte {
	h := sha1.New()
	h.Write(peerChallenge)
	h.Write(authChallenge)
	h.Write([]byte(stripDomain(username)))
	return h.Sum(nil)[:8]
}

// ChallengeResponse encrypts challenge with three DES keys expanded from
// passwordHash (RFC 2759 §8.1): the 16-byte hash is padded to 21 bytes
// with 5 zero bytes, split into three 7-byte blocks, and each block
// becomes an 8-byte DES key that encrypts the 8-byte challenge.
func ChallengeResponse(challenge, passwordHash []byte) []byte {
	padded := make([]byte, 21)
	copy(padded, passwordHash)

	out := make([]byte, 24)
	desEncrypt(padded[0:7], challenge, out[0:8])
	desEncrypt(padded[7:14], challenge, out[8:16])
	desEncrypt(padded[14:21], challenge, out[16:24])
	return out
}

func desEncrypt(key7, challenge, dst []byte) {
	key8 := expandDesKey(key7)
	block, err := des.NewCipher(key8)
	if err != nil {
		panic(err) // expandDesKey always yields a valid 8-byte DES key
	}
	block.Encrypt(dst, challenge)
}

// expandDesKey turns 7 bytes of key material into the 8-byte, odd-parity
// form DES keys use (RFC 2759 §8.1 / RFC 3079 Annex A).
func expandDesKey(key7 []byte) []byte {
	key8 := make([]byte, 8)
	key8[0] = key7[0] >> 1
	key8[1] = (key7[0]&0x01)<<6 | key7[1]>>2
	key8[2] = (key7[1]&0x03)<<5 | key7[2]>>3
	key8[3] = (key7[2]&0x07)<<4 | key7[3]>>4
	key8[4] = (key7[3]&0x0f)<<3 | key7[4]>>5
	key8[5] = (key7[4]&0x1f)<<2 | key7[5]>>6
	key8[6] = (key7[5]&0x3f)<<1 | key7[6]>>7
	key8[7] = key7[6] & 0x7f
	for i := range key8 {
		key8[i] <<= 1
		key8[i] |= parityBit(key8[i] >> 1)
	}
	return key8
}

func parityBit(b byte) byte {
	var ones int
	for i := 0; i < 7; i++ {
		if b&(1<<uint(i)) != 0 {
			ones++
		}
	}
	if ones%2 == 0 {
		return 1
	}
	return 0
}

// GenerateNtResponse computes the 24-byte NT-Response field from the two
// challenges, username, and plaintext password (RFC 2759 §8.1).
func GenerateNtResponse(authChallenge, peerChallenge []byte, username, password string) []byte {
	challenge := ChallengeHash(peerChallenge, authChallenge, username)
	hash := NtPasswordHash(password)
	return ChallengeResponse(challenge, hash)
}

var magic1 = []byte{
	0x4D, 0x61, 0x67, 0x69, 0x63, 0x20, 0x73, 0x65, 0x72, 0x76, 0x65, 0x72,
	0x20, 0x74, 0x6F, 0x20, 0x63, 0x6C, 0x69, 0x65, 0x6E, 0x74, 0x20, 0x73,
	0x69, 0x67, 0x6E, 0x69, 0x6E, 0x67, 0x20, 0x63, 0x6F, 0x6E, 0x73, 0x74,
	0x61, 0x6E, 0x74,
}

var magic2 = []byte{
	0x50, 0x61, 0x64, 0x20, 0x74, 0x6F, 0x20, 0x6D, 0x61, 0x6B, 0x65, 0x20,
	0x69, 0x74, 0x20, 0x64, 0x6F, 0x20, 0x6D, 0x6F, 0x72, 0x65, 0x20, 0x74,
	0x68, 0x61, 0x6E, 0x20, 0x6F, 0x6E, 0x65, 0x20, 0x69, 0x74, 0x65, 0x72,
	0x61, 0x74, 0x69, 0x6F, 0x6E,
}

// GenerateAuthenticatorResponse computes the "S=" string the peer expects
// back from the authenticator (RFC 2759 §8.7).
func GenerateAuthenticatorResponse(password string, ntResponse, peerChallenge, authChallenge []byte, username string) string {
	passwordHash := NtPasswordHash(password)
	passwordHashHash := HashNtPasswordHash(passwordHash)

	h := sha1.New()
	h.Write(passwordHashHash)
	h.Write(ntResponse)
	h.Write(magic1)
	digest := h.Sum(nil)

	challenge := ChallengeHash(peerChallenge, authChallenge, username)

	h2 := sha1.New()
	h2.Write(digest)
	h2.Write(challenge)
	h2.Write(magic2)
	final := h2.Sum(nil)

	const hexDigits = "0123456789ABCDEF"
	out := make([]byte, 2+len(final)*2)
	out[0] = 'S'
	out[1] = '='
	for i, b := range final {
		out[2+i*2] = hexDigits[b>>4]
		out[2+i*2+1] = hexDigits[b&0xf]
	}
	return string(out)
}

// CheckAuthenticatorResponse recomputes the expected "S=..." string and
// compares it against received in constant time.
func CheckAuthenticatorResponse(password string, ntResponse, peerChallenge, authChallenge []byte, username, received string) bool {
	expected := GenerateAuthenticatorResponse(password, ntResponse, peerChallenge, authChallenge, username)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

// MSK derives the 64-byte Microsoft-Kerberos-style MPPE master session
// key used as the EAP MSK (draft-kamath-pppext-eap-mschapv2 §4), built
// from the NT password hash hash and the 24-byte NT-Response.
func MSK(password string, ntResponse []byte) []byte {
	passwordHash := NtPasswordHash(password)
	passwordHashHash := HashNtPasswordHash(passwordHash)

	masterKey := masterKeyFrom(passwordHashHash, ntResponse)

	sendKey := asymmetricStartKey(masterKey, 16, true)
	recvKey := asymmetricStartKey(masterKey, 16, false)

	msk := make([]byte, 64)
	copy(msk[0:32], pad32(recvKey))
	copy(msk[32:64], pad32(sendKey))
	return msk
}

var magicMaster = []byte{
	0x54, 0x68, 0x69, 0x73, 0x20, 0x69, 0x73, 0x20, 0x74, 0x68, 0x65, 0x20,
	0x4D, 0x50, 0x50, 0x45, 0x20, 0x4D, 0x61, 0x73, 0x74, 0x65, 0x72, 0x20,
	0x4B, 0x65, 0x79,
}

var magicSend = []byte{
	0x4F, 0x6E, 0x20, 0x74, 0x68, 0x65, 0x20, 0x63, 0x6C, 0x69, 0x65, 0x6E,
	0x74, 0x20, 0x73, 0x69, 0x64, 0x65, 0x2C, 0x20, 0x74, 0x68, 0x69, 0x73,
	0x20, 0x69, 0x73, 0x20, 0x74, 0x68, 0x65, 0x20, 0x73, 0x65, 0x6E, 0x64,
	0x20, 0x6B, 0x65, 0x79, 0x3B, 0x20, 0x6F, 0x6E, 0x20, 0x74, 0x68, 0x65,
	0x20, 0x73, 0x65, 0x72, 0x76, 0x65, 0x72, 0x20, 0x73, 0x69, 0x64, 0x65,
	0x2C, 0x20, 0x69, 0x74, 0x20, 0x69, 0x73, 0x20, 0x74, 0x68, 0x65, 0x20,
	0x72, 0x65, 0x63, 0x65, 0x69, 0x76, 0x65, 0x20, 0x6B, 0x65, 0x79, 0x2E,
}

var magicRecv = []byte{
	0x4F, 0x6E, 0x20, 0x74, 0x68, 0x65, 0x20, 0x63, 0x6C, 0x69, 0x65, 0x6E,
	0x74, 0x20, 0x73, 0x69, 0x64, 0x65, 0x2C, 0x20, 0x74, 0x68, 0x69, 0x73,
	0x20, 0x69, 0x73, 0x20, 0x74, 0x68, 0x65, 0x20, 0x72, 0x65, 0x63, 0x65,
	0x69, 0x76, 0x65, 0x20, 0x6B, 0x65, 0x79, 0x3B, 0x20, 0x6F, 0x6E, 0x20,
	0x74, 0x68, 0x65, 0x20, 0x73, 0x65, 0x72, 0x76, 0x65, 0x72, 0x20, 0x73,
	0x69, 0x64, 0x65, 0x2C, 0x20, 0x69, 0x74, 0x20, 0x69, 0x73, 0x20, 0x74,
	0x68, 0x65, 0x20, 0x73, 0x65, 0x6E, 0x64, 0x20, 0x6B, 0x65, 0x79, 0x2E,
}

var magicPad = []byte{
	0x53, 0x68, 0x69, 0x76, 0x61, 0x20, 0x52, 0x69, 0x6E, 0x67, 0x20, 0x53,
	0x69, 0x67, 0x6E, 0x61, 0x6C, 0x69, 0x6E, 0x67, 0x20, 0x43, 0x6F, 0x6E,
	0x73, 0x74, 0x61, 0x6E, 0x74,
}

func masterKeyFrom(passwordHashHash, ntResponse []byte) []byte {
	h := sha1.New()
	h.Write(passwordHashHash)
	h.Write(ntResponse)
	h.Write(magicMaster)
	return h.Sum(nil)[:16]
}

// asymmetricStartKey derives the per-direction MPPE start key (RFC 3079
// §3.4.4.2). isSend is from the perspective of this (client) peer.
func asymmetricStartKey(masterKey []byte, keyLen int, isSend bool) []byte {
	magic := magicSend
	if !isSend {
		magic = magicRecv
	}
	h := sha1.New()
	h.Write(masterKey)
	h.Write(magicPad)
	h.Write(magic)
	return h.Sum(nil)[:keyLen]
}

func pad32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out, b)
	return out
}

func utf16LE(s string) []byte {
	codepoints := utf16.Encode([]rune(s))
	out := make([]byte, len(codepoints)*2)
	for i, c := range codepoints {
		out[i*2] = byte(c)
		out[i*2+1] = byte(c >> 8)
	}
	return out
}

// stripDomain removes any "DOMAIN\" prefix from username, as RFC 2759
// §4.2's ChallengeHash input requires.
func stripDomain(username string) string {
	for i := len(username) - 1; i >= 0; i-- {
		if username[i] == '\\' {
			return username[i+1:]
		}
	}
	return username
}
