package eapaka

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
)

// SimKeys holds the key material derived for EAP-SIM (RFC 4186 §7).
type SimKeys struct {
	KEncr []byte // 128 bits
	KAut  []byte // 128 bits
	MSK   []byte // 512 bits
	EMSK  []byte // 512 bits
}

// AkaKeys holds the key material derived for EAP-AKA (RFC 4187 §7).
type AkaKeys struct {
	KEncr []byte // 128 bits
	KAut  []byte // 128 bits
	MSK   []byte // 512 bits
	EMSK  []byte // 512 bits
}

// AkaPrimeKeys holds the key material derived for EAP-AKA' (RFC 5448 §3.3).
type AkaPrimeKeys struct {
	KEncr []byte // 128 bits
	KAut  []byte // 256 bits
	KRe   []byte // 256 bits
	MSK   []byte // 512 bits
	EMSK  []byte // 512 bits
}

// DeriveKeysSim derives the EAP-SIM key hierarchy (RFC 4186 §7):
//
//	MK = SHA1(Identity | n*Kc | NONCE_MT | Version List | Selected Version)
//
// kcs is the per-RAND Kc list in challenge order.
func DeriveKeysSim(identity string, kcs [][]byte, nonceMt, versionList, selectedVersion []byte) SimKeys {
	h := sha1.New()
	h.Write([]byte(identity))
	for _, kc := range kcs {
		h.Write(kc)
	}
	h.Write(nonceMt)
	h.Write(versionList)
	h.Write(selectedVersion)
	mk := h.Sum(nil)

	keyBlock := prfGenAka(mk, []byte{0x00}, 160)
	return SimKeys{
		KEncr: keyBlock[0:16],
		KAut:  keyBlock[16:32],
		MSK:   keyBlock[32:96],
		EMSK:  keyBlock[96:160],
	}
}

// DeriveKeysAka derives the EAP-AKA key hierarchy (RFC 4187 §7):
//
//	MK = SHA1(Identity | IK | CK)
func DeriveKeysAka(identity string, ck, ik []byte) AkaKeys {
	h := sha1.New()
	h.Write([]byte(identity))
	h.Write(ik)
	h.Write(ck)
	mk := h.Sum(nil)

	keyBlock := prfGenAka(mk, []byte{0x00}, 160)
	return AkaKeys{
		KEncr: keyBlock[0:16],
		KAut:  keyBlock[16:32],
		MSK:   keyBlock[32:96],
		EMSK:  keyBlock[96:160],
	}
}

// DeriveKeysAkaPrime derives the EAP-AKA' key hierarchy (RFC 5448 §3.3).
// The PRF' key is IK'|CK' and the seed is "EAP-AKA'" | Identity.
func DeriveKeysAkaPrime(identity string, ckPrime, ikPrime []byte) AkaPrimeKeys {
	key := append(append([]byte{}, ikPrime...), ckPrime...)
	seed := append([]byte("EAP-AKA'"), []byte(identity)...)

	keyBlock := prfPlusIkev2(key, seed, 208)
	return AkaPrimeKeys{
		KEncr: keyBlock[0:16],
		KAut:  keyBlock[16:48],
		KRe:   keyBlock[48:80],
		MSK:   keyBlock[80:144],
		EMSK:  keyBlock[144:208],
	}
}

// DeriveCkIkPrime derives CK' and IK' from CK, IK and the access network
// name (RFC 5448 §3.1-3.2).
func DeriveCkIkPrime(ck, ik []byte, netName string) (ckPrime, ikPrime []byte) {
	anId := []byte(netName)
	key := append(append([]byte{}, ik...), ck...)

	mkSeed := func(fc byte) []byte {
		s := make([]byte, 0, 1+8+2+len(anId)+2)
		s = append(s, fc)
		s = append(s, []byte("EAP-AKA'")...)
		s = append(s, 0x00, 0x08)
		s = append(s, anId...)
		l := uint16(len(anId))
		s = append(s, byte(l>>8), byte(l))
		return s
	}

	fullCk := prfPlusIkev2(key, mkSeed(0x20), 32)
	fullIk := prfPlusIkev2(key, mkSeed(0x21), 32)
	return fullCk[:16], fullIk[:16]
}

// prfGenAka is the FIPS 186-2 Change Notice 1 SHA-1-based PRF both
// EAP-SIM and EAP-AKA key derivation use (RFC 4186 §7, RFC 4187 §7).
func prfGenAka(key, seed []byte, outputLen int) []byte {
	var output, current []byte
	h := sha1.New()
	h.Write(key)
	h.Write(seed)
	current = h.Sum(nil)
	output = append(output, current...)
	for len(output) < outputLen {
		h.Reset()
		h.Write(key)
		h.Write(current)
		current = h.Sum(nil)
		output = append(output, current...)
	}
	return output[:outputLen]
}

// prfPlusIkev2 is the HMAC-SHA-256-based PRF+ (RFC 7296 §2.13) EAP-AKA'
// key derivation reuses (RFC 5448 §3.3).
func prfPlusIkev2(key, seed []byte, outputLen int) []byte {
	var output, current []byte
	counter := byte(1)
	h := hmac.New(sha256.New, key)
	for len(output) < outputLen {
		h.Reset()
		if counter > 1 {
			h.Write(current)
		}
		h.Write(seed)
		h.Write([]byte{counter})
		current = h.Sum(nil)
		output = append(output, current...)
		counter++
	}
	return output[:outputLen]
}
