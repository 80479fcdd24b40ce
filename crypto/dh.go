package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/mnsio/ikev2-eap/protocol"
)

// dhGroup is a finite-field (MODP) Diffie-Hellman group as used by IKE
// (RFC 3526, RFC 7296 appendix B).
type dhGroup struct {
	protocol.DhTransformId
	prime     *big.Int
	generator *big.Int
}

func newModpGroup(id protocol.DhTransformId, primeHex string, gen int64) *dhGroup {
	p, ok := new(big.Int).SetString(primeHex, 16)
	if !ok {
		panic("crypto: invalid modp prime literal for group " + fmt.Sprint(id))
	}
	return &dhGroup{DhTransformId: id, prime: p, generator: big.NewInt(gen)}
}

var kexAlgoMap = map[protocol.DhTransformId]*dhGroup{
	protocol.MODP_1024: newModpGroup(protocol.MODP_1024, modp1024Hex, 2),
	protocol.MODP_2048: newModpGroup(protocol.MODP_2048, modp2048Hex, 2),
}

func dhTransform(id uint16) (*dhGroup, error) {
	g, ok := kexAlgoMap[protocol.DhTransformId(id)]
	if !ok {
		return nil, fmt.Errorf("crypto: unsupported dh group %d", id)
	}
	return g, nil
}

// PublicKeyLen is the fixed-width length (in bytes) that a KE payload
// for this group must be padded or validated to.
func (g *dhGroup) PublicKeyLen() int { return (g.prime.BitLen() + 7) / 8 }

// GeneratePrivate draws a random private exponent in [2, p-2].
func (g *dhGroup) GeneratePrivate() (*big.Int, error) {
	max := new(big.Int).Sub(g.prime, big.NewInt(3))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, err
	}
	return n.Add(n, big.NewInt(2)), nil
}

// Public computes g^priv mod p.
func (g *dhGroup) Public(priv *big.Int) *big.Int {
	return new(big.Int).Exp(g.generator, priv, g.prime)
}

// Shared computes the shared secret peerPublic^priv mod p. The caller is
// responsible for rejecting degenerate peer values (0, 1, p-1) before
// calling this, per RFC 7296 §5's small-subgroup guidance.
func (g *dhGroup) Shared(priv, peerPublic *big.Int) *big.Int {
	return new(big.Int).Exp(peerPublic, priv, g.prime)
}

// ValidPublicValue rejects the degenerate peer values that would make
// the shared secret trivially guessable.
func (g *dhGroup) ValidPublicValue(pub *big.Int) bool {
	if pub.Cmp(big.NewInt(1)) <= 0 {
		return false
	}
	pMinus1 := new(big.Int).Sub(g.prime, big.NewInt(1))
	return pub.Cmp(pMinus1) < 0
}

// modp1024Hex is the Oakley Group 2 / IKEv2 MODP group 2 prime
// (RFC 2409 §6.2). modp2048Hex is MODP group 14 (RFC 3526 §3). Only the
// two groups this initiator actually offers are kept here; a third
// group (e.g. MODP group 15, 3072-bit) can be added the same way once
// its prime has been transcribed from a verified source.
const (
	modp1024Hex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E0" +
		"88A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A43" +
		"1B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C4" +
		"2E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B" +
		"1FE649286651ECE65381FFFFFFFFFFFFFFFF"

	modp2048Hex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E0" +
		"88A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A43" +
		"1B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C4" +
		"2E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B" +
		"1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69" +
		"163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED52907" +
		"7096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3" +
		"BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF" +
		"6955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68" +
		"FFFFFFFFFFFFFFFF"
)
