package protocol

// bareId builds a Transform carrying just a type/id pair, used as a
// building block for named proposal sets below.
func bareId(t TransformType, id uint16) Transform { return Transform{Type: t, TransformId: id} }

var (
	encrAesCbc      = bareId(TRANSFORM_TYPE_ENCR, uint16(ENCR_AES_CBC))
	encrAesCtr      = bareId(TRANSFORM_TYPE_ENCR, uint16(ENCR_AES_CTR))
	encrCamelliaCbc = bareId(TRANSFORM_TYPE_ENCR, uint16(ENCR_CAMELLIA_CBC))
	encrNull        = bareId(TRANSFORM_TYPE_ENCR, uint16(ENCR_NULL))
	encrAesGcm16    = bareId(TRANSFORM_TYPE_ENCR, uint16(ENCR_AES_GCM_16_ICV))

	prfHmacSha1    = bareId(TRANSFORM_TYPE_PRF, uint16(PRF_HMAC_SHA1))
	prfHmacSha2256 = bareId(TRANSFORM_TYPE_PRF, uint16(PRF_HMAC_SHA2_256))
	prfHmacSha2384 = bareId(TRANSFORM_TYPE_PRF, uint16(PRF_HMAC_SHA2_384))

	authHmacSha196      = bareId(TRANSFORM_TYPE_INTEG, uint16(AUTH_HMAC_SHA1_96))
	authHmacSha2256_128 = bareId(TRANSFORM_TYPE_INTEG, uint16(AUTH_HMAC_SHA2_256_128))

	dhModp1024 = bareId(TRANSFORM_TYPE_DH, uint16(MODP_1024))
	dhModp2048 = bareId(TRANSFORM_TYPE_DH, uint16(MODP_2048))
	dhModp3072 = bareId(TRANSFORM_TYPE_DH, uint16(MODP_3072))

	esnOn  = bareId(TRANSFORM_TYPE_ESN, uint16(ESN_YES))
	esnOff = bareId(TRANSFORM_TYPE_ESN, uint16(ESN_NONE))
)

func mk(tr Transform, keyLen uint16) *Transform { return &Transform{Type: tr.Type, TransformId: tr.TransformId, KeyLength: keyLen} }

// ProposalConfig is a single side's configured requirement set for one
// SA protocol (IKE or ESP): one Transform per TransformType.
type ProposalConfig map[TransformType]*Transform

var (
	IKE_AES_CBC_SHA1_96_DH_1024 = ProposalConfig{
		TRANSFORM_TYPE_ENCR:  mk(encrAesCbc, 128),
		TRANSFORM_TYPE_PRF:   mk(prfHmacSha1, 0),
		TRANSFORM_TYPE_INTEG: mk(authHmacSha196, 0),
		TRANSFORM_TYPE_DH:    mk(dhModp1024, 0),
	}
	IKE_AES_CBC_SHA256_MODP2048 = ProposalConfig{
		TRANSFORM_TYPE_ENCR:  mk(encrAesCbc, 256),
		TRANSFORM_TYPE_PRF:   mk(prfHmacSha2256, 0),
		TRANSFORM_TYPE_INTEG: mk(authHmacSha2256_128, 0),
		TRANSFORM_TYPE_DH:    mk(dhModp2048, 0),
	}
	IKE_AES_GCM_16_DH_2048 = ProposalConfig{
		TRANSFORM_TYPE_ENCR: mk(encrAesGcm16, 128),
		TRANSFORM_TYPE_PRF:  mk(prfHmacSha2384, 0),
		TRANSFORM_TYPE_DH:   mk(dhModp2048, 0),
	}
	IKE_CAMELLIA_CBC_SHA2_256_128_DH_2048 = ProposalConfig{
		TRANSFORM_TYPE_ENCR:  mk(encrCamelliaCbc, 128),
		TRANSFORM_TYPE_PRF:   mk(prfHmacSha2256, 0),
		TRANSFORM_TYPE_INTEG: mk(authHmacSha2256_128, 0),
		TRANSFORM_TYPE_DH:    mk(dhModp2048, 0),
	}

	ESP_AES_CBC_SHA1_96 = ProposalConfig{
		TRANSFORM_TYPE_ENCR:  mk(encrAesCbc, 128),
		TRANSFORM_TYPE_INTEG: mk(authHmacSha196, 0),
		TRANSFORM_TYPE_ESN:   mk(esnOff, 0),
	}
	ESP_AES_CBC_SHA2_256 = ProposalConfig{
		TRANSFORM_TYPE_ENCR:  mk(encrAesCbc, 256),
		TRANSFORM_TYPE_INTEG: mk(authHmacSha2256_128, 0),
		TRANSFORM_TYPE_ESN:   mk(esnOff, 0),
	}
	ESP_AES_GCM_16 = ProposalConfig{
		TRANSFORM_TYPE_ENCR: mk(encrAesGcm16, 128),
		TRANSFORM_TYPE_ESN:  mk(esnOff, 0),
	}
	ESP_NULL_SHA1_96 = ProposalConfig{
		TRANSFORM_TYPE_ENCR:  mk(encrNull, 0),
		TRANSFORM_TYPE_INTEG: mk(authHmacSha196, 0),
		TRANSFORM_TYPE_ESN:   mk(esnOff, 0),
	}
)

// AsList renders the configuration as transforms, in a deterministic
// order, suitable for building a wire Proposal.
func (c ProposalConfig) AsList() []*Transform {
	order := []TransformType{TRANSFORM_TYPE_ENCR, TRANSFORM_TYPE_PRF, TRANSFORM_TYPE_INTEG, TRANSFORM_TYPE_DH, TRANSFORM_TYPE_ESN}
	var trs []*Transform
	for _, t := range order {
		if tr, ok := c[t]; ok {
			trs = append(trs, tr)
		}
	}
	return trs
}

func transformEqual(a, b *Transform) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Type == b.Type && a.TransformId == b.TransformId && a.KeyLength == b.KeyLength
}

func listHasTransform(list []*Transform, want *Transform) bool {
	for _, tr := range list {
		if transformEqual(tr, want) {
			return true
		}
	}
	return false
}

// Within reports whether every transform this side requires is present
// among the transforms proposed by the peer.
func (c ProposalConfig) Within(proposed []*Transform) bool {
	for _, want := range c.AsList() {
		if !listHasTransform(proposed, want) {
			return false
		}
	}
	return true
}

// ProposalFromConfig builds a wire Proposal (with the given SPI, empty
// for IKE SA negotiation) for one configured protocol.
func ProposalFromConfig(prot ProtocolId, c ProposalConfig, spi []byte) *Proposal {
	return &Proposal{
		Number:     1,
		ProtocolId: prot,
		Spi:        spi,
		Transforms: c.AsList(),
	}
}
