package protocol

import "encoding/binary"

type TransformType uint8

const (
	TRANSFORM_TYPE_ENCR  TransformType = 1
	TRANSFORM_TYPE_PRF   TransformType = 2
	TRANSFORM_TYPE_INTEG TransformType = 3
	TRANSFORM_TYPE_DH    TransformType = 4
	TRANSFORM_TYPE_ESN   TransformType = 5
)

type EncrTransformId uint16

const (
	ENCR_DES_IV64            EncrTransformId = 1
	ENCR_DES                 EncrTransformId = 2
	ENCR_3DES                EncrTransformId = 3
	ENCR_NULL                EncrTransformId = 11
	ENCR_AES_CBC             EncrTransformId = 12
	ENCR_AES_CTR             EncrTransformId = 13
	ENCR_AES_CCM_8           EncrTransformId = 14
	ENCR_AES_CCM_12          EncrTransformId = 15
	ENCR_AES_CCM_16          EncrTransformId = 16
	ENCR_AES_GCM_8_ICV       EncrTransformId = 18
	ENCR_AES_GCM_12_ICV      EncrTransformId = 19
	ENCR_AES_GCM_16_ICV      EncrTransformId = 20
	ENCR_NULL_AUTH_AES_GMAC  EncrTransformId = 21
	ENCR_CAMELLIA_CBC        EncrTransformId = 23
	ENCR_CAMELLIA_CTR        EncrTransformId = 24
	ENCR_CAMELLIA_CCM_8_ICV  EncrTransformId = 25
	ENCR_CAMELLIA_CCM_12_ICV EncrTransformId = 26
	ENCR_CAMELLIA_CCM_16_ICV EncrTransformId = 27
)

type PrfTransformId uint16

const (
	PRF_HMAC_MD5      PrfTransformId = 1
	PRF_HMAC_SHA1     PrfTransformId = 2
	PRF_AES128_XCBC   PrfTransformId = 4
	PRF_HMAC_SHA2_256 PrfTransformId = 5
	PRF_HMAC_SHA2_384 PrfTransformId = 6
	PRF_HMAC_SHA2_512 PrfTransformId = 7
)

type AuthTransformId uint16

const (
	AUTH_NONE              AuthTransformId = 0
	AUTH_HMAC_MD5_96       AuthTransformId = 1
	AUTH_HMAC_SHA1_96      AuthTransformId = 2
	AUTH_AES_XCBC_96       AuthTransformId = 5
	AUTH_HMAC_SHA2_256_128 AuthTransformId = 12
	AUTH_HMAC_SHA2_384_192 AuthTransformId = 13
	AUTH_HMAC_SHA2_512_256 AuthTransformId = 14
)

type DhTransformId uint16

const (
	MODP_NONE DhTransformId = 0
	MODP_768  DhTransformId = 1
	MODP_1024 DhTransformId = 2
	MODP_1536 DhTransformId = 5
	MODP_2048 DhTransformId = 14
	MODP_3072 DhTransformId = 15
	MODP_4096 DhTransformId = 16
	MODP_6144 DhTransformId = 17
	MODP_8192 DhTransformId = 18
	ECP_256   DhTransformId = 19
	ECP_384   DhTransformId = 20
	ECP_521   DhTransformId = 21
)

type EsnTransformId uint16

const (
	ESN_NONE EsnTransformId = 0
	ESN_YES  EsnTransformId = 1
)

type AttributeType uint16

const AttributeTypeKeyLength AttributeType = 14

// Transform is a single negotiated algorithm of a given TransformType,
// e.g. {Type: TRANSFORM_TYPE_ENCR, TransformId: uint16(ENCR_AES_CBC),
// KeyLength: 256}.
type Transform struct {
	Type        TransformType
	TransformId uint16
	KeyLength   uint16 // only meaningful for variable-length ciphers
	isLast      bool
}

func decodeAttribute(b []byte) (value uint16, used int, err error) {
	if len(b) < MinAttributeLen {
		return 0, 0, ERR_INVALID_SYNTAX
	}
	at := binary.BigEndian.Uint16(b[0:2])
	if AttributeType(at&0x7fff) != AttributeTypeKeyLength {
		return 0, 0, ERR_INVALID_SYNTAX
	}
	value = binary.BigEndian.Uint16(b[2:4])
	return value, MinAttributeLen, nil
}

func decodeTransform(b []byte) (tr *Transform, used int, err error) {
	if len(b) < MinTransformLen {
		return nil, 0, ERR_INVALID_SYNTAX
	}
	tr = &Transform{isLast: b[0] == 0}
	trLen := int(binary.BigEndian.Uint16(b[2:4]))
	if trLen < MinTransformLen || trLen > len(b) {
		return nil, 0, ERR_INVALID_SYNTAX
	}
	tr.Type = TransformType(b[4])
	tr.TransformId = binary.BigEndian.Uint16(b[6:8])
	rest := b[MinTransformLen:trLen]
	for len(rest) > 0 {
		v, n, aerr := decodeAttribute(rest)
		if aerr != nil {
			return nil, 0, aerr
		}
		tr.KeyLength = v
		rest = rest[n:]
	}
	return tr, trLen, nil
}

func encodeTransform(tr *Transform, isLast bool) []byte {
	b := make([]byte, MinTransformLen)
	if !isLast {
		b[0] = 3
	}
	b[4] = uint8(tr.Type)
	binary.BigEndian.PutUint16(b[6:8], tr.TransformId)
	if tr.KeyLength != 0 {
		attr := make([]byte, 4)
		binary.BigEndian.PutUint16(attr[0:2], 0x8000|uint16(AttributeTypeKeyLength))
		binary.BigEndian.PutUint16(attr[2:4], tr.KeyLength)
		b = append(b, attr...)
	}
	binary.BigEndian.PutUint16(b[2:4], uint16(len(b)))
	return b
}

// Proposal is one numbered alternative within an SA payload: a protocol
// (IKE/AH/ESP), optional SPI, and the set of transforms it requires.
type Proposal struct {
	Number     uint8
	ProtocolId ProtocolId
	Spi        []byte
	Transforms []*Transform
	isLast     bool
}

func decodeProposal(b []byte) (p *Proposal, used int, err error) {
	if len(b) < MinProposalLen {
		return nil, 0, ERR_INVALID_SYNTAX
	}
	p = &Proposal{isLast: b[0] == 0}
	propLen := int(binary.BigEndian.Uint16(b[2:4]))
	if propLen < MinProposalLen || propLen > len(b) {
		return nil, 0, ERR_INVALID_SYNTAX
	}
	p.Number = b[4]
	p.ProtocolId = ProtocolId(b[5])
	spiSize := int(b[6])
	numTransforms := int(b[7])
	if MinProposalLen+spiSize > propLen {
		return nil, 0, ERR_INVALID_SYNTAX
	}
	p.Spi = append([]byte{}, b[MinProposalLen:MinProposalLen+spiSize]...)
	rest := b[MinProposalLen+spiSize : propLen]
	for len(rest) > 0 {
		tr, n, terr := decodeTransform(rest)
		if terr != nil {
			return nil, 0, terr
		}
		p.Transforms = append(p.Transforms, tr)
		rest = rest[n:]
		if tr.isLast {
			if len(rest) > 0 {
				return nil, 0, ERR_INVALID_SYNTAX
			}
			break
		}
	}
	if len(p.Transforms) != numTransforms {
		return nil, 0, ERR_INVALID_SYNTAX
	}
	return p, propLen, nil
}

func encodeProposal(p *Proposal, isLast bool) []byte {
	b := make([]byte, MinProposalLen)
	if !isLast {
		b[0] = 2
	}
	b[4] = p.Number
	b[5] = uint8(p.ProtocolId)
	b[6] = uint8(len(p.Spi))
	b[7] = uint8(len(p.Transforms))
	b = append(b, p.Spi...)
	for i, tr := range p.Transforms {
		b = append(b, encodeTransform(tr, i == len(p.Transforms)-1)...)
	}
	binary.BigEndian.PutUint16(b[2:4], uint16(len(b)))
	return b
}

// SaPayload carries one or more alternative Proposals; the responder
// picks exactly one.
type SaPayload struct {
	*PayloadHeader
	Proposals []*Proposal
}

func (s *SaPayload) Type() PayloadType { return PayloadTypeSA }

func (s *SaPayload) Encode() []byte {
	var b []byte
	for i, p := range s.Proposals {
		b = append(b, encodeProposal(p, i == len(s.Proposals)-1)...)
	}
	return b
}

func (s *SaPayload) Decode(b []byte) error {
	for len(b) > 0 {
		p, used, err := decodeProposal(b)
		if err != nil {
			return err
		}
		s.Proposals = append(s.Proposals, p)
		b = b[used:]
		if p.isLast {
			if len(b) > 0 {
				return ERR_INVALID_SYNTAX
			}
			break
		}
	}
	return nil
}
