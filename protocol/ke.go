package protocol

import (
	"encoding/binary"
	"math/big"
)

// KePayload carries one side's Diffie-Hellman public value.
type KePayload struct {
	*PayloadHeader
	DhTransformId DhTransformId
	KeyData       *big.Int
}

func (s *KePayload) Type() PayloadType { return PayloadTypeKE }

func (s *KePayload) Encode() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b[0:2], uint16(s.DhTransformId))
	return append(b, s.KeyData.Bytes()...)
}

func (s *KePayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ERR_INVALID_SYNTAX
	}
	s.DhTransformId = DhTransformId(binary.BigEndian.Uint16(b[0:2]))
	s.KeyData = new(big.Int).SetBytes(b[4:])
	return nil
}
