package protocol

type IdType uint8

const (
	ID_IPV4_ADDR   IdType = 1
	ID_FQDN        IdType = 2
	ID_RFC822_ADDR IdType = 3
	ID_IPV6_ADDR   IdType = 5
	ID_DER_ASN1_DN IdType = 9
	ID_DER_ASN1_GN IdType = 10
	ID_KEY_ID      IdType = 11
)

// IdPayload identifies either the initiator (IDi) or responder (IDr);
// which one it is, is carried in PayloadKind rather than inferred from
// context, since the same struct decodes both.
type IdPayload struct {
	*PayloadHeader
	PayloadKind PayloadType // PayloadTypeIDi or PayloadTypeIDr
	IdType      IdType
	Data        []byte
}

func (s *IdPayload) Type() PayloadType { return s.PayloadKind }

func (s *IdPayload) Encode() []byte {
	b := []byte{uint8(s.IdType), 0, 0, 0}
	return append(b, s.Data...)
}

func (s *IdPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ERR_INVALID_SYNTAX
	}
	s.IdType = IdType(b[0])
	s.Data = append([]byte{}, b[4:]...)
	return nil
}
