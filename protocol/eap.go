package protocol

// EapPayload wraps one complete EAP message (RFC 3748 header plus
// method body) inside an IKE_AUTH exchange. The IKE layer treats the
// contents as opaque; the eap package owns decoding the EAP message
// itself.
type EapPayload struct {
	*PayloadHeader
	EapMessage []byte
}

func (s *EapPayload) Type() PayloadType { return PayloadTypeEAP }
func (s *EapPayload) Encode() []byte    { return s.EapMessage }

func (s *EapPayload) Decode(b []byte) error {
	s.EapMessage = append([]byte{}, b...)
	return nil
}
