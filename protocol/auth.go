package protocol

type AuthMethod uint8

const (
	AUTH_RSA_DIGITAL_SIGNATURE             AuthMethod = 1
	AUTH_SHARED_KEY_MESSAGE_INTEGRITY_CODE AuthMethod = 2
	AUTH_DSS_DIGITAL_SIGNATURE             AuthMethod = 3
	// AuthMethodEAP is not a wire value: IKE signals EAP-based
	// authentication by omitting the initiator AUTH payload in IKE_AUTH
	// and driving the exchange with EAP payloads instead (RFC 7296 §2.16).
	AuthMethodEAP AuthMethod = 0
)

// AuthPayload carries the AUTH value computed over the peer's first
// message plus the peer's nonce and an ID-binding PRF value (RFC 7296
// §2.15).
type AuthPayload struct {
	*PayloadHeader
	AuthMethod AuthMethod
	Data       []byte
}

func (s *AuthPayload) Type() PayloadType { return PayloadTypeAUTH }

func (s *AuthPayload) Encode() []byte {
	b := []byte{uint8(s.AuthMethod), 0, 0, 0}
	return append(b, s.Data...)
}

func (s *AuthPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ERR_INVALID_SYNTAX
	}
	s.AuthMethod = AuthMethod(b[0])
	s.Data = append([]byte{}, b[4:]...)
	return nil
}

// NoncePayload carries Ni or Nr; RFC 7296 §2.10 requires 16-256 octets.
type NoncePayload struct {
	*PayloadHeader
	Nonce []byte
}

func (s *NoncePayload) Type() PayloadType { return PayloadTypeNonce }
func (s *NoncePayload) Encode() []byte    { return s.Nonce }

func (s *NoncePayload) Decode(b []byte) error {
	if len(b) < 16 || len(b) > 256 {
		return ERR_INVALID_SYNTAX
	}
	s.Nonce = append([]byte{}, b...)
	return nil
}
