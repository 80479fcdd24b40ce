package protocol

import "encoding/binary"

type NotificationType uint16

const (
	UNSUPPORTED_CRITICAL_PAYLOAD NotificationType = 1
	INVALID_IKE_SPI              NotificationType = 4
	INVALID_MAJOR_VERSION        NotificationType = 5
	INVALID_SYNTAX               NotificationType = 7
	INVALID_MESSAGE_ID           NotificationType = 9
	INVALID_SPI                  NotificationType = 11
	NO_PROPOSAL_CHOSEN           NotificationType = 14
	INVALID_KE_PAYLOAD           NotificationType = 17
	AUTHENTICATION_FAILED        NotificationType = 24
	SINGLE_PAIR_REQUIRED         NotificationType = 34
	NO_ADDITIONAL_SAS            NotificationType = 35
	INTERNAL_ADDRESS_FAILURE     NotificationType = 36
	FAILED_CP_REQUIRED           NotificationType = 37
	TS_UNACCEPTABLE              NotificationType = 38
	INVALID_SELECTORS            NotificationType = 39
	TEMPORARY_FAILURE            NotificationType = 43
	CHILD_SA_NOT_FOUND           NotificationType = 44

	INITIAL_CONTACT            NotificationType = 16384
	SET_WINDOW_SIZE            NotificationType = 16385
	ADDITIONAL_TS_POSSIBLE     NotificationType = 16386
	IPCOMP_SUPPORTED           NotificationType = 16387
	NAT_DETECTION_SOURCE_IP    NotificationType = 16388
	NAT_DETECTION_DESTINATION_IP NotificationType = 16389
	COOKIE                     NotificationType = 16390
	USE_TRANSPORT_MODE         NotificationType = 16391
	REKEY_SA                   NotificationType = 16393
	SIGNATURE_HASH_ALGORITHMS NotificationType = 16431
)

// NotifyPayload is either an error notification (type < 16384, body is
// typically empty) or a status notification (type >= 16384, body
// carries protocol-specific data such as a cookie or a hash-algorithm
// list).
type NotifyPayload struct {
	*PayloadHeader
	ProtocolId       ProtocolId
	Spi              []byte
	NotificationType NotificationType
	NotificationData []byte
}

func (s *NotifyPayload) Type() PayloadType { return PayloadTypeN }

func (s *NotifyPayload) Encode() []byte {
	b := make([]byte, 4)
	b[0] = uint8(s.ProtocolId)
	b[1] = uint8(len(s.Spi))
	binary.BigEndian.PutUint16(b[2:4], uint16(s.NotificationType))
	b = append(b, s.Spi...)
	return append(b, s.NotificationData...)
}

func (s *NotifyPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ERR_INVALID_SYNTAX
	}
	s.ProtocolId = ProtocolId(b[0])
	spiSize := int(b[1])
	s.NotificationType = NotificationType(binary.BigEndian.Uint16(b[2:4]))
	if len(b) < 4+spiSize {
		return ERR_INVALID_SYNTAX
	}
	s.Spi = append([]byte{}, b[4:4+spiSize]...)
	s.NotificationData = append([]byte{}, b[4+spiSize:]...)
	return nil
}

// DeletePayload requests deletion of one or more IKE or Child SAs
// (RFC 7296 §3.11). For an IKE SA delete, SpiSize is 0 and NumSpi is 0;
// the SPIs carried in the IKE header itself identify the SA.
type DeletePayload struct {
	*PayloadHeader
	ProtocolId ProtocolId
	SpiSize    uint8
	Spis       [][]byte
}

func (s *DeletePayload) Type() PayloadType { return PayloadTypeD }

func (s *DeletePayload) Encode() []byte {
	b := make([]byte, 4)
	b[0] = uint8(s.ProtocolId)
	b[1] = s.SpiSize
	binary.BigEndian.PutUint16(b[2:4], uint16(len(s.Spis)))
	for _, spi := range s.Spis {
		b = append(b, spi...)
	}
	return b
}

func (s *DeletePayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ERR_INVALID_SYNTAX
	}
	s.ProtocolId = ProtocolId(b[0])
	s.SpiSize = b[1]
	numSpi := int(binary.BigEndian.Uint16(b[2:4]))
	b = b[4:]
	if len(b) < numSpi*int(s.SpiSize) {
		return ERR_INVALID_SYNTAX
	}
	for i := 0; i < numSpi; i++ {
		s.Spis = append(s.Spis, append([]byte{}, b[:s.SpiSize]...))
		b = b[s.SpiSize:]
	}
	return nil
}

// VendorIdPayload is an opaque vendor identification blob; this
// initiator neither sends one nor acts on a received one beyond storing
// it for diagnostics.
type VendorIdPayload struct {
	*PayloadHeader
	Vid []byte
}

func (s *VendorIdPayload) Type() PayloadType { return PayloadTypeV }
func (s *VendorIdPayload) Encode() []byte    { return s.Vid }
func (s *VendorIdPayload) Decode(b []byte) error {
	s.Vid = append([]byte{}, b...)
	return nil
}
