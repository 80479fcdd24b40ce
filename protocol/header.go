// Package protocol implements the IKEv2 (RFC 7296) wire format: message
// header, payload framing, and the payload bodies needed by an initiator
// (SA/KE/ID/AUTH/Nonce/Notify/Delete/VendorID/TrafficSelector/Configuration/
// EAP). It does not perform cryptography; see the crypto package for that.
package protocol

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	IkePort     = 500
	IkeNattPort = 4500

	IkeMajorVersion = 2
	IkeMinorVersion = 0

	IkeHeaderLen       = 28
	PayloadHeaderLen   = 4
	MinTransformLen    = 8
	MinProposalLen     = 8
	MinAttributeLen    = 4
)

// Spi is an 8-octet IKE SA security parameter index.
type Spi [8]byte

func (s Spi) IsZero() bool {
	for _, b := range s {
		if b != 0 {
			return false
		}
	}
	return true
}

type ExchangeType uint16

const (
	IKE_SA_INIT        ExchangeType = 34
	IKE_AUTH           ExchangeType = 35
	CREATE_CHILD_SA    ExchangeType = 36
	INFORMATIONAL      ExchangeType = 37
	IKE_SESSION_RESUME ExchangeType = 38
)

func (e ExchangeType) String() string {
	switch e {
	case IKE_SA_INIT:
		return "IKE_SA_INIT"
	case IKE_AUTH:
		return "IKE_AUTH"
	case CREATE_CHILD_SA:
		return "CREATE_CHILD_SA"
	case INFORMATIONAL:
		return "INFORMATIONAL"
	case IKE_SESSION_RESUME:
		return "IKE_SESSION_RESUME"
	default:
		return "UNKNOWN"
	}
}

type PayloadType uint8

const (
	PayloadTypeNone    PayloadType = 0
	PayloadTypeSA      PayloadType = 33
	PayloadTypeKE      PayloadType = 34
	PayloadTypeIDi     PayloadType = 35
	PayloadTypeIDr     PayloadType = 36
	PayloadTypeCERT    PayloadType = 37
	PayloadTypeCERTREQ PayloadType = 38
	PayloadTypeAUTH    PayloadType = 39
	PayloadTypeNonce   PayloadType = 40
	PayloadTypeN       PayloadType = 41
	PayloadTypeD       PayloadType = 42
	PayloadTypeV       PayloadType = 43
	PayloadTypeTSi     PayloadType = 44
	PayloadTypeTSr     PayloadType = 45
	PayloadTypeSK      PayloadType = 46
	PayloadTypeCP      PayloadType = 47
	PayloadTypeEAP     PayloadType = 48
)

func (t PayloadType) String() string {
	switch t {
	case PayloadTypeNone:
		return "None"
	case PayloadTypeSA:
		return "SA"
	case PayloadTypeKE:
		return "KE"
	case PayloadTypeIDi:
		return "IDi"
	case PayloadTypeIDr:
		return "IDr"
	case PayloadTypeCERT:
		return "CERT"
	case PayloadTypeCERTREQ:
		return "CERTREQ"
	case PayloadTypeAUTH:
		return "AUTH"
	case PayloadTypeNonce:
		return "Nonce"
	case PayloadTypeN:
		return "N"
	case PayloadTypeD:
		return "D"
	case PayloadTypeV:
		return "V"
	case PayloadTypeTSi:
		return "TSi"
	case PayloadTypeTSr:
		return "TSr"
	case PayloadTypeSK:
		return "SK"
	case PayloadTypeCP:
		return "CP"
	case PayloadTypeEAP:
		return "EAP"
	default:
		return "Unknown"
	}
}

type Flags uint8

const (
	ResponseFlag  Flags = 1 << 5
	VersionFlag   Flags = 1 << 4
	InitiatorFlag Flags = 1 << 3
)

func (f Flags) IsResponse() bool  { return f&ResponseFlag != 0 }
func (f Flags) IsInitiator() bool { return f&InitiatorFlag != 0 }

type ProtocolId uint8

const (
	PROTO_IKE ProtocolId = 1
	PROTO_AH  ProtocolId = 2
	PROTO_ESP ProtocolId = 3
)

// Header is the fixed 28-octet IKE message header.
type Header struct {
	SpiI, SpiR                 Spi
	NextPayload                PayloadType
	MajorVersion, MinorVersion uint8
	ExchangeType               ExchangeType
	Flags                      Flags
	MsgId                      uint32
	MsgLength                  uint32
}

func DecodeHeader(b []byte, logger log.Logger) (*Header, error) {
	if len(b) < IkeHeaderLen {
		level.Debug(logger).Log("msg", "short header", "len", len(b))
		return nil, ERR_INVALID_SYNTAX
	}
	h := &Header{}
	copy(h.SpiI[:], b[0:8])
	copy(h.SpiR[:], b[8:16])
	h.NextPayload = PayloadType(b[16])
	h.MajorVersion = b[17] >> 4
	h.MinorVersion = b[17] & 0x0f
	h.ExchangeType = ExchangeType(b[18])
	h.Flags = Flags(b[19])
	h.MsgId = binary.BigEndian.Uint32(b[20:24])
	h.MsgLength = binary.BigEndian.Uint32(b[24:28])
	if h.MsgLength < IkeHeaderLen {
		return nil, ERR_INVALID_SYNTAX
	}
	level.Debug(logger).Log("msg", "decoded ike header", "exchange", h.ExchangeType, "id", h.MsgId,
		"dump", hex.EncodeToString(b[:IkeHeaderLen]))
	return h, nil
}

func (h *Header) Encode() []byte {
	b := make([]byte, IkeHeaderLen)
	copy(b[0:8], h.SpiI[:])
	copy(b[8:16], h.SpiR[:])
	b[16] = uint8(h.NextPayload)
	b[17] = h.MajorVersion<<4 | h.MinorVersion
	b[18] = uint8(h.ExchangeType)
	b[19] = uint8(h.Flags)
	binary.BigEndian.PutUint32(b[20:24], h.MsgId)
	binary.BigEndian.PutUint32(b[24:28], h.MsgLength)
	return b
}

// PayloadHeader is the generic 4-octet payload header shared by every
// IKE payload.
type PayloadHeader struct {
	NextPayload   PayloadType
	IsCritical    bool
	PayloadLength uint16
}

func (h *PayloadHeader) NextPayloadType() PayloadType { return h.NextPayload }

// EncodePayloadHeader builds the 4-octet generic payload header for a
// payload of bodyLen octets whose chain continues at next. Exported for
// the crypto package, which needs to build the SK payload's own header
// by hand around an already-sized ciphertext.
func EncodePayloadHeader(next PayloadType, bodyLen uint16) []byte {
	return encodePayloadHeader(next, bodyLen)
}

func encodePayloadHeader(next PayloadType, bodyLen uint16) []byte {
	b := make([]byte, PayloadHeaderLen)
	b[0] = uint8(next)
	binary.BigEndian.PutUint16(b[2:4], bodyLen+PayloadHeaderLen)
	return b
}

func decodePayloadHeader(b []byte) (*PayloadHeader, error) {
	if len(b) < PayloadHeaderLen {
		return nil, ERR_INVALID_SYNTAX
	}
	h := &PayloadHeader{
		NextPayload: PayloadType(b[0]),
		IsCritical:  b[1]&0x80 != 0,
	}
	h.PayloadLength = binary.BigEndian.Uint16(b[2:4])
	if h.PayloadLength < PayloadHeaderLen {
		return nil, ERR_INVALID_SYNTAX
	}
	return h, nil
}

// Payload is implemented by every decodable/encodable IKE payload body.
type Payload interface {
	Type() PayloadType
	Decode(b []byte) error
	Encode() []byte
	NextPayloadType() PayloadType
}
