// Package eap implements the top-level EAP peer state machine (RFC 3748):
// decoding/encoding the EAP message header, Legacy-Nak on an
// unconfigured method, Notification passthrough, and dispatch to a
// single active inner method. Concrete methods (EAP-SIM/AKA/AKA' in
// eap/eapaka, EAP-MSCHAPv2 in eap/mschapv2) implement the Method
// interface this package defines.
package eap

import (
	"encoding/binary"
	"fmt"
)

// Code is the EAP Code field (RFC 3748 §4).
type Code uint8

const (
	CodeRequest  Code = 1
	CodeResponse Code = 2
	CodeSuccess  Code = 3
	CodeFailure  Code = 4
)

func (c Code) String() string {
	switch c {
	case CodeRequest:
		return "Request"
	case CodeResponse:
		return "Response"
	case CodeSuccess:
		return "Success"
	case CodeFailure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// Type is the EAP Type field, present only on Request/Response.
type Type uint8

const (
	TypeIdentity    Type = 1
	TypeNotify      Type = 2
	TypeNak         Type = 3
	TypeMD5Challenge Type = 4
	TypeMSCHAPv2    Type = 26
	TypeSIM         Type = 18
	TypeAKA         Type = 23
	TypeAKAPrime    Type = 50
)

// Message is a decoded EAP packet. Success and Failure carry no Type or
// TypeData and must be exactly 4 octets on the wire (RFC 3748 §4).
type Message struct {
	Code       Code
	Identifier uint8
	Type       Type
	TypeData   []byte
}

func Decode(b []byte) (*Message, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("eap: message shorter than header")
	}
	m := &Message{Code: Code(b[0]), Identifier: b[1]}
	length := binary.BigEndian.Uint16(b[2:4])
	if int(length) != len(b) {
		return nil, fmt.Errorf("eap: length field %d does not match %d received octets", length, len(b))
	}
	switch m.Code {
	case CodeSuccess, CodeFailure:
		if length != 4 {
			return nil, fmt.Errorf("eap: success/failure message must be exactly 4 octets, got %d", length)
		}
		return m, nil
	case CodeRequest, CodeResponse:
		if len(b) < 5 {
			return nil, fmt.Errorf("eap: request/response message missing type octet")
		}
		m.Type = Type(b[4])
		m.TypeData = append([]byte{}, b[5:]...)
		return m, nil
	default:
		return nil, fmt.Errorf("eap: unknown code %d", b[0])
	}
}

func (m *Message) Encode() []byte {
	switch m.Code {
	case CodeSuccess, CodeFailure:
		b := make([]byte, 4)
		b[0] = uint8(m.Code)
		b[1] = m.Identifier
		binary.BigEndian.PutUint16(b[2:4], 4)
		return b
	default:
		b := make([]byte, 5)
		b[0] = uint8(m.Code)
		b[1] = m.Identifier
		b[4] = uint8(m.Type)
		b = append(b, m.TypeData...)
		binary.BigEndian.PutUint16(b[2:4], uint16(len(b)))
		return b
	}
}

// NakResponse builds a Legacy-Nak (RFC 3748 §5.3.1) proposing the
// method types this peer is willing to run instead of the one offered.
func NakResponse(identifier uint8, desired ...Type) *Message {
	data := make([]byte, len(desired))
	for i, t := range desired {
		data[i] = uint8(t)
	}
	return &Message{Code: CodeResponse, Identifier: identifier, Type: TypeNak, TypeData: data}
}

// IdentityResponse builds an EAP-Response/Identity carrying id.
func IdentityResponse(identifier uint8, id string) *Message {
	return &Message{Code: CodeResponse, Identifier: identifier, Type: TypeIdentity, TypeData: []byte(id)}
}
