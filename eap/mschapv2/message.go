package mschapv2

import (
	"fmt"
	"strings"
)

// OpCode is the MS-CHAP-v2 op-code carried as the first octet of the EAP
// TypeData (RFC 2759 §3, draft-kamath-pppext-eap-mschapv2 §2).
type OpCode uint8

const (
	OpChallenge     OpCode = 1
	OpResponse      OpCode = 2
	OpSuccess       OpCode = 3
	OpFailure       OpCode = 4
	OpChangePassword OpCode = 7
)

// ChallengePacket is an authenticator Challenge (RFC 2759 §3).
type ChallengePacket struct {
	Identifier uint8
	Challenge  []byte // 16 bytes
	Name       string
}

func ParseChallenge(data []byte) (*ChallengePacket, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("mschapv2: challenge too short")
	}
	if OpCode(data[0]) != OpChallenge {
		return nil, fmt.Errorf("mschapv2: expected op-code Challenge, got %d", data[0])
	}
	identifier := data[1]
	// data[2] is the value-size octet; challenge value follows.
	valueSize := int(data[2])
	if len(data) < 3+valueSize {
		return nil, fmt.Errorf("mschapv2: challenge value truncated")
	}
	return &ChallengePacket{
		Identifier: identifier,
		Challenge:  append([]byte{}, data[3:3+valueSize]...),
		Name:       string(data[3+valueSize:]),
	}, nil
}

// ResponsePacket is the peer's Response to a Challenge (RFC 2759 §5).
type ResponsePacket struct {
	Identifier    uint8
	PeerChallenge []byte // 16 bytes
	NtResponse    []byte // 24 bytes
	Name          string
}

func (p *ResponsePacket) Encode() []byte {
	const valueSize = 49 // 16 peer-challenge + 8 reserved + 24 nt-response + 1 flags
	buf := make([]byte, 3, 3+valueSize+len(p.Name))
	buf[0] = uint8(OpResponse)
	buf[1] = p.Identifier
	buf[2] = valueSize
	buf = append(buf, p.PeerChallenge...)
	buf = append(buf, make([]byte, 8)...) // reserved
	buf = append(buf, p.NtResponse...)
	buf = append(buf, 0) // flags
	buf = append(buf, []byte(p.Name)...)
	return buf
}

// SuccessPacket is an authenticator Success (RFC 2759 §4), carrying the
// "S=<hex>" authenticator response plus any trailing message text.
type SuccessPacket struct {
	Identifier              uint8
	AuthenticatorResponse string
	Message                string
}

func ParseSuccess(data []byte) (*SuccessPacket, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("mschapv2: success too short")
	}
	if OpCode(data[0]) != OpSuccess {
		return nil, fmt.Errorf("mschapv2: expected op-code Success, got %d", data[0])
	}
	rest := string(data[2:])
	resp := rest
	msg := ""
	if idx := strings.IndexByte(rest, ' '); idx >= 0 {
		resp = rest[:idx]
		msg = rest[idx+1:]
	}
	return &SuccessPacket{Identifier: data[1], AuthenticatorResponse: resp, Message: msg}, nil
}

// FailurePacket is an authenticator Failure (RFC 2759 §4).
type FailurePacket struct {
	Identifier uint8
	Message    string
}

func ParseFailure(data []byte) (*FailurePacket, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("mschapv2: failure too short")
	}
	if OpCode(data[0]) != OpFailure {
		return nil, fmt.Errorf("mschapv2: expected op-code Failure, got %d", data[0])
	}
	return &FailurePacket{Identifier: data[1], Message: string(data[2:])}, nil
}

// ack is the peer's zero-length-message acknowledgement of a Success or
// Failure (draft-kamath-pppext-eap-mschapv2 §2.3/§2.4): same op-code and
// identifier echoed back, with no message field.
func ack(op OpCode, identifier uint8) []byte {
	return []byte{uint8(op), identifier}
}

