package mschapv2

import (
	"fmt"

	"github.com/mnsio/ikev2-eap/eap"
	"github.com/mnsio/ikev2-eap/platform"
)

type methodState int

const (
	stateCreated methodState = iota
	stateAwaitingSuccessOrFailure
	stateFinal
)

// Method is the EAP-MSCHAPv2 peer state machine: Created answers the
// authenticator's Challenge, AwaitingSuccessOrFailure verifies the
// returned authenticator response and acks Success/Failure, Final is
// terminal.
type Method struct {
	username, password string
	rand                platform.RandomSource

	state         methodState
	peerChallenge []byte
	authChallenge []byte
	ntResponse    []byte
}

func NewMethod(username, password string, rnd platform.RandomSource) *Method {
	return &Method{username: username, password: password, rand: rnd}
}

func (m *Method) Type() eap.Type { return eap.TypeMSCHAPv2 }

func (m *Method) HandleRequest(identifier uint8, typeData []byte) eap.Outcome {
	if len(typeData) == 0 {
		return eap.Outcome{Err: fmt.Errorf("mschapv2: empty request")}
	}
	op := OpCode(typeData[0])
	switch m.state {
	case stateCreated:
		if op != OpChallenge {
			return eap.Outcome{Err: fmt.Errorf("mschapv2: expected Challenge, got op-code %d", op)}
		}
		return m.handleChallenge(typeData)
	case stateAwaitingSuccessOrFailure:
		switch op {
		case OpSuccess:
			return m.handleSuccess(typeData)
		case OpFailure:
			return m.handleFailure(typeData)
		default:
			return eap.Outcome{Err: fmt.Errorf("mschapv2: expected Success/Failure, got op-code %d", op)}
		}
	default:
		return eap.Outcome{Err: fmt.Errorf("mschapv2: method already finished")}
	}
}

func (m *Method) handleChallenge(data []byte) eap.Outcome {
	ch, err := ParseChallenge(data)
	if err != nil {
		return eap.Outcome{Err: err}
	}

	peerChallenge := make([]byte, 16)
	if _, err := m.rand.Read(peerChallenge); err != nil {
		return eap.Outcome{Err: err}
	}
	m.peerChallenge = peerChallenge
	m.ntResponse = GenerateNtResponse(ch.Challenge, peerChallenge, m.username, m.password)

	resp := &ResponsePacket{
		Identifier:    ch.Identifier,
		PeerChallenge: peerChallenge,
		NtResponse:    m.ntResponse,
		Name:          m.username,
	}
	m.authChallenge = ch.Challenge
	m.state = stateAwaitingSuccessOrFailure
	return eap.Outcome{Response: resp.Encode()}
}

func (m *Method) handleSuccess(data []byte) eap.Outcome {
	s, err := ParseSuccess(data)
	if err != nil {
		return eap.Outcome{Err: err}
	}
	if !CheckAuthenticatorResponse(m.password, m.ntResponse, m.peerChallenge, m.authChallenge, m.username, s.AuthenticatorResponse) {
		m.state = stateFinal
		return eap.Outcome{Response: ack(OpFailure, s.Identifier), Done: true, Ok: false}
	}
	m.state = stateFinal
	msk := MSK(m.password, m.ntResponse)
	return eap.Outcome{Response: ack(OpSuccess, s.Identifier), Done: true, Ok: true, MSK: msk}
}

func (m *Method) handleFailure(data []byte) eap.Outcome {
	f, err := ParseFailure(data)
	if err != nil {
		return eap.Outcome{Err: err}
	}
	m.state = stateFinal
	return eap.Outcome{Response: ack(OpFailure, f.Identifier), Done: true, Ok: false}
}
