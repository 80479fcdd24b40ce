package eapaka

import (
	"errors"
	"fmt"

	"github.com/mnsio/ikev2-eap/eap"
	"github.com/mnsio/ikev2-eap/platform"
)

type akaState int

const (
	akaCreated akaState = iota
	akaChallenge
	akaFinal
)

// AkaMethod is the EAP-AKA (RFC 4187) peer state machine: it consults a
// USIM on every Challenge, answering with AT_RES or, on a
// synchronization failure, AT_AUTS to request a fresh sequence number.
type AkaMethod struct {
	subscriber platform.SubscriberSource
	usim       platform.SimAuthenticator

	state    akaState
	notified bool
	identity string
	kAut     []byte
}

func NewAkaMethod(subscriber platform.SubscriberSource, usim platform.SimAuthenticator) *AkaMethod {
	return &AkaMethod{subscriber: subscriber, usim: usim}
}

func (m *AkaMethod) Type() eap.Type { return eap.TypeAKA }

func (m *AkaMethod) HandleRequest(identifier uint8, typeData []byte) eap.Outcome {
	if m.state == akaFinal {
		return eap.Outcome{Err: fmt.Errorf("eapaka: aka method already finished")}
	}
	pkt, err := ParsePacket(typeData)
	if err != nil {
		return eap.Outcome{Err: err}
	}
	if pkt.Subtype == SubtypeNotification {
		return m.handleNotification(pkt)
	}
	if pkt.Subtype != SubtypeChallenge {
		return eap.Outcome{Err: fmt.Errorf("eapaka: expected AKA/Challenge, got subtype %d", pkt.Subtype)}
	}
	return m.handleChallenge(identifier, pkt)
}

func (m *AkaMethod) handleChallenge(identifier uint8, pkt *Packet) eap.Outcome {
	randAttr, ok := pkt.Find(AT_RAND).(*AtRandAttr)
	if !ok || len(randAttr.Rands) != 1 {
		return m.clientError()
	}
	autnAttr, ok := pkt.Find(AT_AUTN).(*reserved16)
	if !ok {
		return m.clientError()
	}
	if pkt.Find(AT_MAC) == nil {
		return m.clientError()
	}

	if m.identity == "" {
		identity, err := m.subscriber.SubscriberId()
		if err != nil {
			if errors.Is(err, platform.ErrUnavailable) {
				return eap.Outcome{Err: platform.ErrUnavailable}
			}
			return eap.Outcome{Err: err}
		}
		m.identity = identity
	}

	vector, err := m.usim.AuthenticateAka(randAttr.Rands[0], AtAutnValue(autnAttr))
	if err != nil {
		if errors.Is(err, platform.ErrUnavailable) {
			return eap.Outcome{Err: platform.ErrUnavailable}
		}
		return eap.Outcome{Err: err}
	}

	if vector.Auts != nil {
		resp := &Packet{Subtype: SubtypeSynchronizationFailure, Attributes: []Attribute{&AtAutsAttr{Auts: vector.Auts}}}
		wire, err := resp.Marshal()
		if err != nil {
			return eap.Outcome{Err: err}
		}
		m.state = akaChallenge
		return eap.Outcome{Response: wire}
	}

	keys := DeriveKeysAka(m.identity, vector.Ck, vector.Ik)
	m.kAut = keys.KAut

	verified, err := pkt.Verify(eap.TypeAKA, eap.CodeRequest, identifier, m.kAut)
	if err != nil {
		return eap.Outcome{Err: err}
	}
	if !verified {
		m.state = akaFinal
		return eap.Outcome{Done: true, Ok: false}
	}

	resp := &Packet{Subtype: SubtypeChallenge, Attributes: []Attribute{
		&AtResAttr{Res: vector.Res},
		&AtMacAttr{},
	}}
	if err := resp.Sign(eap.TypeAKA, eap.CodeResponse, identifier, m.kAut); err != nil {
		return eap.Outcome{Err: err}
	}
	wire, err := resp.Marshal()
	if err != nil {
		return eap.Outcome{Err: err}
	}
	m.state = akaFinal
	return eap.Outcome{Response: wire, Done: true, Ok: true, MSK: keys.MSK, EMSK: keys.EMSK}
}

func (m *AkaMethod) handleNotification(pkt *Packet) eap.Outcome {
	if m.notified {
		return eap.Outcome{Err: fmt.Errorf("eapaka: duplicate notification in one session")}
	}
	m.notified = true
	n, ok := pkt.Find(AT_NOTIFICATION).(*AtNotificationAttr)
	if !ok {
		return eap.Outcome{Err: fmt.Errorf("eapaka: notification subtype without AT_NOTIFICATION")}
	}
	if n.P && m.state != akaCreated {
		return eap.Outcome{Err: fmt.Errorf("eapaka: pre-challenge notification (P=1) after challenge")}
	}
	resp := &Packet{Subtype: SubtypeNotification}
	wire, err := resp.Marshal()
	if err != nil {
		return eap.Outcome{Err: err}
	}
	if !n.S {
		m.state = akaFinal
		return eap.Outcome{Response: wire, Done: true, Ok: false}
	}
	return eap.Outcome{Response: wire}
}

func (m *AkaMethod) clientError() eap.Outcome {
	resp := &Packet{Subtype: SubtypeClientError, Attributes: []Attribute{UnableToProcessError()}}
	wire, err := resp.Marshal()
	if err != nil {
		return eap.Outcome{Err: err}
	}
	return eap.Outcome{Response: wire}
}
