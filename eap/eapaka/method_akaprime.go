package eapaka

import (
	"errors"
	"fmt"

	"github.com/mnsio/ikev2-eap/eap"
	"github.com/mnsio/ikev2-eap/platform"
)

type akaPrimeState int

const (
	akaPrimeCreated akaPrimeState = iota
	akaPrimeChallenge
	akaPrimeFinal
)

const supportedKdf uint16 = 1 // RFC 5448 §3.1, the only KDF currently defined

// AkaPrimeMethod is the EAP-AKA' (RFC 5448) peer state machine: it
// mirrors AkaMethod but mixes the configured access network name into
// CK'/IK' before deriving keys, and requires the AT_KDF/AT_KDF_INPUT
// negotiation RFC 5448 §3.1 adds on top of EAP-AKA.
type AkaPrimeMethod struct {
	subscriber  platform.SubscriberSource
	usim        platform.SimAuthenticator
	networkName string

	state    akaPrimeState
	notified bool
	identity string
	kAut     []byte
}

func NewAkaPrimeMethod(subscriber platform.SubscriberSource, usim platform.SimAuthenticator, networkName string) *AkaPrimeMethod {
	return &AkaPrimeMethod{subscriber: subscriber, usim: usim, networkName: networkName}
}

func (m *AkaPrimeMethod) Type() eap.Type { return eap.TypeAKAPrime }

func (m *AkaPrimeMethod) HandleRequest(identifier uint8, typeData []byte) eap.Outcome {
	if m.state == akaPrimeFinal {
		return eap.Outcome{Err: fmt.Errorf("eapaka: aka' method already finished")}
	}
	pkt, err := ParsePacket(typeData)
	if err != nil {
		return eap.Outcome{Err: err}
	}
	if pkt.Subtype == SubtypeNotification {
		return m.handleNotification(pkt)
	}
	if pkt.Subtype != SubtypeChallenge {
		return eap.Outcome{Err: fmt.Errorf("eapaka: expected AKA'/Challenge, got subtype %d", pkt.Subtype)}
	}
	return m.handleChallenge(identifier, pkt)
}

func (m *AkaPrimeMethod) handleChallenge(identifier uint8, pkt *Packet) eap.Outcome {
	randAttr, ok := pkt.Find(AT_RAND).(*AtRandAttr)
	if !ok || len(randAttr.Rands) != 1 {
		return m.clientError()
	}
	autnAttr, ok := pkt.Find(AT_AUTN).(*reserved16)
	if !ok {
		return m.clientError()
	}
	kdf, ok := pkt.Find(AT_KDF).(*AtKdfAttr)
	if !ok || kdf.Kdf != supportedKdf {
		return m.clientError()
	}
	kdfInput, ok := pkt.Find(AT_KDF_INPUT).(*AtKdfInputAttr)
	if !ok || kdfInput.NetworkName != m.networkName {
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
		m.state = akaPrimeChallenge
		return eap.Outcome{Response: wire}
	}

	ckPrime, ikPrime := DeriveCkIkPrime(vector.Ck, vector.Ik, m.networkName)
	keys := DeriveKeysAkaPrime(m.identity, ckPrime, ikPrime)
	m.kAut = keys.KAut

	verified, err := pkt.Verify(eap.TypeAKAPrime, eap.CodeRequest, identifier, m.kAut)
	if err != nil {
		return eap.Outcome{Err: err}
	}
	if !verified {
		m.state = akaPrimeFinal
		return eap.Outcome{Done: true, Ok: false}
	}

	resp := &Packet{Subtype: SubtypeChallenge, Attributes: []Attribute{
		&AtResAttr{Res: vector.Res},
		&AtMacAttr{},
	}}
	if err := resp.Sign(eap.TypeAKAPrime, eap.CodeResponse, identifier, m.kAut); err != nil {
		return eap.Outcome{Err: err}
	}
	wire, err := resp.Marshal()
	if err != nil {
		return eap.Outcome{Err: err}
	}
	m.state = akaPrimeFinal
	return eap.Outcome{Response: wire, Done: true, Ok: true, MSK: keys.MSK, EMSK: keys.EMSK}
}

func (m *AkaPrimeMethod) handleNotification(pkt *Packet) eap.Outcome {
	if m.notified {
		return eap.Outcome{Err: fmt.Errorf("eapaka: duplicate notification in one session")}
	}
	m.notified = true
	n, ok := pkt.Find(AT_NOTIFICATION).(*AtNotificationAttr)
	if !ok {
		return eap.Outcome{Err: fmt.Errorf("eapaka: notification subtype without AT_NOTIFICATION")}
	}
	if n.P && m.state != akaPrimeCreated {
		return eap.Outcome{Err: fmt.Errorf("eapaka: pre-challenge notification (P=1) after challenge")}
	}
	resp := &Packet{Subtype: SubtypeNotification}
	wire, err := resp.Marshal()
	if err != nil {
		return eap.Outcome{Err: err}
	}
	if !n.S {
		m.state = akaPrimeFinal
		return eap.Outcome{Response: wire, Done: true, Ok: false}
	}
	return eap.Outcome{Response: wire}
}

func (m *AkaPrimeMethod) clientError() eap.Outcome {
	resp := &Packet{Subtype: SubtypeClientError, Attributes: []Attribute{UnableToProcessError()}}
	wire, err := resp.Marshal()
	if err != nil {
		return eap.Outcome{Err: err}
	}
	return eap.Outcome{Response: wire}
}
