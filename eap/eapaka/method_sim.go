package eapaka

import (
	"errors"
	"fmt"

	"github.com/mnsio/ikev2-eap/eap"
	"github.com/mnsio/ikev2-eap/platform"
)

type simState int

const (
	simCreated simState = iota
	simChallenge
	simFinal
)

// SimMethod is the EAP-SIM (RFC 4186) peer state machine. It runs
// entirely client-side: Start chooses version 1 and an identity, and
// Challenge validates the server's RAND set against a SIM applet before
// computing K_aut/MSK/EMSK and the response MAC.
type SimMethod struct {
	subscriber platform.SubscriberSource
	sim        platform.SimAuthenticator
	rand       platform.RandomSource

	state      simState
	notified   bool
	identity   string
	nonceMt    []byte
	versionBuf []byte
	selVerBuf  []byte
	kAut       []byte
}

func NewSimMethod(subscriber platform.SubscriberSource, sim platform.SimAuthenticator, rnd platform.RandomSource) *SimMethod {
	return &SimMethod{subscriber: subscriber, sim: sim, rand: rnd}
}

func (m *SimMethod) Type() eap.Type { return eap.TypeSIM }

func (m *SimMethod) HandleRequest(identifier uint8, typeData []byte) eap.Outcome {
	if m.state == simFinal {
		return eap.Outcome{Err: fmt.Errorf("eapaka: sim method already finished")}
	}
	pkt, err := ParsePacket(typeData)
	if err != nil {
		return eap.Outcome{Err: err}
	}
	if pkt.Subtype == SubtypeNotification {
		return m.handleNotification(identifier, pkt)
	}
	if m.state == simCreated {
		return m.handleStart(identifier, pkt)
	}
	return m.handleChallenge(identifier, pkt)
}

func (m *SimMethod) handleStart(identifier uint8, pkt *Packet) eap.Outcome {
	if pkt.Subtype != SubtypeStart {
		return eap.Outcome{Err: fmt.Errorf("eapaka: expected SIM/Start, got subtype %d", pkt.Subtype)}
	}
	if pkt.Find(AT_MAC) != nil {
		return m.clientError(identifier)
	}
	versions, ok := pkt.Find(AT_VERSION_LIST).(*AtVersionListAttr)
	if !ok {
		return m.clientError(identifier)
	}
	idReqs := pkt.Count(AT_PERMANENT_ID_REQ) + pkt.Count(AT_ANY_ID_REQ) + pkt.Count(AT_FULLAUTH_ID_REQ)
	if idReqs > 1 {
		return m.clientError(identifier)
	}
	found := false
	for _, v := range versions.Versions {
		if v == 1 {
			found = true
			break
		}
	}
	if !found {
		return m.clientError(identifier)
	}

	identity, err := m.subscriber.SubscriberId()
	if err != nil {
		if errors.Is(err, platform.ErrUnavailable) {
			return eap.Outcome{Err: platform.ErrUnavailable}
		}
		return eap.Outcome{Err: err}
	}
	m.identity = identity

	nonceMt := make([]byte, 16)
	if _, err := m.rand.Read(nonceMt); err != nil {
		return eap.Outcome{Err: err}
	}
	m.nonceMt = nonceMt

	vl, _ := versions.Marshal()
	m.versionBuf = vl[2:] // strip the TL header, keep just the inner value
	selAttr := &AtSelectedVersionAttr{Version: 1}
	sl, _ := selAttr.Marshal()
	m.selVerBuf = sl[2:]

	resp := &Packet{Subtype: SubtypeStart, Attributes: []Attribute{
		&AtNonceMtAttr{NonceMt: nonceMt},
		selAttr,
	}}
	if idReqs > 0 {
		resp.Attributes = append(resp.Attributes, &AtIdentityAttr{Identity: identity})
	}

	wire, err := resp.Marshal()
	if err != nil {
		return eap.Outcome{Err: err}
	}
	m.state = simChallenge
	return eap.Outcome{Response: wire}
}

func (m *SimMethod) handleChallenge(identifier uint8, pkt *Packet) eap.Outcome {
	if pkt.Subtype != SubtypeChallenge {
		return eap.Outcome{Err: fmt.Errorf("eapaka: expected SIM/Challenge, got subtype %d", pkt.Subtype)}
	}
	randAttr, ok := pkt.Find(AT_RAND).(*AtRandAttr)
	if !ok {
		return m.clientError(identifier)
	}
	if len(randAttr.Rands) < 2 || len(randAttr.Rands) > 3 {
		return m.clientError(identifier)
	}
	if !distinctRands(randAttr.Rands) {
		return m.clientError(identifier)
	}
	if pkt.Find(AT_MAC) == nil {
		return m.clientError(identifier)
	}

	var rands16 [][16]byte
	for _, r := range randAttr.Rands {
		var a [16]byte
		copy(a[:], r)
		rands16 = append(rands16, a)
	}
	vectors, err := m.sim.AuthenticateSim(rands16)
	if err != nil {
		if errors.Is(err, platform.ErrUnavailable) {
			return eap.Outcome{Err: platform.ErrUnavailable}
		}
		return eap.Outcome{Err: err}
	}
	if len(vectors) != len(rands16) {
		return eap.Outcome{Err: fmt.Errorf("eapaka: sim returned %d vectors for %d challenges", len(vectors), len(rands16))}
	}

	var kcs [][]byte
	for _, v := range vectors {
		kcs = append(kcs, append([]byte{}, v.Kc[:]...))
	}
	keys := DeriveKeysSim(m.identity, kcs, m.nonceMt, m.versionBuf, m.selVerBuf)
	m.kAut = keys.KAut

	ok, err = pkt.Verify(eap.TypeSIM, eap.CodeRequest, identifier, m.kAut)
	if err != nil {
		return eap.Outcome{Err: err}
	}
	if !ok {
		m.state = simFinal
		return eap.Outcome{Done: true, Ok: false}
	}

	resp := &Packet{Subtype: SubtypeChallenge, Attributes: []Attribute{&AtMacAttr{}}}
	if err := resp.Sign(eap.TypeSIM, eap.CodeResponse, identifier, m.kAut); err != nil {
		return eap.Outcome{Err: err}
	}
	wire, err := resp.Marshal()
	if err != nil {
		return eap.Outcome{Err: err}
	}
	m.state = simFinal
	return eap.Outcome{Response: wire, Done: true, Ok: true, MSK: keys.MSK, EMSK: keys.EMSK}
}

func (m *SimMethod) handleNotification(identifier uint8, pkt *Packet) eap.Outcome {
	if m.notified {
		return eap.Outcome{Err: fmt.Errorf("eapaka: duplicate notification in one session")}
	}
	m.notified = true
	n, ok := pkt.Find(AT_NOTIFICATION).(*AtNotificationAttr)
	if !ok {
		return eap.Outcome{Err: fmt.Errorf("eapaka: notification subtype without AT_NOTIFICATION")}
	}
	if n.P && m.state != simCreated {
		return eap.Outcome{Err: fmt.Errorf("eapaka: pre-challenge notification (P=1) after challenge")}
	}
	resp := &Packet{Subtype: SubtypeNotification}
	wire, err := resp.Marshal()
	if err != nil {
		return eap.Outcome{Err: err}
	}
	if !n.S {
		m.state = simFinal
		return eap.Outcome{Response: wire, Done: true, Ok: false}
	}
	return eap.Outcome{Response: wire}
}

func (m *SimMethod) clientError(identifier uint8) eap.Outcome {
	resp := &Packet{Subtype: SubtypeClientError, Attributes: []Attribute{UnableToProcessError()}}
	wire, err := resp.Marshal()
	if err != nil {
		return eap.Outcome{Err: err}
	}
	return eap.Outcome{Response: wire}
}

func distinctRands(rands [][]byte) bool {
	for i := range rands {
		for j := i + 1; j < len(rands); j++ {
			if string(rands[i]) == string(rands[j]) {
				return false
			}
		}
	}
	return true
}
