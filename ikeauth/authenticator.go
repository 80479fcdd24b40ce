// Package ikeauth drives the IKE_AUTH exchange's authentication method:
// pre-shared key or an embedded EAP conversation (RFC 7296 §2.15-§2.16).
// Certificate (signature) authentication is not implemented.
package ikeauth

import (
	"fmt"

	"github.com/mnsio/ikev2-eap/eap"
	"github.com/mnsio/ikev2-eap/eap/eapaka"
	"github.com/mnsio/ikev2-eap/eap/mschapv2"
	"github.com/mnsio/ikev2-eap/ike"
	"github.com/mnsio/ikev2-eap/platform"
	"github.com/mnsio/ikev2-eap/protocol"
)

// Authenticator owns the local side of authentication for one IKE_AUTH
// conversation: a PSK AUTH computation, or an embedded EAP exchange
// dispatched through eap.Authenticator.
type Authenticator struct {
	cfg *ike.Config
	rec *ike.SaRecord

	eap *eap.Authenticator
}

// New builds an Authenticator. collab supplies the SIM/USIM, subscriber
// identity and random source the configured EAP methods need; it may be
// left as the zero value if LocalAuth.Method is not AuthMethodEAP.
func New(cfg *ike.Config, rec *ike.SaRecord, collab Collaborators) *Authenticator {
	a := &Authenticator{cfg: cfg, rec: rec}
	if cfg.LocalAuth.Method == protocol.AuthMethodEAP {
		a.eap = eap.NewAuthenticator(methodFactories(cfg, collab))
	}
	return a
}

// Collaborators bundles the external dependencies configured EAP methods
// consult.
type Collaborators struct {
	Subscriber platform.SubscriberSource
	Sim        platform.SimAuthenticator
	Rand       platform.RandomSource
}

func methodFactories(cfg *ike.Config, collab Collaborators) map[eap.Type]eap.MethodFactory {
	factories := map[eap.Type]eap.MethodFactory{}
	for _, session := range cfg.LocalAuth.Eap {
		session := session
		switch session.Kind {
		case ike.EapSim:
			factories[eap.TypeSIM] = func() eap.Method {
				return eapaka.NewSimMethod(collab.Subscriber, collab.Sim, collab.Rand)
			}
		case ike.EapAka:
			factories[eap.TypeAKA] = func() eap.Method {
				return eapaka.NewAkaMethod(collab.Subscriber, collab.Sim)
			}
		case ike.EapAkaPrime:
			factories[eap.TypeAKAPrime] = func() eap.Method {
				return eapaka.NewAkaPrimeMethod(collab.Subscriber, collab.Sim, session.NetworkName)
			}
		case ike.EapMschapv2:
			factories[eap.TypeMSCHAPv2] = func() eap.Method {
				return mschapv2.NewMethod(session.Username, session.Password, collab.Rand)
			}
		}
	}
	return factories
}

// IsEap reports whether this side's authentication method is the
// EAP-embedded one (RFC 7296 §2.16): no AUTH payload accompanies the
// initiator's first IKE_AUTH message in that case.
func (a *Authenticator) IsEap() bool {
	return a.cfg.LocalAuth.Method == protocol.AuthMethodEAP
}

// HandleEapPayload drives one inbound EAP message through the
// configured method set and returns the reply to send, if any, or
// signals completion once the authenticator issues Success/Failure.
func (a *Authenticator) HandleEapPayload(payload *protocol.EapPayload) (reply *protocol.EapPayload, done, ok bool, msk []byte, err error) {
	if a.eap == nil {
		return nil, false, false, nil, fmt.Errorf("ikeauth: received EAP payload but local auth method is not EAP")
	}
	msg, err := eap.Decode(payload.EapMessage)
	if err != nil {
		return nil, false, false, nil, err
	}
	out, err := a.eap.HandleMessage(msg)
	if err != nil {
		return nil, false, false, nil, err
	}
	done, ok, msk, _ = a.eap.Done()
	if out != nil {
		reply = &protocol.EapPayload{
			PayloadHeader: &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeNone},
			EapMessage:    out.Encode(),
		}
	}
	return reply, done, ok, msk, nil
}

// BuildPskAuth computes the AUTH payload value for the pre-shared-key
// method (RFC 7296 §2.15), given this side's own first message bytes,
// the peer's nonce, and the encoded ID payload body for the side the
// AUTH is being computed for.
func (a *Authenticator) BuildPskAuth(ownMessage, peerNonce, idPayloadBody []byte, isInitiator bool) []byte {
	skP := a.rec.Keys.SkPr
	if isInitiator {
		skP = a.rec.Keys.SkPi
	}
	return a.rec.ComputeAuthPsk(a.cfg.LocalAuth.Psk, ownMessage, peerNonce, idPayloadBody, skP)
}

// BuildEapAuth computes the final AUTH payload value once the embedded
// EAP conversation has completed successfully: the derived MSK stands in
// for the pre-shared key (RFC 7296 §2.16).
func (a *Authenticator) BuildEapAuth(msk, ownMessage, peerNonce, idPayloadBody []byte, isInitiator bool) []byte {
	skP := a.rec.Keys.SkPr
	if isInitiator {
		skP = a.rec.Keys.SkPi
	}
	return a.rec.ComputeAuthPsk(msk, ownMessage, peerNonce, idPayloadBody, skP)
}
