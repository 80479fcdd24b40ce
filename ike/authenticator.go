package ike

import "github.com/mnsio/ikev2-eap/protocol"

// Authenticator is the capability a Session needs from whatever drives
// IKE_AUTH's authentication method; ikeauth.Authenticator is the
// concrete implementation, injected by the caller so this package need
// not depend on it.
type Authenticator interface {
	// IsEap reports whether this side omits its own AUTH payload on the
	// opening IKE_AUTH request and instead drives an embedded EAP
	// conversation (RFC 7296 §2.16).
	IsEap() bool

	// HandleEapPayload drives one inbound EAP message through the
	// configured method set. reply is the EAP payload to carry in the
	// next IKE_AUTH request, or nil once nothing more needs sending.
	// done/ok/msk are only meaningful once the method has reached Final.
	HandleEapPayload(payload *protocol.EapPayload) (reply *protocol.EapPayload, done, ok bool, msk []byte, err error)

	// BuildPskAuth computes an AUTH payload value for the pre-shared-key
	// method (RFC 7296 §2.15).
	BuildPskAuth(ownMessage, peerNonce, idPayloadBody []byte, isInitiator bool) []byte

	// BuildEapAuth computes the final AUTH payload value from the MSK an
	// embedded EAP conversation derived (RFC 7296 §2.16).
	BuildEapAuth(msk, ownMessage, peerNonce, idPayloadBody []byte, isInitiator bool) []byte
}
