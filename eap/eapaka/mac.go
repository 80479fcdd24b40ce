package eapaka

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/mnsio/ikev2-eap/eap"
)

// ZeroMac finds the packet's AT_MAC attribute, saves its current value,
// and overwrites it with 16 zero bytes so the packet can be (re-)signed
// or have its MAC verified (RFC 4187 §10.15: the MAC field is treated as
// zero during the MAC's own computation).
func (p *Packet) ZeroMac() (original []byte, err error) {
	mac, ok := p.Find(AT_MAC).(*AtMacAttr)
	if !ok {
		return nil, fmt.Errorf("eapaka: packet has no AT_MAC attribute")
	}
	original = append([]byte{}, mac.Mac...)
	mac.Mac = make([]byte, 16)
	return original, nil
}

func macHash(methodType eap.Type) (func([]byte, []byte) []byte, error) {
	switch methodType {
	case eap.TypeSIM, eap.TypeAKA:
		return func(key, data []byte) []byte {
			h := hmac.New(sha1.New, key)
			h.Write(data)
			return h.Sum(nil)[:16]
		}, nil
	case eap.TypeAKAPrime:
		return func(key, data []byte) []byte {
			h := hmac.New(sha256.New, key)
			h.Write(data)
			return h.Sum(nil)[:16]
		}, nil
	default:
		return nil, fmt.Errorf("eapaka: unsupported method type %d for MAC", methodType)
	}
}

// Sign computes and stores this packet's AT_MAC value over the complete
// EAP message (Code/Identifier/Length/Type plus this packet's own bytes
// with AT_MAC zeroed), the way RFC 4186 §10.14/RFC 4187 §10.15 define it.
func (p *Packet) Sign(methodType eap.Type, code eap.Code, identifier uint8, kAut []byte) error {
	if _, err := p.ZeroMac(); err != nil {
		return err
	}
	h, err := macHash(methodType)
	if err != nil {
		return err
	}
	wire, err := p.encodeAsMessage(methodType, code, identifier)
	if err != nil {
		return err
	}
	mac := h(kAut, wire)
	m := p.Find(AT_MAC).(*AtMacAttr)
	m.Mac = mac
	return nil
}

// Verify checks this packet's AT_MAC against kAut, restoring the
// original field afterwards regardless of outcome.
func (p *Packet) Verify(methodType eap.Type, code eap.Code, identifier uint8, kAut []byte) (bool, error) {
	m, ok := p.Find(AT_MAC).(*AtMacAttr)
	if !ok {
		return false, fmt.Errorf("eapaka: packet has no AT_MAC attribute")
	}
	received := append([]byte{}, m.Mac...)
	defer func() { m.Mac = received }()

	m.Mac = make([]byte, 16)
	h, err := macHash(methodType)
	if err != nil {
		return false, err
	}
	wire, err := p.encodeAsMessage(methodType, code, identifier)
	if err != nil {
		return false, err
	}
	expected := h(kAut, wire)
	return subtle.ConstantTimeCompare(received, expected) == 1, nil
}

func (p *Packet) encodeAsMessage(methodType eap.Type, code eap.Code, identifier uint8) ([]byte, error) {
	data, err := p.Marshal()
	if err != nil {
		return nil, err
	}
	msg := &eap.Message{Code: code, Identifier: identifier, Type: methodType, TypeData: data}
	return msg.Encode(), nil
}
