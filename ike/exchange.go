package ike

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/mnsio/ikev2-eap/protocol"
)

// BuildInitRequest assembles the IKE_SA_INIT request: SA, KE and Nonce
// payloads plus the NAT-detection notifies.
func BuildInitRequest(rec *SaRecord, cfg *Config, localSpi protocol.Spi) (*protocol.Message, error) {
	sa := &protocol.SaPayload{
		PayloadHeader: &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeKE},
		Proposals:     []*protocol.Proposal{ProposalFor(protocol.PROTO_IKE, cfg.ProposalIke, nil)},
	}
	ke := &protocol.KePayload{
		PayloadHeader: &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeNonce},
		DhTransformId: rec.Suite.DhGroup.DhTransformId,
		KeyData:       rec.DhPublic,
	}
	nonce := &protocol.NoncePayload{
		PayloadHeader: &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeN},
		Nonce:         rec.Ni.Bytes(),
	}

	payloads := protocol.NewPayloads()
	payloads.Add(sa)
	payloads.Add(ke)
	payloads.Add(nonce)
	payloads.Add(natDetectionNotify(protocol.NAT_DETECTION_SOURCE_IP, localSpi, protocol.Spi{}))
	payloads.Add(natDetectionNotify(protocol.NAT_DETECTION_DESTINATION_IP, localSpi, protocol.Spi{}))

	header := &protocol.Header{
		SpiI:         localSpi,
		NextPayload:  protocol.PayloadTypeSA,
		MajorVersion: protocol.IkeMajorVersion,
		MinorVersion: protocol.IkeMinorVersion,
		ExchangeType: protocol.IKE_SA_INIT,
		Flags:        protocol.InitiatorFlag,
	}
	return &protocol.Message{Header: header, Payloads: payloads}, nil
}

func natDetectionNotify(nt protocol.NotificationType, spiI, spiR protocol.Spi) *protocol.NotifyPayload {
	return &protocol.NotifyPayload{
		PayloadHeader:    &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeN},
		ProtocolId:       protocol.PROTO_IKE,
		NotificationType: nt,
		NotificationData: append(append([]byte{}, spiI[:]...), spiR[:]...),
	}
}

// ApplyInitResponse folds a peer's IKE_SA_INIT response into rec: it
// records the responder SPI, validates the chosen proposal, stores the
// peer's nonce and KE value, and derives the IKE SA key schedule.
func ApplyInitResponse(rec *SaRecord, cfg *Config, header *protocol.Header, payloads *protocol.Payloads) error {
	if header.SpiR.IsZero() {
		return fmt.Errorf("ike: responder spi is zero")
	}
	rec.SpiI = header.SpiI
	rec.SpiR = header.SpiR

	sa, ok := payloads.Get(protocol.PayloadTypeSA).(*protocol.SaPayload)
	if !ok {
		return fmt.Errorf("ike: response missing SA payload")
	}
	if err := cfg.CheckProposal(protocol.PROTO_IKE, sa.Proposals); err != nil {
		return err
	}

	ke, ok := payloads.Get(protocol.PayloadTypeKE).(*protocol.KePayload)
	if !ok {
		return fmt.Errorf("ike: response missing KE payload")
	}
	if err := rec.SetPeerKe(ke.KeyData); err != nil {
		return err
	}

	nonce, ok := payloads.Get(protocol.PayloadTypeNonce).(*protocol.NoncePayload)
	if !ok {
		return fmt.Errorf("ike: response missing Nonce payload")
	}
	rec.Nr = new(big.Int).SetBytes(nonce.Nonce)

	return rec.DeriveKeys()
}

// BuildAuthRequestEap builds the opening IKE_AUTH request for the
// EAP-embedded method (RFC 7296 §2.16): IDi only, with the AUTH payload
// omitted entirely so the peer knows to drive an EAP conversation
// instead of expecting our AUTH up front.
func BuildAuthRequestEap(rec *SaRecord, cfg *Config, msgId uint32) *protocol.Message {
	idi := localIdPayload(cfg, protocol.PayloadTypeNone)
	payloads := protocol.NewPayloads()
	payloads.Add(idi)
	return authMessage(rec, msgId, payloads)
}

// BuildAuthRequestEapCarry wraps one outbound EAP message (already
// encoded) in a fresh IKE_AUTH request: every round of an embedded EAP
// conversation after the first is its own full request/response
// exchange (RFC 7296 §2.16).
func BuildAuthRequestEapCarry(rec *SaRecord, msgId uint32, eapMessage []byte) *protocol.Message {
	payloads := protocol.NewPayloads()
	payloads.Add(&protocol.EapPayload{
		PayloadHeader: &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeNone},
		EapMessage:    eapMessage,
	})
	return authMessage(rec, msgId, payloads)
}

// BuildAuthRequestFinal builds the IKE_AUTH request that carries our
// AUTH payload (computed over the PSK or, for EAP, the derived MSK)
// together with the child SA proposal and traffic selectors.
func BuildAuthRequestFinal(rec *SaRecord, cfg *Config, msgId uint32, authData []byte) *protocol.Message {
	idi := localIdPayload(cfg, protocol.PayloadTypeAUTH)
	payloads := protocol.NewPayloads()
	payloads.Add(idi)
	payloads.Add(&protocol.AuthPayload{
		PayloadHeader: &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeSA},
		AuthMethod:    authMethodForWire(cfg.LocalAuth.Method),
		Data:          authData,
	})
	payloads.Add(&protocol.SaPayload{
		PayloadHeader: &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeTSi},
		Proposals:     []*protocol.Proposal{ProposalFor(protocol.PROTO_ESP, cfg.ProposalEsp, childSpi())},
	})
	payloads.Add(&protocol.TrafficSelectorPayload{
		PayloadHeader: &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeTSr},
		PayloadKind:   protocol.PayloadTypeTSi,
		Selectors:     cfg.TsI,
	})
	payloads.Add(&protocol.TrafficSelectorPayload{
		PayloadHeader: &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeNone},
		PayloadKind:   protocol.PayloadTypeTSr,
		Selectors:     cfg.TsR,
	})
	return authMessage(rec, msgId, payloads)
}

// authMethodForWire maps the sentinel AuthMethodEAP (never itself a
// wire value) onto the pre-shared-key method octet, since the EAP path
// always finishes with a PSK-shaped AUTH computed from the derived MSK
// (RFC 7296 §2.16).
func authMethodForWire(m protocol.AuthMethod) protocol.AuthMethod {
	if m == protocol.AuthMethodEAP {
		return protocol.AUTH_SHARED_KEY_MESSAGE_INTEGRITY_CODE
	}
	return m
}

func localIdPayload(cfg *Config, next protocol.PayloadType) *protocol.IdPayload {
	return &protocol.IdPayload{
		PayloadHeader: &protocol.PayloadHeader{NextPayload: next},
		PayloadKind:   protocol.PayloadTypeIDi,
		IdType:        cfg.LocalId.IdType,
		Data:          cfg.LocalId.Data,
	}
}

func childSpi() []byte {
	spi := make([]byte, 4)
	_, _ = rand.Read(spi)
	return spi
}

func authMessage(rec *SaRecord, msgId uint32, payloads *protocol.Payloads) *protocol.Message {
	header := &protocol.Header{
		SpiI: rec.SpiI, SpiR: rec.SpiR,
		NextPayload:  protocol.PayloadTypeSK,
		MajorVersion: protocol.IkeMajorVersion,
		ExchangeType: protocol.IKE_AUTH,
		Flags:        initiatorFlagFor(rec),
		MsgId:        msgId,
	}
	return &protocol.Message{Header: header, Payloads: payloads}
}

// AuthResponseContent is whichever of an EAP payload or a final
// AUTH+child-SA answer an IKE_AUTH response carries.
type AuthResponseContent struct {
	Eap      *protocol.EapPayload
	PeerAuth *protocol.AuthPayload
	PeerId   *protocol.IdPayload
	ChildSa  *protocol.SaPayload
	Tsi, Tsr *protocol.TrafficSelectorPayload
}

// ParseAuthResponse picks out AuthResponseContent's fields from msg's
// decoded payloads.
func ParseAuthResponse(payloads *protocol.Payloads) AuthResponseContent {
	var c AuthResponseContent
	if eap, ok := payloads.Get(protocol.PayloadTypeEAP).(*protocol.EapPayload); ok {
		c.Eap = eap
	}
	if auth, ok := payloads.Get(protocol.PayloadTypeAUTH).(*protocol.AuthPayload); ok {
		c.PeerAuth = auth
	}
	if id, ok := payloads.Get(protocol.PayloadTypeIDr).(*protocol.IdPayload); ok {
		c.PeerId = id
	}
	if sa, ok := payloads.Get(protocol.PayloadTypeSA).(*protocol.SaPayload); ok {
		c.ChildSa = sa
	}
	if tsi, ok := payloads.Get(protocol.PayloadTypeTSi).(*protocol.TrafficSelectorPayload); ok {
		c.Tsi = tsi
	}
	if tsr, ok := payloads.Get(protocol.PayloadTypeTSr).(*protocol.TrafficSelectorPayload); ok {
		c.Tsr = tsr
	}
	return c
}

// BuildDeleteIke builds an INFORMATIONAL request carrying an IKE SA
// delete payload (RFC 7296 §3.11 - the SPI lives in the IKE header, not
// the Delete payload body).
func BuildDeleteIke(rec *SaRecord, msgId uint32) *protocol.Message {
	del := &protocol.DeletePayload{
		PayloadHeader: &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeNone},
		ProtocolId:    protocol.PROTO_IKE,
	}
	payloads := protocol.NewPayloads()
	payloads.Add(del)
	header := &protocol.Header{
		SpiI: rec.SpiI, SpiR: rec.SpiR,
		NextPayload:  protocol.PayloadTypeSK,
		MajorVersion: protocol.IkeMajorVersion,
		ExchangeType: protocol.INFORMATIONAL,
		Flags:        initiatorFlagFor(rec),
		MsgId:        msgId,
	}
	return &protocol.Message{Header: header, Payloads: payloads}
}

func initiatorFlagFor(rec *SaRecord) protocol.Flags {
	if rec.IsInitiator {
		return protocol.InitiatorFlag
	}
	return 0
}
