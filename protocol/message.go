package protocol

import "github.com/go-kit/log"

// Cryptor is the minimal capability Message needs from an SA's keying
// material to frame the encrypted (SK) payload: decrypt-and-verify an
// incoming packet down to its plaintext payload chain, and seal a
// payload chain into a complete, wire-ready encrypted message. Concrete
// implementations live in the crypto package, which owns the per-SA
// keys; protocol only needs the interface to stay decoupled from it.
type Cryptor interface {
	// Open verifies and decrypts raw (the complete incoming message,
	// header through trailing authentication data) and returns the
	// decrypted payload chain that was inside the SK payload.
	Open(raw []byte) (plain []byte, err error)
	// Seal wraps the encrypted form of plain (an already-encoded payload
	// chain whose first payload has type firstPayload) in an SK payload,
	// returning the complete message bytes ready to put on the wire.
	// header.NextPayload is expected to already be PayloadTypeSK; Seal
	// fills in header.MsgLength.
	Seal(header *Header, firstPayload PayloadType, plain []byte) ([]byte, error)
}

// Payloads is an ordered, type-indexed collection of decoded payloads.
type Payloads struct {
	index map[PayloadType]int
	list  []Payload
}

func NewPayloads() *Payloads { return &Payloads{index: make(map[PayloadType]int)} }

func (p *Payloads) Get(t PayloadType) Payload {
	if idx, ok := p.index[t]; ok {
		return p.list[idx]
	}
	return nil
}

func (p *Payloads) All() []Payload { return p.list }

func (p *Payloads) Add(pl Payload) {
	if idx, ok := p.index[pl.Type()]; ok {
		p.list[idx] = pl
		return
	}
	p.list = append(p.list, pl)
	p.index[pl.Type()] = len(p.list) - 1
}

// Message is a full IKE packet: header plus payload chain. Encrypted
// messages keep NextPayload == PayloadTypeSK on the header; Payloads
// holds the chain found inside the SK payload once decrypted.
type Message struct {
	Header   *Header
	Payloads *Payloads
}

func newPayloadByType(t PayloadType, hdr *PayloadHeader) Payload {
	switch t {
	case PayloadTypeSA:
		return &SaPayload{PayloadHeader: hdr}
	case PayloadTypeKE:
		return &KePayload{PayloadHeader: hdr}
	case PayloadTypeIDi:
		return &IdPayload{PayloadHeader: hdr, PayloadKind: PayloadTypeIDi}
	case PayloadTypeIDr:
		return &IdPayload{PayloadHeader: hdr, PayloadKind: PayloadTypeIDr}
	case PayloadTypeCERT:
		return &CertPayload{PayloadHeader: hdr}
	case PayloadTypeCERTREQ:
		return &CertRequestPayload{PayloadHeader: hdr}
	case PayloadTypeAUTH:
		return &AuthPayload{PayloadHeader: hdr}
	case PayloadTypeNonce:
		return &NoncePayload{PayloadHeader: hdr}
	case PayloadTypeN:
		return &NotifyPayload{PayloadHeader: hdr}
	case PayloadTypeD:
		return &DeletePayload{PayloadHeader: hdr}
	case PayloadTypeV:
		return &VendorIdPayload{PayloadHeader: hdr}
	case PayloadTypeTSi:
		return &TrafficSelectorPayload{PayloadHeader: hdr, PayloadKind: PayloadTypeTSi}
	case PayloadTypeTSr:
		return &TrafficSelectorPayload{PayloadHeader: hdr, PayloadKind: PayloadTypeTSr}
	case PayloadTypeCP:
		return &ConfigurationPayload{PayloadHeader: hdr}
	case PayloadTypeEAP:
		return &EapPayload{PayloadHeader: hdr}
	default:
		return nil
	}
}

// DecodeHeaderOnly reads just the fixed header, useful before a Cryptor
// is available to decrypt the rest.
func (m *Message) DecodeHeaderOnly(b []byte) error {
	h, err := DecodeHeader(b, log.NewNopLogger())
	if err != nil {
		return err
	}
	m.Header = h
	return nil
}

// DecodePayloads decodes the payload chain following the header. If the
// header's NextPayload is PayloadTypeSK, cryptor is used to verify and
// decrypt the body first.
func (m *Message) DecodePayloads(raw []byte, cryptor Cryptor) error {
	m.Payloads = NewPayloads()
	if len(raw) < int(m.Header.MsgLength) {
		return ERR_INVALID_SYNTAX
	}
	next := m.Header.NextPayload
	b := raw[IkeHeaderLen:m.Header.MsgLength]
	if next == PayloadTypeSK {
		if cryptor == nil {
			return ERR_INVALID_SYNTAX
		}
		if len(b) < PayloadHeaderLen {
			return ERR_INVALID_SYNTAX
		}
		skHdr, err := decodePayloadHeader(b[:PayloadHeaderLen])
		if err != nil {
			return err
		}
		plain, err := cryptor.Open(raw[:m.Header.MsgLength])
		if err != nil {
			return err
		}
		next = skHdr.NextPayload
		b = plain
	}
	for next != PayloadTypeNone {
		if len(b) < PayloadHeaderLen {
			return ERR_INVALID_SYNTAX
		}
		hdr, err := decodePayloadHeader(b[:PayloadHeaderLen])
		if err != nil {
			return err
		}
		if int(hdr.PayloadLength) > len(b) {
			return ERR_INVALID_SYNTAX
		}
		payload := newPayloadByType(next, hdr)
		if payload == nil {
			if hdr.IsCritical {
				return ERR_UNSUPPORTED_CRITICAL_PAYLOAD
			}
			// skip unknown, non-critical payload
			next = hdr.NextPayload
			b = b[hdr.PayloadLength:]
			continue
		}
		body := b[PayloadHeaderLen:hdr.PayloadLength]
		if err := payload.Decode(body); err != nil {
			return err
		}
		next = hdr.NextPayload
		b = b[hdr.PayloadLength:]
		m.Payloads.Add(payload)
	}
	return nil
}

func encodePayloadChain(p *Payloads) []byte {
	var b []byte
	for _, pl := range p.list {
		body := pl.Encode()
		b = append(b, encodePayloadHeader(pl.NextPayloadType(), uint16(len(body)))...)
		b = append(b, body...)
	}
	return b
}

// Encode serializes the message. If the header's NextPayload is
// PayloadTypeSK the payload chain is encrypted and authenticated via
// cryptor; otherwise payloads are encoded in the clear (as used for
// IKE_SA_INIT).
func (m *Message) Encode(cryptor Cryptor) ([]byte, error) {
	if m.Header.NextPayload == PayloadTypeSK {
		if cryptor == nil {
			return nil, ERR_INVALID_SYNTAX
		}
		first := PayloadTypeNone
		if all := m.Payloads.All(); len(all) > 0 {
			first = all[0].Type()
		}
		return cryptor.Seal(m.Header, first, encodePayloadChain(m.Payloads))
	}
	body := encodePayloadChain(m.Payloads)
	m.Header.MsgLength = uint32(len(body) + IkeHeaderLen)
	return append(m.Header.Encode(), body...), nil
}
