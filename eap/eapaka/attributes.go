// Package eapaka implements the EAP-SIM (RFC 4186), EAP-AKA (RFC 4187)
// and EAP-AKA' (RFC 5448) inner methods: the shared attribute/packet
// codec, key derivation, and the three method state machines. Codec
// generalized from the oyaguma3-go-eapaka reference package: the same
// TLV attribute shape and Attribute{Type/Marshal/Unmarshal} contract,
// extended with the validation invariants the session SM has to enforce
// itself.
package eapaka

import (
	"encoding/binary"
	"fmt"
)

// EAP Codes/Types/Subtypes (RFC 3748 §4, RFC 4187 §11).
const (
	CodeRequest  uint8 = 1
	CodeResponse uint8 = 2
	CodeSuccess  uint8 = 3
	CodeFailure  uint8 = 4

	TypeSIM      uint8 = 18
	TypeAKA      uint8 = 23
	TypeAKAPrime uint8 = 50

	SubtypeChallenge              uint8 = 1
	SubtypeAuthenticationReject   uint8 = 2
	SubtypeSynchronizationFailure uint8 = 4
	SubtypeIdentity               uint8 = 5
	SubtypeNotification           uint8 = 12
	SubtypeClientError            uint8 = 14
	SubtypeStart                  uint8 = 10 // EAP-SIM only (RFC 4186 §11)
)

type AttributeType uint8

const (
	AT_RAND              AttributeType = 1
	AT_AUTN              AttributeType = 2
	AT_RES               AttributeType = 3
	AT_AUTS              AttributeType = 4
	AT_PADDING           AttributeType = 6
	AT_NONCE_MT          AttributeType = 7
	AT_PERMANENT_ID_REQ  AttributeType = 10
	AT_MAC               AttributeType = 11
	AT_NOTIFICATION      AttributeType = 12
	AT_ANY_ID_REQ        AttributeType = 13
	AT_IDENTITY          AttributeType = 14
	AT_VERSION_LIST      AttributeType = 15
	AT_SELECTED_VERSION  AttributeType = 16
	AT_FULLAUTH_ID_REQ   AttributeType = 17
	AT_COUNTER           AttributeType = 19
	AT_COUNTER_TOO_SMALL AttributeType = 20
	AT_NONCE_S           AttributeType = 21
	AT_CLIENT_ERROR_CODE AttributeType = 22
	AT_KDF_INPUT         AttributeType = 23
	AT_KDF               AttributeType = 24
	AT_RESULT_IND        AttributeType = 135
	AT_CHECKCODE         AttributeType = 134

	clientErrorUnableToProcess uint16 = 0
)

func (t AttributeType) skippable() bool { return t >= 128 }

// Attribute is the shared TLV capability every attribute implements.
type Attribute interface {
	Type() AttributeType
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// marshalAttribute pads the type+value pair to the mandatory 4-byte
// alignment and stamps the length-in-words header byte.
func marshalAttribute(t AttributeType, data []byte) ([]byte, error) {
	total := 2 + len(data)
	if pad := total % 4; pad != 0 {
		total += 4 - pad
	}
	if total > 255*4 {
		return nil, fmt.Errorf("eapaka: attribute %d too long", t)
	}
	b := make([]byte, total)
	b[0] = uint8(t)
	b[1] = uint8(total / 4)
	copy(b[2:], data)
	return b, nil
}

// reserved16 is the shape AT_AUTN, AT_MAC and AT_NONCE_MT share: 2
// reserved octets followed by a fixed 16-byte value.
type reserved16 struct {
	t AttributeType
	v []byte
}

func (a *reserved16) Type() AttributeType { return a.t }
func (a *reserved16) Marshal() ([]byte, error) {
	if len(a.v) != 16 {
		return nil, fmt.Errorf("eapaka: attribute %d must be 16 bytes", a.t)
	}
	buf := make([]byte, 18)
	copy(buf[2:], a.v)
	return marshalAttribute(a.t, buf)
}
func (a *reserved16) Unmarshal(data []byte) error {
	if len(data) < 18 {
		return fmt.Errorf("eapaka: attribute %d too short", a.t)
	}
	a.v = append([]byte{}, data[2:18]...)
	return nil
}

func AtAutn(v []byte) Attribute { return &reserved16{t: AT_AUTN, v: v} }

// AtAutnValue extracts the raw 16-byte AUTN back out.
func AtAutnValue(a Attribute) []byte { return a.(*reserved16).v }

// AtRandAttr is AT_RAND: 2 reserved octets followed by one (EAP-AKA/AKA')
// or two-to-three (EAP-SIM) concatenated 16-byte RAND challenges (RFC
// 4186 §10.2, RFC 4187 §10.6).
type AtRandAttr struct{ Rands [][]byte }

func (a *AtRandAttr) Type() AttributeType { return AT_RAND }
func (a *AtRandAttr) Marshal() ([]byte, error) {
	if len(a.Rands) == 0 {
		return nil, fmt.Errorf("eapaka: AT_RAND needs at least one RAND")
	}
	buf := make([]byte, 2)
	for _, r := range a.Rands {
		if len(r) != 16 {
			return nil, fmt.Errorf("eapaka: AT_RAND entries must be 16 bytes")
		}
		buf = append(buf, r...)
	}
	return marshalAttribute(AT_RAND, buf)
}
func (a *AtRandAttr) Unmarshal(data []byte) error {
	if len(data) < 2 || (len(data)-2)%16 != 0 || len(data) == 2 {
		return fmt.Errorf("eapaka: AT_RAND malformed")
	}
	rest := data[2:]
	for len(rest) > 0 {
		a.Rands = append(a.Rands, append([]byte{}, rest[:16]...))
		rest = rest[16:]
	}
	return nil
}

// AtAutsAttr carries AT_AUTS, which is fixed at 14 bytes (RFC 4187 §10.9), not 16.
type AtAutsAttr struct{ Auts []byte }

func (a *AtAutsAttr) Type() AttributeType { return AT_AUTS }
func (a *AtAutsAttr) Marshal() ([]byte, error) {
	if len(a.Auts) != 14 {
		return nil, fmt.Errorf("eapaka: AT_AUTS must be 14 bytes")
	}
	return marshalAttribute(AT_AUTS, a.Auts)
}
func (a *AtAutsAttr) Unmarshal(data []byte) error {
	if len(data) < 14 {
		return fmt.Errorf("eapaka: AT_AUTS too short")
	}
	a.Auts = append([]byte{}, data[:14]...)
	return nil
}

type AtResAttr struct{ Res []byte }

func (a *AtResAttr) Type() AttributeType { return AT_RES }
func (a *AtResAttr) Marshal() ([]byte, error) {
	buf := make([]byte, 2+len(a.Res))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(a.Res)*8))
	copy(buf[2:], a.Res)
	return marshalAttribute(AT_RES, buf)
}
func (a *AtResAttr) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("eapaka: AT_RES too short")
	}
	bits := binary.BigEndian.Uint16(data[0:2])
	n := int((bits + 7) / 8)
	if len(data) < 2+n {
		return fmt.Errorf("eapaka: AT_RES length mismatch")
	}
	a.Res = append([]byte{}, data[2:2+n]...)
	return nil
}

type AtMacAttr struct{ Mac []byte }

func (a *AtMacAttr) Type() AttributeType { return AT_MAC }
func (a *AtMacAttr) Marshal() ([]byte, error) {
	buf := make([]byte, 18)
	if len(a.Mac) == 16 {
		copy(buf[2:], a.Mac)
	} else if len(a.Mac) != 0 {
		return nil, fmt.Errorf("eapaka: AT_MAC must be 16 bytes")
	}
	return marshalAttribute(AT_MAC, buf)
}
func (a *AtMacAttr) Unmarshal(data []byte) error {
	if len(data) < 18 {
		return fmt.Errorf("eapaka: AT_MAC too short")
	}
	a.Mac = append([]byte{}, data[2:18]...)
	return nil
}

type AtIdentityAttr struct{ Identity string }

func (a *AtIdentityAttr) Type() AttributeType { return AT_IDENTITY }
func (a *AtIdentityAttr) Marshal() ([]byte, error) {
	idb := []byte(a.Identity)
	buf := make([]byte, 2+len(idb))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(idb)))
	copy(buf[2:], idb)
	return marshalAttribute(AT_IDENTITY, buf)
}
func (a *AtIdentityAttr) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("eapaka: AT_IDENTITY too short")
	}
	n := int(binary.BigEndian.Uint16(data[0:2]))
	if len(data) < 2+n {
		return fmt.Errorf("eapaka: AT_IDENTITY length mismatch")
	}
	a.Identity = string(data[2 : 2+n])
	return nil
}

type reserved2 struct{ t AttributeType }

func (a *reserved2) Type() AttributeType        { return a.t }
func (a *reserved2) Marshal() ([]byte, error)   { return marshalAttribute(a.t, make([]byte, 2)) }
func (a *reserved2) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("eapaka: attribute %d too short", a.t)
	}
	return nil
}

func AtPermanentIdReq() Attribute { return &reserved2{AT_PERMANENT_ID_REQ} }
func AtAnyIdReq() Attribute       { return &reserved2{AT_ANY_ID_REQ} }
func AtFullauthIdReq() Attribute  { return &reserved2{AT_FULLAUTH_ID_REQ} }
func AtResultInd() Attribute      { return &reserved2{AT_RESULT_IND} }

type AtVersionListAttr struct{ Versions []uint16 }

func (a *AtVersionListAttr) Type() AttributeType { return AT_VERSION_LIST }
func (a *AtVersionListAttr) Marshal() ([]byte, error) {
	n := len(a.Versions) * 2
	buf := make([]byte, 2+n)
	binary.BigEndian.PutUint16(buf[0:2], uint16(n))
	for i, v := range a.Versions {
		binary.BigEndian.PutUint16(buf[2+i*2:], v)
	}
	return marshalAttribute(AT_VERSION_LIST, buf)
}
func (a *AtVersionListAttr) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("eapaka: AT_VERSION_LIST too short")
	}
	n := int(binary.BigEndian.Uint16(data[0:2]))
	if n%2 != 0 {
		return fmt.Errorf("eapaka: AT_VERSION_LIST inner length must be even")
	}
	if len(data) < 2+n {
		return fmt.Errorf("eapaka: AT_VERSION_LIST length mismatch")
	}
	for i := 0; i < n/2; i++ {
		a.Versions = append(a.Versions, binary.BigEndian.Uint16(data[2+i*2:4+i*2]))
	}
	return nil
}

type AtSelectedVersionAttr struct{ Version uint16 }

func (a *AtSelectedVersionAttr) Type() AttributeType { return AT_SELECTED_VERSION }
func (a *AtSelectedVersionAttr) Marshal() ([]byte, error) {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, a.Version)
	return marshalAttribute(AT_SELECTED_VERSION, buf)
}
func (a *AtSelectedVersionAttr) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("eapaka: AT_SELECTED_VERSION too short")
	}
	a.Version = binary.BigEndian.Uint16(data[:2])
	return nil
}

type AtNonceMtAttr struct{ NonceMt []byte }

func (a *AtNonceMtAttr) Type() AttributeType { return AT_NONCE_MT }
func (a *AtNonceMtAttr) Marshal() ([]byte, error) {
	if len(a.NonceMt) != 16 {
		return nil, fmt.Errorf("eapaka: AT_NONCE_MT must be 16 bytes")
	}
	buf := make([]byte, 18)
	copy(buf[2:], a.NonceMt)
	return marshalAttribute(AT_NONCE_MT, buf)
}
func (a *AtNonceMtAttr) Unmarshal(data []byte) error {
	if len(data) < 18 {
		return fmt.Errorf("eapaka: AT_NONCE_MT too short")
	}
	a.NonceMt = append([]byte{}, data[2:18]...)
	return nil
}

type AtNotificationAttr struct {
	S, P bool
	Code uint16
}

func (a *AtNotificationAttr) Type() AttributeType { return AT_NOTIFICATION }
func (a *AtNotificationAttr) Marshal() ([]byte, error) {
	val := a.Code & 0x3fff
	if a.S {
		val |= 0x8000
	}
	if a.P {
		val |= 0x4000
	}
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, val)
	return marshalAttribute(AT_NOTIFICATION, buf)
}
func (a *AtNotificationAttr) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("eapaka: AT_NOTIFICATION too short")
	}
	val := binary.BigEndian.Uint16(data[:2])
	a.S = val&0x8000 != 0
	a.P = val&0x4000 != 0
	a.Code = val & 0x3fff
	return nil
}

type AtPaddingAttr struct{ Length int }

func (a *AtPaddingAttr) Type() AttributeType { return AT_PADDING }
func (a *AtPaddingAttr) Marshal() ([]byte, error) {
	return marshalAttribute(AT_PADDING, make([]byte, a.Length))
}
func (a *AtPaddingAttr) Unmarshal(data []byte) error {
	for _, b := range data {
		if b != 0 {
			return fmt.Errorf("eapaka: AT_PADDING contains non-zero byte")
		}
	}
	a.Length = len(data)
	return nil
}

type AtClientErrorCodeAttr struct{ Code uint16 }

func (a *AtClientErrorCodeAttr) Type() AttributeType { return AT_CLIENT_ERROR_CODE }
func (a *AtClientErrorCodeAttr) Marshal() ([]byte, error) {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, a.Code)
	return marshalAttribute(AT_CLIENT_ERROR_CODE, buf)
}
func (a *AtClientErrorCodeAttr) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("eapaka: AT_CLIENT_ERROR_CODE too short")
	}
	a.Code = binary.BigEndian.Uint16(data[:2])
	return nil
}

func UnableToProcessError() *AtClientErrorCodeAttr {
	return &AtClientErrorCodeAttr{Code: clientErrorUnableToProcess}
}

type AtKdfInputAttr struct{ NetworkName string }

func (a *AtKdfInputAttr) Type() AttributeType { return AT_KDF_INPUT }
func (a *AtKdfInputAttr) Marshal() ([]byte, error) {
	nb := []byte(a.NetworkName)
	buf := make([]byte, 2+len(nb))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(nb)))
	copy(buf[2:], nb)
	return marshalAttribute(AT_KDF_INPUT, buf)
}
func (a *AtKdfInputAttr) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("eapaka: AT_KDF_INPUT too short")
	}
	n := int(binary.BigEndian.Uint16(data[0:2]))
	if len(data) < 2+n {
		return fmt.Errorf("eapaka: AT_KDF_INPUT length mismatch")
	}
	a.NetworkName = string(data[2 : 2+n])
	return nil
}

type AtKdfAttr struct{ Kdf uint16 }

func (a *AtKdfAttr) Type() AttributeType { return AT_KDF }
func (a *AtKdfAttr) Marshal() ([]byte, error) {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, a.Kdf)
	return marshalAttribute(AT_KDF, buf)
}
func (a *AtKdfAttr) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("eapaka: AT_KDF too short")
	}
	a.Kdf = binary.BigEndian.Uint16(data[:2])
	return nil
}

// GenericAttribute preserves an unrecognised skippable attribute's raw
// value so it can still be re-encoded unchanged.
type GenericAttribute struct {
	AttrType AttributeType
	Value    []byte
}

func (a *GenericAttribute) Type() AttributeType { return a.AttrType }
func (a *GenericAttribute) Marshal() ([]byte, error) {
	return marshalAttribute(a.AttrType, a.Value)
}
func (a *GenericAttribute) Unmarshal(data []byte) error {
	a.Value = append([]byte{}, data...)
	return nil
}

// ErrUnsupportedAttribute is returned decoding a non-skippable attribute
// (type < 128) this codec has no decoder for.
var ErrUnsupportedAttribute = fmt.Errorf("eapaka: unsupported non-skippable attribute")

func decodeAttribute(t AttributeType, data []byte) (Attribute, error) {
	var attr Attribute
	switch t {
	case AT_RAND:
		attr = &AtRandAttr{}
	case AT_AUTN:
		attr = &reserved16{t: AT_AUTN}
	case AT_RES:
		attr = &AtResAttr{}
	case AT_AUTS:
		attr = &AtAutsAttr{}
	case AT_MAC:
		attr = &AtMacAttr{}
	case AT_IDENTITY:
		attr = &AtIdentityAttr{}
	case AT_PERMANENT_ID_REQ:
		attr = &reserved2{AT_PERMANENT_ID_REQ}
	case AT_ANY_ID_REQ:
		attr = &reserved2{AT_ANY_ID_REQ}
	case AT_FULLAUTH_ID_REQ:
		attr = &reserved2{AT_FULLAUTH_ID_REQ}
	case AT_RESULT_IND:
		attr = &reserved2{AT_RESULT_IND}
	case AT_VERSION_LIST:
		attr = &AtVersionListAttr{}
	case AT_SELECTED_VERSION:
		attr = &AtSelectedVersionAttr{}
	case AT_NONCE_MT:
		attr = &AtNonceMtAttr{}
	case AT_NOTIFICATION:
		attr = &AtNotificationAttr{}
	case AT_PADDING:
		attr = &AtPaddingAttr{}
	case AT_CLIENT_ERROR_CODE:
		attr = &AtClientErrorCodeAttr{}
	case AT_KDF_INPUT:
		attr = &AtKdfInputAttr{}
	case AT_KDF:
		attr = &AtKdfAttr{}
	default:
		if t.skippable() {
			attr = &GenericAttribute{AttrType: t}
		} else {
			return nil, ErrUnsupportedAttribute
		}
	}
	if err := attr.Unmarshal(data); err != nil {
		return nil, err
	}
	return attr, nil
}
