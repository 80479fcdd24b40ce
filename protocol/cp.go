package protocol

import "encoding/binary"

type ConfigType uint8

const (
	CFG_REQUEST ConfigType = 1
	CFG_REPLY   ConfigType = 2
	CFG_SET     ConfigType = 3
	CFG_ACK     ConfigType = 4
)

type ConfigAttributeType uint16

const (
	INTERNAL_IP4_ADDRESS ConfigAttributeType = 1
	INTERNAL_IP4_NETMASK ConfigAttributeType = 2
	INTERNAL_IP4_DNS     ConfigAttributeType = 3
	INTERNAL_IP6_ADDRESS ConfigAttributeType = 8
	INTERNAL_IP6_DNS     ConfigAttributeType = 10
)

// ConfigAttribute is one TLV within a Configuration payload (RFC 7296
// §3.15.1); Value is nil for a request attribute (no value carried) and
// populated for a reply.
type ConfigAttribute struct {
	Type  ConfigAttributeType
	Value []byte
}

func decodeConfigAttribute(b []byte) (attr *ConfigAttribute, used int, err error) {
	if len(b) < 4 {
		return nil, 0, ERR_INVALID_SYNTAX
	}
	t := ConfigAttributeType(binary.BigEndian.Uint16(b[0:2]) & 0x7fff)
	vlen := int(binary.BigEndian.Uint16(b[2:4]))
	if 4+vlen > len(b) {
		return nil, 0, ERR_INVALID_SYNTAX
	}
	return &ConfigAttribute{Type: t, Value: append([]byte{}, b[4:4+vlen]...)}, 4 + vlen, nil
}

func encodeConfigAttribute(a *ConfigAttribute) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b[0:2], uint16(a.Type))
	binary.BigEndian.PutUint16(b[2:4], uint16(len(a.Value)))
	return append(b, a.Value...)
}

// ConfigurationPayload (CP) requests or carries internal-network
// configuration such as the assigned inner IP address (RFC 7296 §3.15).
type ConfigurationPayload struct {
	*PayloadHeader
	ConfigType ConfigType
	Attributes []*ConfigAttribute
}

func (s *ConfigurationPayload) Type() PayloadType { return PayloadTypeCP }

func (s *ConfigurationPayload) Encode() []byte {
	b := []byte{uint8(s.ConfigType), 0, 0, 0}
	for _, a := range s.Attributes {
		b = append(b, encodeConfigAttribute(a)...)
	}
	return b
}

func (s *ConfigurationPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ERR_INVALID_SYNTAX
	}
	s.ConfigType = ConfigType(b[0])
	b = b[4:]
	for len(b) > 0 {
		attr, used, err := decodeConfigAttribute(b)
		if err != nil {
			return err
		}
		s.Attributes = append(s.Attributes, attr)
		b = b[used:]
	}
	return nil
}
