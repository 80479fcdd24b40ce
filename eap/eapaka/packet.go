package eapaka

import "fmt"

// Packet is the EAP-SIM/AKA/AKA' payload carried inside an eap.Message's
// TypeData: the method subtype plus its attribute list. The outer EAP
// Code/Identifier/Type framing is handled by package eap; Packet only
// covers what comes after it.
type Packet struct {
	Subtype    uint8
	Attributes []Attribute
}

// Find returns the first attribute of type t, or nil if none is present.
func (p *Packet) Find(t AttributeType) Attribute {
	for _, a := range p.Attributes {
		if a.Type() == t {
			return a
		}
	}
	return nil
}

// Count returns how many attributes of type t are present.
func (p *Packet) Count(t AttributeType) int {
	n := 0
	for _, a := range p.Attributes {
		if a.Type() == t {
			n++
		}
	}
	return n
}

// Marshal encodes the subtype header (subtype + 2 reserved bytes) and
// every attribute in order.
func (p *Packet) Marshal() ([]byte, error) {
	buf := []byte{p.Subtype, 0, 0}
	for _, a := range p.Attributes {
		b, err := a.Marshal()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

// ParsePacket decodes an EAP-SIM/AKA/AKA' TypeData payload. A
// non-skippable attribute this codec does not recognise fails the whole
// packet with ErrUnsupportedAttribute; an unrecognised skippable one is
// kept as a GenericAttribute so its bytes survive a re-encode.
func ParsePacket(data []byte) (*Packet, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("eapaka: packet shorter than subtype header")
	}
	p := &Packet{Subtype: data[0]}
	attrData := data[3:]
	offset := 0
	for offset < len(attrData) {
		if offset+2 > len(attrData) {
			return nil, fmt.Errorf("eapaka: attribute header truncated")
		}
		t := AttributeType(attrData[offset])
		lenWords := int(attrData[offset+1])
		if lenWords == 0 {
			return nil, fmt.Errorf("eapaka: attribute %d has zero length", t)
		}
		attrLen := lenWords * 4
		if offset+attrLen > len(attrData) {
			return nil, fmt.Errorf("eapaka: attribute %d length overflow", t)
		}
		val := attrData[offset+2 : offset+attrLen]
		attr, err := decodeAttribute(t, val)
		if err != nil {
			return nil, err
		}
		p.Attributes = append(p.Attributes, attr)
		offset += attrLen
	}
	return p, nil
}
