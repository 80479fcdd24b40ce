package protocol

import (
	"encoding/binary"
	"net"
)

type SelectorType uint8

const (
	TS_IPV4_ADDR_RANGE SelectorType = 7
	TS_IPV6_ADDR_RANGE SelectorType = 8
)

// Selector is one traffic selector entry: an IP protocol, port range,
// and address range.
type Selector struct {
	Type     SelectorType
	IpProto  uint8
	StartPort, EndPort uint16
	StartAddr, EndAddr net.IP
}

func addrLen(t SelectorType) int {
	if t == TS_IPV6_ADDR_RANGE {
		return 16
	}
	return 4
}

func decodeSelector(b []byte) (sel *Selector, used int, err error) {
	if len(b) < 8 {
		return nil, 0, ERR_INVALID_SYNTAX
	}
	sel = &Selector{Type: SelectorType(b[0]), IpProto: b[1]}
	selLen := int(binary.BigEndian.Uint16(b[2:4]))
	if selLen > len(b) {
		return nil, 0, ERR_INVALID_SYNTAX
	}
	sel.StartPort = binary.BigEndian.Uint16(b[4:6])
	sel.EndPort = binary.BigEndian.Uint16(b[6:8])
	al := addrLen(sel.Type)
	if 8+2*al > selLen {
		return nil, 0, ERR_INVALID_SYNTAX
	}
	sel.StartAddr = append(net.IP{}, b[8:8+al]...)
	sel.EndAddr = append(net.IP{}, b[8+al:8+2*al]...)
	return sel, selLen, nil
}

func encodeSelector(sel *Selector) []byte {
	al := addrLen(sel.Type)
	b := make([]byte, 8+2*al)
	b[0] = uint8(sel.Type)
	b[1] = sel.IpProto
	binary.BigEndian.PutUint16(b[4:6], sel.StartPort)
	binary.BigEndian.PutUint16(b[6:8], sel.EndPort)
	copy(b[8:8+al], sel.StartAddr.To16())
	if al == 4 {
		copy(b[8:8+al], sel.StartAddr.To4())
		copy(b[8+al:8+2*al], sel.EndAddr.To4())
	} else {
		copy(b[8+al:8+2*al], sel.EndAddr.To16())
	}
	binary.BigEndian.PutUint16(b[2:4], uint16(len(b)))
	return b
}

// IPNetToSelector builds a Selector covering the full range of a CIDR
// block, for the common case of a host-route or subnet policy.
func IPNetToSelector(n *net.IPNet, proto uint8, startPort, endPort uint16) *Selector {
	ip4 := n.IP.To4()
	t := TS_IPV4_ADDR_RANGE
	if ip4 == nil {
		t = TS_IPV6_ADDR_RANGE
	} else {
		n.IP = ip4
	}
	first := n.IP.Mask(n.Mask)
	last := make(net.IP, len(first))
	for i := range first {
		last[i] = first[i] | ^n.Mask[i]
	}
	return &Selector{Type: t, IpProto: proto, StartPort: startPort, EndPort: endPort, StartAddr: first, EndAddr: last}
}

// TrafficSelectorPayload carries TSi or TSr, distinguished by
// PayloadKind since both use the same wire shape.
type TrafficSelectorPayload struct {
	*PayloadHeader
	PayloadKind PayloadType // PayloadTypeTSi or PayloadTypeTSr
	Selectors   []*Selector
}

func (s *TrafficSelectorPayload) Type() PayloadType { return s.PayloadKind }

func (s *TrafficSelectorPayload) Encode() []byte {
	b := []byte{uint8(len(s.Selectors)), 0, 0, 0}
	for _, sel := range s.Selectors {
		b = append(b, encodeSelector(sel)...)
	}
	return b
}

func (s *TrafficSelectorPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ERR_INVALID_SYNTAX
	}
	numSel := int(b[0])
	b = b[4:]
	for len(b) > 0 {
		sel, used, err := decodeSelector(b)
		if err != nil {
			return err
		}
		s.Selectors = append(s.Selectors, sel)
		b = b[used:]
	}
	if len(s.Selectors) != numSel {
		return ERR_INVALID_SYNTAX
	}
	return nil
}
