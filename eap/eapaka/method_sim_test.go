package eapaka

import (
	"testing"

	"github.com/mnsio/ikev2-eap/eap"
	"github.com/mnsio/ikev2-eap/platform"
)

type fakeSubscriber struct {
	id  string
	err error
}

func (f fakeSubscriber) SubscriberId() (string, error) { return f.id, f.err }

type fakeSim struct{}

func (fakeSim) AuthenticateSim(rands [][16]byte) ([]platform.SimVector, error) { return nil, nil }
func (fakeSim) AuthenticateAka(rand, autn []byte) (*platform.AkaVector, error) { return nil, nil }

type fakeRand struct{}

func (fakeRand) Read(b []byte) (int, error) {
	for i := range b {
		b[i] = byte(i)
	}
	return len(b), nil
}

func TestSimMethodStartWithoutIdentityIsUnavailable(t *testing.T) {
	m := NewSimMethod(fakeSubscriber{err: platform.ErrUnavailable}, fakeSim{}, fakeRand{})
	start := &Packet{Subtype: SubtypeStart, Attributes: []Attribute{&AtVersionListAttr{Versions: []uint16{1}}}}
	wire, err := start.Marshal()
	if err != nil {
		t.Fatalf("marshal Start: %v", err)
	}
	out := m.HandleRequest(1, wire)
	if out.Err != platform.ErrUnavailable {
		t.Fatalf("err = %v, want platform.ErrUnavailable", out.Err)
	}
}

func TestSimMethodStartWithMacIsClientError(t *testing.T) {
	m := NewSimMethod(fakeSubscriber{id: "1234567890"}, fakeSim{}, fakeRand{})
	start := &Packet{Subtype: SubtypeStart, Attributes: []Attribute{
		&AtVersionListAttr{Versions: []uint16{1}},
		&AtMacAttr{Mac: make([]byte, 16)},
	}}
	wire, err := start.Marshal()
	if err != nil {
		t.Fatalf("marshal Start: %v", err)
	}
	out := m.HandleRequest(1, wire)
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	resp, err := ParsePacket(out.Response)
	if err != nil {
		t.Fatalf("parsing reply: %v", err)
	}
	if resp.Subtype != SubtypeClientError {
		t.Fatalf("Subtype = %d, want SubtypeClientError", resp.Subtype)
	}
}

func TestSimMethodStartWithoutVersionListIsClientError(t *testing.T) {
	m := NewSimMethod(fakeSubscriber{id: "1234567890"}, fakeSim{}, fakeRand{})
	start := &Packet{Subtype: SubtypeStart}
	wire, err := start.Marshal()
	if err != nil {
		t.Fatalf("marshal Start: %v", err)
	}
	out := m.HandleRequest(1, wire)
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	resp, err := ParsePacket(out.Response)
	if err != nil {
		t.Fatalf("parsing reply: %v", err)
	}
	if resp.Subtype != SubtypeClientError {
		t.Fatalf("Subtype = %d, want SubtypeClientError", resp.Subtype)
	}
}

func TestSimMethodStartAcceptsSingleIdentityRequest(t *testing.T) {
	m := NewSimMethod(fakeSubscriber{id: "1234567890"}, fakeSim{}, fakeRand{})
	start := &Packet{Subtype: SubtypeStart, Attributes: []Attribute{
		&AtVersionListAttr{Versions: []uint16{1}},
		AtPermanentIdReq(),
	}}
	wire, err := start.Marshal()
	if err != nil {
		t.Fatalf("marshal Start: %v", err)
	}
	out := m.HandleRequest(1, wire)
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	resp, err := ParsePacket(out.Response)
	if err != nil {
		t.Fatalf("parsing reply: %v", err)
	}
	if resp.Subtype != SubtypeStart {
		t.Fatalf("Subtype = %d, want SubtypeStart", resp.Subtype)
	}
	if resp.Find(AT_NONCE_MT) == nil {
		t.Fatalf("reply missing AT_NONCE_MT")
	}
	if id, ok := resp.Find(AT_IDENTITY).(*AtIdentityAttr); !ok || id.Identity != "1234567890" {
		t.Fatalf("reply missing or wrong AT_IDENTITY: %+v", resp.Find(AT_IDENTITY))
	}
}

func TestSimMethodTypeIsSIM(t *testing.T) {
	m := NewSimMethod(fakeSubscriber{}, fakeSim{}, fakeRand{})
	if m.Type() != eap.TypeSIM {
		t.Fatalf("Type() = %v, want TypeSIM", m.Type())
	}
}
