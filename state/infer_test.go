package state

import (
	"testing"

	"github.com/mnsio/ikev2-eap/protocol"
)

func TestInferTriggerExchangeTypes(t *testing.T) {
	cases := []struct {
		name string
		et   protocol.ExchangeType
		want Trigger
	}{
		{"ike_sa_init", protocol.IKE_SA_INIT, TriggerCreateIke},
		{"ike_auth", protocol.IKE_AUTH, TriggerCreateIke},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := InferTrigger(c.et, protocol.NewPayloads())
			if err != nil {
				t.Fatalf("InferTrigger: %v", err)
			}
			if got != c.want {
				t.Fatalf("InferTrigger(%v) = %s, want %s", c.et, got, c.want)
			}
		})
	}
}

func TestInferTriggerUnknownExchangeType(t *testing.T) {
	if _, err := InferTrigger(protocol.ExchangeType(99), protocol.NewPayloads()); err == nil {
		t.Fatalf("expected an error for an unknown exchange type")
	}
}

func TestInferCreateChildSaDistinguishesRekeyFromCreate(t *testing.T) {
	plain := protocol.NewPayloads()
	if got := inferCreateChildSa(plain); got != TriggerCreateChild {
		t.Fatalf("no notify: got %s, want CreateChild", got)
	}

	rekeyEsp := protocol.NewPayloads()
	rekeyEsp.Add(&protocol.NotifyPayload{
		PayloadHeader:    &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeNone},
		ProtocolId:       protocol.PROTO_ESP,
		NotificationType: protocol.REKEY_SA,
	})
	if got := inferCreateChildSa(rekeyEsp); got != TriggerRekeyChild {
		t.Fatalf("rekey/ESP: got %s, want RekeyChild", got)
	}

	rekeyIke := protocol.NewPayloads()
	rekeyIke.Add(&protocol.NotifyPayload{
		PayloadHeader:    &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeNone},
		ProtocolId:       protocol.PROTO_IKE,
		NotificationType: protocol.REKEY_SA,
	})
	if got := inferCreateChildSa(rekeyIke); got != TriggerRekeyIke {
		t.Fatalf("rekey/IKE: got %s, want RekeyIke", got)
	}
}

func TestInferInformationalIkeDeleteSupersedesChildDelete(t *testing.T) {
	payloads := protocol.NewPayloads()
	payloads.Add(&protocol.DeletePayload{
		PayloadHeader: &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeD},
		ProtocolId:    protocol.PROTO_ESP,
		SpiSize:       4,
		Spis:          [][]byte{{1, 2, 3, 4}},
	})
	payloads.Add(&protocol.DeletePayload{
		PayloadHeader: &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeNone},
		ProtocolId:    protocol.PROTO_IKE,
	})
	if got := inferInformational(payloads); got != TriggerDeleteIke {
		t.Fatalf("got %s, want DeleteIke", got)
	}
}

func TestInferInformationalChildDeleteOnly(t *testing.T) {
	payloads := protocol.NewPayloads()
	payloads.Add(&protocol.DeletePayload{
		PayloadHeader: &protocol.PayloadHeader{NextPayload: protocol.PayloadTypeNone},
		ProtocolId:    protocol.PROTO_ESP,
		SpiSize:       4,
		Spis:          [][]byte{{1, 2, 3, 4}},
	})
	if got := inferInformational(payloads); got != TriggerDeleteChild {
		t.Fatalf("got %s, want DeleteChild", got)
	}
}

func TestInferInformationalNoDeletePayloadIsInfo(t *testing.T) {
	if got := inferInformational(protocol.NewPayloads()); got != TriggerInfo {
		t.Fatalf("got %s, want Info", got)
	}
}
