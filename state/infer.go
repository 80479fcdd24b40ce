package state

import (
	"fmt"

	"github.com/mnsio/ikev2-eap/protocol"
)

// InferTrigger implements exchange-subtype inference: given
// an inbound request's exchange type and decoded payloads, decide which
// Trigger it represents. Only meaningful for requests; responses are
// matched against the pending local request instead (see
// TriggerLocalResponseReceived).
func InferTrigger(exchangeType protocol.ExchangeType, payloads *protocol.Payloads) (Trigger, error) {
	switch exchangeType {
	case protocol.IKE_SA_INIT:
		return TriggerCreateIke, nil
	case protocol.IKE_AUTH:
		return TriggerCreateIke, nil
	case protocol.CREATE_CHILD_SA:
		return inferCreateChildSa(payloads), nil
	case protocol.INFORMATIONAL:
		return inferInformational(payloads), nil
	default:
		return 0, fmt.Errorf("state: unknown exchange type %s", exchangeType)
	}
}

func inferCreateChildSa(payloads *protocol.Payloads) Trigger {
	n, ok := payloads.Get(protocol.PayloadTypeN).(*protocol.NotifyPayload)
	if !ok || n.NotificationType != protocol.REKEY_SA {
		return TriggerCreateChild
	}
	if n.ProtocolId == protocol.PROTO_ESP {
		return TriggerRekeyChild
	}
	return TriggerRekeyIke
}

func inferInformational(payloads *protocol.Payloads) Trigger {
	var sawChildDelete bool
	for _, p := range payloads.All() {
		d, ok := p.(*protocol.DeletePayload)
		if !ok {
			continue
		}
		if d.ProtocolId == protocol.PROTO_IKE {
			// an IKE-SA delete supersedes any co-resident child deletes
			// carried in the same message
			return TriggerDeleteIke
		}
		sawChildDelete = true
	}
	if sawChildDelete {
		return TriggerDeleteChild
	}
	return TriggerInfo
}
