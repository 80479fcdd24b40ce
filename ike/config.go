package ike

import (
	"net"

	"github.com/pkg/errors"

	"github.com/mnsio/ikev2-eap/protocol"
)

// EapSessionKind names which inner EAP method a configured eap_session
// entry drives.
type EapSessionKind int

const (
	EapSim EapSessionKind = iota
	EapAka
	EapAkaPrime
	EapMschapv2
)

// EapSession is one configured inner-method option; several may coexist
// so the responder can pick among them.
type EapSession struct {
	Kind EapSessionKind

	// SIM/AKA/AKA'
	SubscriberId string
	AppType      uint8
	NetworkName  string // AKA' only

	// MSCHAPv2
	Username, Password string
}

// Identity is one side's ID payload content.
type Identity struct {
	IdType protocol.IdType
	Data   []byte
}

// LocalAuth/RemoteAuth are this side's and the peer's auth methods:
// exactly one of Psk, Cert, or Eap is set.
type AuthConfig struct {
	Method protocol.AuthMethod

	Psk []byte

	CertChain [][]byte // DER certificates, leaf first
	PrivKey   interface{}

	Eap []EapSession
}

// Config is the caller-supplied session configuration: identities,
// authentication method, proposals, and traffic selectors for both the
// IKE SA and the child SAs it will negotiate.
type Config struct {
	ServerAddress string

	LocalId, RemoteId Identity
	LocalAuth         AuthConfig
	RemoteAuth        AuthConfig

	ProposalIke protocol.ProposalConfig
	ProposalEsp protocol.ProposalConfig

	TsI, TsR []*protocol.Selector

	IsTransportMode      bool
	ThrottleInitRequests bool

	UdpEncapSocket Conn // optional, for NAT-T
}

func DefaultConfig() *Config {
	return &Config{
		ProposalIke: protocol.IKE_AES_CBC_SHA256_MODP2048,
		ProposalEsp: protocol.ESP_AES_CBC_SHA2_256,
	}
}

// CheckProposal checks whether proposals (decoded from the peer) include
// our configuration for prot.
func (cfg *Config) CheckProposal(prot protocol.ProtocolId, proposals []*protocol.Proposal) error {
	want := cfg.ProposalIke
	if prot == protocol.PROTO_ESP {
		want = cfg.ProposalEsp
	}
	for _, prop := range proposals {
		if prop.ProtocolId != prot {
			continue
		}
		if want.Within(prop.Transforms) {
			return nil
		}
	}
	return errors.New("ike: acceptable proposal is missing")
}

// AddSelector builds and appends a traffic selector pair covering the
// full range of the given networks.
func (cfg *Config) AddSelector(initiator, responder *net.IPNet) {
	cfg.TsI = append(cfg.TsI, protocol.IPNetToSelector(initiator, 0, 0, 65535))
	cfg.TsR = append(cfg.TsR, protocol.IPNetToSelector(responder, 0, 0, 65535))
}
