package ike

import (
	"crypto/subtle"
	"fmt"
	"net"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/mnsio/ikev2-eap/crypto"
	"github.com/mnsio/ikev2-eap/protocol"
	"github.com/mnsio/ikev2-eap/state"
)

// Retransmission timing: exponential backoff starting at
// 500ms, doubling each attempt, giving up after retransmitCap attempts
// with no reply.
const (
	retransmitInitial = 500 * time.Millisecond
	retransmitFactor  = 2
	retransmitCap     = 10
)

// outstanding tracks the one local request a Session may have in flight
// at a time (RFC 7296 §2.1's single-request-per-direction window).
type outstanding struct {
	msgId    uint32
	wire     []byte
	attempts int
	next     time.Duration
	timer    *time.Timer
}

// Session drives one IKE SA's exchanges end to end: it owns the
// transport, the SA record, and the state machine cursor, and is
// responsible for retransmission and message-ID bookkeeping.
type Session struct {
	cfg        *Config
	conn       Conn
	remoteAddr net.Addr
	logger     log.Logger

	rec     *SaRecord
	machine *state.Machine
	auth    Authenticator

	localSpi protocol.Spi

	// awaitingEap is true while an embedded EAP conversation is still
	// exchanging IKE_AUTH request/response rounds: each round is its own
	// full IKE message exchange, so the state machine does not advance
	// to Idle until the peer's final AUTH-bearing response arrives.
	awaitingEap bool
	eapMsk      []byte

	out     *outstanding
	closing bool

	recvCh chan inboundPacket
	done   chan struct{}
}

type inboundPacket struct {
	raw  []byte
	from net.Addr
}

// NewSession allocates a local IKE SPI and builds a Session ready to
// start IKE_SA_INIT as the initiator. auth drives IKE_AUTH's
// authentication method once the key schedule is available.
func NewSession(cfg *Config, conn Conn, remoteAddr net.Addr, logger log.Logger, auth Authenticator) (*Session, error) {
	suite, err := crypto.NewCipherSuite(cfg.ProposalIke.AsList())
	if err != nil {
		return nil, err
	}
	rec, err := NewSaRecord(suite)
	if err != nil {
		return nil, err
	}
	localSpi, err := globalSpiRegistry.Allocate(remoteAddr)
	if err != nil {
		return nil, errors.Wrap(err, "allocate local spi")
	}
	return &Session{
		cfg:        cfg,
		conn:       conn,
		remoteAddr: remoteAddr,
		logger:     logger,
		rec:        rec,
		machine:    state.New(),
		auth:       auth,
		localSpi:   localSpi,
		recvCh:     make(chan inboundPacket, 8),
		done:       make(chan struct{}),
	}, nil
}

// Deliver is called by the transport read loop for every datagram
// addressed to this session.
func (s *Session) Deliver(raw []byte, from net.Addr) {
	select {
	case s.recvCh <- inboundPacket{raw: raw, from: from}:
	case <-s.done:
	}
}

// Start kicks off IKE_SA_INIT as the initiator.
func (s *Session) Start() error {
	if _, err := s.machine.Fire(state.Local, state.TriggerCreateIke); err != nil {
		return err
	}
	msg, err := BuildInitRequest(s.rec, s.cfg, s.localSpi)
	if err != nil {
		return err
	}
	msg.Header.MsgId = s.rec.NextMessageId()
	return s.sendRequest(msg)
}

// Run is the session's event loop: it multiplexes inbound datagrams and
// the retransmission timer until Close or a fatal error ends it.
func (s *Session) Run() error {
	for {
		var timerC <-chan time.Time
		if s.out != nil {
			timerC = s.out.timer.C
		}
		select {
		case pkt := <-s.recvCh:
			if err := s.handleInbound(pkt.raw, pkt.from); err != nil {
				level.Warn(s.logger).Log("msg", "drop inbound message", "err", err)
			}
			if s.machine.Current() == state.Closed {
				return nil
			}
		case <-timerC:
			if err := s.retransmit(); err != nil {
				return err
			}
		case <-s.done:
			return nil
		}
	}
}

// Close begins tearing down the IKE SA.
func (s *Session) Close() error {
	if s.closing {
		return nil
	}
	s.closing = true
	if s.machine.Current() == state.Idle {
		msg := BuildDeleteIke(s.rec, s.rec.NextMessageId())
		if err := s.sendRequest(msg); err != nil {
			return err
		}
	}
	globalSpiRegistry.Release(s.remoteAddr, s.localSpi)
	close(s.done)
	return nil
}

func (s *Session) sendRequest(msg *protocol.Message) error {
	wire, err := msg.Encode(s.cryptorFor(msg))
	if err != nil {
		return err
	}
	if msg.Header.ExchangeType == protocol.IKE_SA_INIT {
		s.rec.InitReqBytes = wire
	}
	if err := s.conn.WritePacket(wire, s.remoteAddr); err != nil {
		return err
	}
	s.out = &outstanding{
		msgId: msg.Header.MsgId,
		wire:  wire,
		next:  retransmitInitial,
		timer: time.NewTimer(retransmitInitial),
	}
	return nil
}

func (s *Session) retransmit() error {
	if s.out == nil {
		return nil
	}
	if s.out.attempts >= retransmitCap {
		if _, err := s.machine.Fire(state.Local, state.TriggerAwaitTimeout); err != nil {
			level.Warn(s.logger).Log("msg", "retransmit cap reached with no legal timeout transition", "err", err)
		}
		return fmt.Errorf("ike: no response after %d retransmissions", retransmitCap)
	}
	if err := s.conn.WritePacket(s.out.wire, s.remoteAddr); err != nil {
		return err
	}
	s.out.attempts++
	s.out.next *= retransmitFactor
	s.out.timer.Reset(s.out.next)
	return nil
}

func (s *Session) cryptorFor(msg *protocol.Message) protocol.Cryptor {
	if msg.Header.NextPayload != protocol.PayloadTypeSK {
		return nil
	}
	return s.cryptor()
}

// cryptor returns a genuinely nil protocol.Cryptor interface until keys
// exist, rather than an interface wrapping a nil *crypto.Keys pointer -
// Go's typed-nil/interface-nil distinction means the latter would pass
// DecodePayloads's "cryptor == nil" guard and then panic inside Open.
func (s *Session) cryptor() protocol.Cryptor {
	if s.rec.Keys == nil {
		return nil
	}
	return s.rec.Keys
}

func (s *Session) handleInbound(raw []byte, from net.Addr) error {
	msg := &protocol.Message{}
	if err := msg.DecodeHeaderOnly(raw); err != nil {
		return err
	}
	if msg.Header.SpiI != s.rec.SpiI && !s.rec.SpiI.IsZero() {
		return fmt.Errorf("ike: spi mismatch")
	}
	if err := msg.DecodePayloads(raw, s.cryptor()); err != nil {
		return err
	}

	if msg.Header.Flags.IsResponse() {
		return s.handleResponse(msg, raw)
	}
	return s.handleRequest(msg)
}

func (s *Session) handleResponse(msg *protocol.Message, raw []byte) error {
	if s.out == nil || msg.Header.MsgId != s.out.msgId {
		return fmt.Errorf("ike: unexpected response id %d", msg.Header.MsgId)
	}
	s.out.timer.Stop()
	s.out = nil

	switch msg.Header.ExchangeType {
	case protocol.IKE_SA_INIT:
		s.rec.InitRespBytes = raw
		if err := ApplyInitResponse(s.rec, s.cfg, msg.Header, msg.Payloads); err != nil {
			return err
		}
		if _, err := s.machine.Fire(state.Remote, state.TriggerLocalResponseReceived); err != nil {
			return err
		}
		return s.startAuth()
	case protocol.IKE_AUTH:
		return s.handleAuthResponse(msg)
	}
	_, err := s.machine.Fire(state.Remote, state.TriggerLocalResponseReceived)
	return err
}

// startAuth sends the opening IKE_AUTH request: IDi plus our AUTH
// payload for PSK/cert methods, or IDi alone when an embedded EAP
// conversation will carry authentication instead (RFC 7296 §2.16).
func (s *Session) startAuth() error {
	if s.auth.IsEap() {
		s.awaitingEap = true
		msg := BuildAuthRequestEap(s.rec, s.cfg, s.rec.NextMessageId())
		return s.sendRequest(msg)
	}
	authData := s.auth.BuildPskAuth(s.rec.InitReqBytes, s.rec.Nr.Bytes(), localIdPayload(s.cfg, protocol.PayloadTypeNone).Encode(), true)
	msg := BuildAuthRequestFinal(s.rec, s.cfg, s.rec.NextMessageId(), authData)
	return s.sendRequest(msg)
}

// handleAuthResponse dispatches one IKE_AUTH response: an embedded EAP
// reply keeps the conversation going, a final AUTH-bearing response
// verifies the peer and completes the exchange.
func (s *Session) handleAuthResponse(msg *protocol.Message) error {
	content := ParseAuthResponse(msg.Payloads)

	if s.awaitingEap && content.Eap != nil {
		reply, done, ok, msk, err := s.auth.HandleEapPayload(content.Eap)
		if err != nil {
			return err
		}
		if reply != nil {
			out := BuildAuthRequestEapCarry(s.rec, s.rec.NextMessageId(), reply.EapMessage)
			return s.sendRequest(out)
		}
		if !done {
			return fmt.Errorf("ike: eap conversation stalled with no reply and no completion")
		}
		if !ok {
			return fmt.Errorf("ike: eap authentication failed")
		}
		s.awaitingEap = false
		s.eapMsk = msk
		authData := s.auth.BuildEapAuth(msk, s.rec.InitReqBytes, s.rec.Nr.Bytes(), localIdPayload(s.cfg, protocol.PayloadTypeNone).Encode(), true)
		out := BuildAuthRequestFinal(s.rec, s.cfg, s.rec.NextMessageId(), authData)
		return s.sendRequest(out)
	}

	if content.PeerAuth == nil {
		return fmt.Errorf("ike: ike_auth response missing both eap and auth payloads")
	}
	if err := s.verifyPeerAuth(content); err != nil {
		return err
	}
	_, err := s.machine.Fire(state.Remote, state.TriggerLocalResponseReceived)
	return err
}

func (s *Session) verifyPeerAuth(content AuthResponseContent) error {
	if content.PeerId == nil {
		return fmt.Errorf("ike: ike_auth response missing idr payload")
	}
	idBody := (&protocol.IdPayload{IdType: content.PeerId.IdType, Data: content.PeerId.Data}).Encode()
	var expected []byte
	if s.eapMsk != nil {
		expected = s.auth.BuildEapAuth(s.eapMsk, s.rec.InitRespBytes, s.rec.Ni.Bytes(), idBody, false)
	} else {
		expected = s.auth.BuildPskAuth(s.rec.InitRespBytes, s.rec.Ni.Bytes(), idBody, false)
	}
	if len(expected) != len(content.PeerAuth.Data) || subtle.ConstantTimeCompare(expected, content.PeerAuth.Data) != 1 {
		return fmt.Errorf("ike: peer auth verification failed")
	}
	return nil
}

func (s *Session) handleRequest(msg *protocol.Message) error {
	ok, isRetransmit := s.rec.RecordReceived(msg.Header.MsgId)
	if isRetransmit {
		level.Debug(s.logger).Log("msg", "duplicate request, ignoring", "id", msg.Header.MsgId)
		return nil
	}
	if !ok {
		return fmt.Errorf("ike: out-of-window request id %d", msg.Header.MsgId)
	}
	trig, err := state.InferTrigger(msg.Header.ExchangeType, msg.Payloads)
	if err != nil {
		return err
	}
	_, err = s.machine.Fire(state.Remote, trig)
	return err
}
