package ike

import (
	"io"
	"net"
	"os"
	"runtime"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// natTMarker is the 4-byte non-ESP marker RFC 3948 prepends to IKE
// traffic once NAT-T encapsulation on port 4500 is in use.
var natTMarker = [4]byte{}

// Conn is the UDP transport a Session reads/writes through, narrowed to
// what Session actually calls.
type Conn interface {
	ReadPacket() (b []byte, remoteAddr net.Addr, localIP net.IP, err error)
	WritePacket(b []byte, remoteAddr net.Addr) error
	LocalAddr() net.Addr
	Close() error
}

var ErrUdpOnly = errors.New("ike: only udp is supported")

type pconnV4 ipv4.PacketConn

func (c *pconnV4) Close() error      { return c.Conn.Close() }
func (c *pconnV4) LocalAddr() net.Addr { return c.Conn.LocalAddr() }

type pconnV6 ipv6.PacketConn

func (c *pconnV6) Close() error      { return c.Conn.Close() }
func (c *pconnV6) LocalAddr() net.Addr { return c.Conn.LocalAddr() }

// Listen opens a UDP socket at address (port 500 or, for NAT-T, 4500)
// and wraps it in an ipv4/ipv6 PacketConn so the source address a packet
// arrived on can be recovered even when bound to a wildcard address.
func Listen(network, address string, logger log.Logger) (Conn, error) {
	switch network {
	case "udp4":
		return listenUDP4(address, logger)
	case "udp6", "udp", "":
		return listenUDP6(address, logger)
	}
	return nil, ErrUdpOnly
}

func listenUDP4(addr string, logger log.Logger) (*pconnV4, error) {
	udp, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, errors.Wrap(err, "listen")
	}
	p := ipv4.NewPacketConn(udp)
	cf := ipv4.FlagTTL | ipv4.FlagSrc | ipv4.FlagDst | ipv4.FlagInterface
	if err := p.SetControlMessage(cf, true); err != nil {
		if !protocolNotSupported(err) {
			p.Close()
			return nil, err
		}
		level.Warn(logger).Log("msg", "udp source address detection not supported", "os", runtime.GOOS)
	}
	return (*pconnV4)(p), nil
}

func listenUDP6(addr string, logger log.Logger) (*pconnV6, error) {
	udp, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "listen")
	}
	p := ipv6.NewPacketConn(udp)
	cf := ipv6.FlagSrc | ipv6.FlagDst | ipv6.FlagInterface
	if err := p.SetControlMessage(cf, true); err != nil {
		if !protocolNotSupported(err) {
			p.Close()
			return nil, err
		}
		level.Warn(logger).Log("msg", "udp source address detection not supported", "os", runtime.GOOS)
	}
	return (*pconnV6)(p), nil
}

const readBufSize = 3000

func (p *pconnV4) ReadPacket() (b []byte, remoteAddr net.Addr, localIP net.IP, err error) {
	b = make([]byte, readBufSize)
	n, cm, remoteAddr, err := p.ReadFrom(b)
	if err == nil {
		b = b[:n]
		if cm != nil {
			localIP = cm.Dst
		}
	}
	return
}

func (p *pconnV6) ReadPacket() (b []byte, remoteAddr net.Addr, localIP net.IP, err error) {
	b = make([]byte, readBufSize)
	n, cm, remoteAddr, err := p.ReadFrom(b)
	if err == nil {
		b = b[:n]
		if cm != nil {
			localIP = cm.Dst
		}
	}
	return
}

func (p *pconnV4) WritePacket(b []byte, remoteAddr net.Addr) error {
	n, err := p.WriteTo(b, nil, remoteAddr)
	if err != nil {
		return err
	} else if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}

func (p *pconnV6) WritePacket(b []byte, remoteAddr net.Addr) error {
	n, err := p.WriteTo(b, nil, remoteAddr)
	if err != nil {
		return err
	} else if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}

// natTConn wraps a Conn bound to port 4500, stripping/adding the 4-byte
// non-ESP marker each NAT-T-encapsulated IKE datagram carries (RFC 3948
// §2.2) - the "thin framing concern" SPEC_FULL.md commits to ike.Conn.
type natTConn struct {
	Conn
}

func NatT(c Conn) Conn { return &natTConn{c} }

func (n *natTConn) ReadPacket() ([]byte, net.Addr, net.IP, error) {
	b, remote, local, err := n.Conn.ReadPacket()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(b) < 4 || [4]byte(b[:4]) != natTMarker {
		return nil, nil, nil, errors.New("ike: non-ESP marker missing on NAT-T socket")
	}
	return b[4:], remote, local, nil
}

func (n *natTConn) WritePacket(b []byte, remoteAddr net.Addr) error {
	framed := append(append([]byte{}, natTMarker[:]...), b...)
	return n.Conn.WritePacket(framed, remoteAddr)
}

// copied from golang.org/x/net/internal/nettest: some platforms don't
// support per-packet source address control messages.
func protocolNotSupported(err error) bool {
	switch e := err.(type) {
	case syscall.Errno:
		return e == syscall.EPROTONOSUPPORT || e == syscall.ENOPROTOOPT
	case *os.SyscallError:
		if errno, ok := e.Err.(syscall.Errno); ok {
			return errno == syscall.EPROTONOSUPPORT || errno == syscall.ENOPROTOOPT
		}
	}
	return false
}
