package ike

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"github.com/mnsio/ikev2-eap/protocol"
)

// spiRegistry is the process-wide set of reserved (address, SPI) pairs
// Allocation is the insertion primitive; release is removal.
// Guarded by a mutex: the process-wide SPI set is the only piece of
// guarded against concurrent access".
type spiRegistry struct {
	mu        sync.Mutex
	reserved  map[string]map[protocol.Spi]bool
}

var globalSpiRegistry = &spiRegistry{reserved: make(map[string]map[protocol.Spi]bool)}

const maxSpiAllocAttempts = 100

// Allocate reserves a new, non-zero SPI for addr, retrying on collision
// up to maxSpiAllocAttempts times before failing.
func (r *spiRegistry) Allocate(addr net.Addr) (protocol.Spi, error) {
	key := addr.String()
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.reserved[key]
	if set == nil {
		set = make(map[protocol.Spi]bool)
		r.reserved[key] = set
	}
	for attempt := 0; attempt < maxSpiAllocAttempts; attempt++ {
		spi, err := randomSpi()
		if err != nil {
			return protocol.Spi{}, err
		}
		if spi.IsZero() || set[spi] {
			continue
		}
		set[spi] = true
		return spi, nil
	}
	return protocol.Spi{}, fmt.Errorf("ike: spi allocation exhausted for %s after %d attempts", key, maxSpiAllocAttempts)
}

// Release frees a previously allocated SPI.
func (r *spiRegistry) Release(addr net.Addr, spi protocol.Spi) {
	key := addr.String()
	r.mu.Lock()
	defer r.mu.Unlock()
	if set := r.reserved[key]; set != nil {
		delete(set, spi)
	}
}

func randomSpi() (protocol.Spi, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return protocol.Spi{}, err
	}
	var spi protocol.Spi
	copy(spi[:], b[:])
	return spi, nil
}

func spiToUint64(spi protocol.Spi) uint64 {
	return binary.BigEndian.Uint64(spi[:])
}
