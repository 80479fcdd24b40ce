package ike

import "testing"

func TestCompareNonceTieBreak(t *testing.T) {
	lower := []byte{0x01, 0x00}
	higher := []byte{0x02, 0x00}
	if CompareNonce(lower, higher) >= 0 {
		t.Fatalf("expected lower < higher")
	}
	if CompareNonce(higher, lower) <= 0 {
		t.Fatalf("expected higher > lower")
	}
	if CompareNonce(lower, lower) != 0 {
		t.Fatalf("expected equal nonces to compare equal")
	}
}

func TestNextMessageIdIncrements(t *testing.T) {
	rec := &SaRecord{}
	for want := uint32(0); want < 3; want++ {
		if got := rec.NextMessageId(); got != want {
			t.Fatalf("NextMessageId() = %d, want %d", got, want)
		}
	}
}

func TestRecordReceivedWindow(t *testing.T) {
	rec := &SaRecord{}

	ok, retransmit := rec.RecordReceived(0)
	if !ok || retransmit {
		t.Fatalf("first request: ok=%v retransmit=%v, want ok=true retransmit=false", ok, retransmit)
	}

	// the same request arriving again is a retransmit, not a fresh one
	ok, retransmit = rec.RecordReceived(0)
	if ok || !retransmit {
		t.Fatalf("duplicate of request 0: ok=%v retransmit=%v, want ok=false retransmit=true", ok, retransmit)
	}

	// the next in-order request advances the window
	ok, retransmit = rec.RecordReceived(1)
	if !ok || retransmit {
		t.Fatalf("request 1: ok=%v retransmit=%v, want ok=true retransmit=false", ok, retransmit)
	}

	// anything out of the single-outstanding-request window is dropped,
	// neither accepted nor treated as a safe-to-reanswer duplicate
	ok, retransmit = rec.RecordReceived(0)
	if ok || retransmit {
		t.Fatalf("replay of request 0 after window advanced: ok=%v retransmit=%v, want both false", ok, retransmit)
	}
	ok, retransmit = rec.RecordReceived(5)
	if ok || retransmit {
		t.Fatalf("request 5 arriving out of order: ok=%v retransmit=%v, want both false", ok, retransmit)
	}
}
