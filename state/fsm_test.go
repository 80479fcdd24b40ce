package state

import "testing"

func fire(t *testing.T, m *Machine, origin Origin, trig Trigger) State {
	t.Helper()
	next, err := m.Fire(origin, trig)
	if err != nil {
		t.Fatalf("Fire(%s, %s): %v", originString(origin), trig, err)
	}
	return next
}

func TestIkeSaInitAuthHappyPath(t *testing.T) {
	m := New()
	fire(t, m, Local, TriggerCreateIke)
	if m.Current() != CreateIkeLocalInit {
		t.Fatalf("after CreateIke: %s, want CreateIkeLocalInit", m.Current())
	}
	fire(t, m, Remote, TriggerLocalResponseReceived)
	if m.Current() != CreateIkeLocalAuth {
		t.Fatalf("after IKE_SA_INIT response: %s, want CreateIkeLocalAuth", m.Current())
	}
	fire(t, m, Remote, TriggerLocalResponseReceived)
	if m.Current() != Idle {
		t.Fatalf("after IKE_AUTH response: %s, want Idle", m.Current())
	}
}

func TestIllegalTransitionIsRejectedWithoutChangingState(t *testing.T) {
	m := New()
	before := m.Current()
	if _, err := m.Fire(Local, TriggerDeleteIke); err == nil {
		t.Fatalf("expected an error firing DeleteIke from Initial")
	}
	if m.Current() != before {
		t.Fatalf("state changed on a rejected transition: %s", m.Current())
	}
}

// Simultaneous rekey: our local rekey request races the peer's own
// rekey request for the same IKE SA. Both sides derive a collision
// state where the nonce tie-break (compared with ike.CompareNonce, not
// modeled here) decides which delete exchange finishes first; either
// order reaches Idle once both deletes complete.
func TestSimultaneousRekeyCollision(t *testing.T) {
	m := New()
	fire(t, m, Local, TriggerCreateIke)
	fire(t, m, Remote, TriggerLocalResponseReceived)
	fire(t, m, Remote, TriggerLocalResponseReceived)
	if m.Current() != Idle {
		t.Fatalf("setup: %s, want Idle", m.Current())
	}

	fire(t, m, Local, TriggerRekeyIke)
	if m.Current() != RekeyIkeLocalCreate {
		t.Fatalf("after local rekey: %s, want RekeyIkeLocalCreate", m.Current())
	}
	fire(t, m, Remote, TriggerRekeyIke)
	if m.Current() != SimulRekeyIkeLocalCreate {
		t.Fatalf("after peer's racing rekey: %s, want SimulRekeyIkeLocalCreate", m.Current())
	}
	fire(t, m, Remote, TriggerLocalResponseReceived)
	if m.Current() != SimulRekeyIkeLocalDeleteRemoteDelete {
		t.Fatalf("after our rekey response: %s, want SimulRekeyIkeLocalDeleteRemoteDelete", m.Current())
	}

	// our delete finishes first, peer's still outstanding
	fire(t, m, Local, TriggerDeleteComplete)
	if m.Current() != SimulRekeyIkeRemoteDelete {
		t.Fatalf("after our delete completes: %s, want SimulRekeyIkeRemoteDelete", m.Current())
	}
	fire(t, m, Remote, TriggerDeleteComplete)
	if m.Current() != Idle {
		t.Fatalf("after peer's delete completes: %s, want Idle", m.Current())
	}
}

func TestSimultaneousRekeyCollisionOppositeDeleteOrder(t *testing.T) {
	m := New()
	fire(t, m, Local, TriggerCreateIke)
	fire(t, m, Remote, TriggerLocalResponseReceived)
	fire(t, m, Remote, TriggerLocalResponseReceived)
	fire(t, m, Local, TriggerRekeyIke)
	fire(t, m, Remote, TriggerRekeyIke)
	fire(t, m, Remote, TriggerLocalResponseReceived)

	// peer's delete finishes first this time
	fire(t, m, Remote, TriggerDeleteComplete)
	if m.Current() != SimulRekeyIkeLocalDelete {
		t.Fatalf("after peer's delete completes: %s, want SimulRekeyIkeLocalDelete", m.Current())
	}
	fire(t, m, Local, TriggerDeleteComplete)
	if m.Current() != Idle {
		t.Fatalf("after our delete completes: %s, want Idle", m.Current())
	}
}

func TestDeleteIkeReachesClosed(t *testing.T) {
	m := New()
	fire(t, m, Local, TriggerCreateIke)
	fire(t, m, Remote, TriggerLocalResponseReceived)
	fire(t, m, Remote, TriggerLocalResponseReceived)

	fire(t, m, Local, TriggerDeleteIke)
	if m.Current() != DeleteIkeLocal {
		t.Fatalf("after DeleteIke: %s, want DeleteIkeLocal", m.Current())
	}
	fire(t, m, Local, TriggerDeleteComplete)
	if m.Current() != Closed {
		t.Fatalf("after delete completes: %s, want Closed", m.Current())
	}
}
