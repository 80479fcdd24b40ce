// Package state implements the IKE session state machine's legal-transition
// table: the states and events an ike.Session moves through while
// orchestrating IKE_SA_INIT/IKE_AUTH/CREATE_CHILD_SA/INFORMATIONAL
// exchanges, including simultaneous-rekey collision handling. Expressed
// as an explicit transition table rather than inheritance between state
// types.
package state

import "fmt"

// State is one node of the session state machine.
type State int

const (
	Initial State = iota
	CreateIkeLocalInit
	CreateIkeLocalAuth
	Idle
	Receiving
	RekeyIkeLocalCreate
	SimulRekeyIkeLocalCreate
	SimulRekeyIkeLocalDeleteRemoteDelete
	SimulRekeyIkeLocalDelete
	SimulRekeyIkeRemoteDelete
	RekeyIkeLocalDelete
	RekeyIkeRemoteDelete
	DeleteIkeLocal
	Closed
)

func (s State) String() string {
	switch s {
	case Initial:
		return "Initial"
	case CreateIkeLocalInit:
		return "CreateIkeLocalInit"
	case CreateIkeLocalAuth:
		return "CreateIkeLocalAuth"
	case Idle:
		return "Idle"
	case Receiving:
		return "Receiving"
	case RekeyIkeLocalCreate:
		return "RekeyIkeLocalCreate"
	case SimulRekeyIkeLocalCreate:
		return "SimulRekeyIkeLocalCreate"
	case SimulRekeyIkeLocalDeleteRemoteDelete:
		return "SimulRekeyIkeLocalDeleteRemoteDelete"
	case SimulRekeyIkeLocalDelete:
		return "SimulRekeyIkeLocalDelete"
	case SimulRekeyIkeRemoteDelete:
		return "SimulRekeyIkeRemoteDelete"
	case RekeyIkeLocalDelete:
		return "RekeyIkeLocalDelete"
	case RekeyIkeRemoteDelete:
		return "RekeyIkeRemoteDelete"
	case DeleteIkeLocal:
		return "DeleteIkeLocal"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Origin distinguishes a locally-originated trigger (we issued the
// request, or a local timer fired) from one inferred from an inbound
// packet.
type Origin int

const (
	Local Origin = iota
	Remote
)

// Trigger is the logical event driving one transition: either a
// LOCAL_REQUEST kind or the exchange subtype inferred from an inbound
// message, plus the two timer
// events and two collision-bookkeeping signals that have no direct
// wire representation.
type Trigger int

const (
	TriggerCreateIke Trigger = iota
	TriggerDeleteIke
	TriggerRekeyIke
	TriggerInfo
	TriggerCreateChild
	TriggerDeleteChild
	TriggerRekeyChild
	TriggerRetransmitTimeout
	TriggerAwaitTimeout
	// TriggerLocalResponseReceived fires when the response to our own
	// outstanding local request arrives; EventKind RX_PACKET events that
	// match a pending request are translated to this trigger rather than
	// to the request's own kind, since the peer's message carries a
	// response flag, not a second request.
	TriggerLocalResponseReceived
	// TriggerDeleteComplete fires once an INFORMATIONAL delete exchange
	// this state was waiting on (ours or the peer's) has finished.
	TriggerDeleteComplete
)

func (t Trigger) String() string {
	names := [...]string{
		"CreateIke", "DeleteIke", "RekeyIke", "Info", "CreateChild",
		"DeleteChild", "RekeyChild", "RetransmitTimeout", "AwaitTimeout",
		"LocalResponseReceived", "DeleteComplete",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "Unknown"
}

type edge struct {
	from   State
	origin Origin
	trig   Trigger
}

// transitions is the full legal-transition table (plus the
// rekey-collision resolution paragraph). Entries not present are illegal:
// Fire on them returns an error rather than silently holding state.
var transitions = map[edge]State{
	{Initial, Local, TriggerCreateIke}: CreateIkeLocalInit,

	// IKE_SA_INIT response received, send IKE_AUTH
	{CreateIkeLocalInit, Remote, TriggerLocalResponseReceived}: CreateIkeLocalAuth,
	// IKE_AUTH response received, SA established
	{CreateIkeLocalAuth, Remote, TriggerLocalResponseReceived}: Idle,

	{Idle, Remote, TriggerInfo}:         Idle,
	{Idle, Remote, TriggerCreateChild}:  Idle,
	{Idle, Remote, TriggerDeleteChild}:  Idle,
	{Idle, Local, TriggerCreateChild}:   Idle,
	{Idle, Local, TriggerDeleteChild}:   Idle,
	{Idle, Local, TriggerInfo}:          Idle,

	// local rekey
	{Idle, Local, TriggerRekeyIke}: RekeyIkeLocalCreate,
	// peer's rekey request races ours: second candidate SA created
	{RekeyIkeLocalCreate, Remote, TriggerRekeyIke}: SimulRekeyIkeLocalCreate,
	// no collision: our rekey response arrives, old SA goes into delete
	{RekeyIkeLocalCreate, Remote, TriggerLocalResponseReceived}: RekeyIkeLocalDelete,
	{RekeyIkeLocalDelete, Remote, TriggerDeleteComplete}:        Idle,
	{RekeyIkeLocalDelete, Local, TriggerDeleteComplete}:         Idle,

	// collision: our rekey response arrives while peer's candidate is
	// also live; nonce comparison picks the survivor and both losing
	// SAs (old SA, losing new SA) are deleted
	{SimulRekeyIkeLocalCreate, Remote, TriggerLocalResponseReceived}: SimulRekeyIkeLocalDeleteRemoteDelete,
	// our delete exchange finishes first, still waiting on the peer's
	{SimulRekeyIkeLocalDeleteRemoteDelete, Local, TriggerDeleteComplete}:  SimulRekeyIkeRemoteDelete,
	// the peer's delete exchange finishes first, still waiting on ours
	{SimulRekeyIkeLocalDeleteRemoteDelete, Remote, TriggerDeleteComplete}: SimulRekeyIkeLocalDelete,
	{SimulRekeyIkeRemoteDelete, Remote, TriggerDeleteComplete}:            Idle,
	{SimulRekeyIkeLocalDelete, Local, TriggerDeleteComplete}:              Idle,
	// a request on the surviving SA during the delete phase is deferred
	// by the caller and treated as remote acknowledgement
	{SimulRekeyIkeLocalDeleteRemoteDelete, Remote, TriggerCreateChild}: SimulRekeyIkeLocalDeleteRemoteDelete,

	// peer-initiated rekey with no local rekey in progress
	{Idle, Remote, TriggerRekeyIke}:              RekeyIkeRemoteDelete,
	{RekeyIkeRemoteDelete, Remote, TriggerDeleteComplete}: Idle,
	{RekeyIkeRemoteDelete, Local, TriggerDeleteComplete}:  Idle,

	{Idle, Local, TriggerDeleteIke}:  DeleteIkeLocal,
	{Idle, Remote, TriggerDeleteIke}: DeleteIkeLocal,
	{DeleteIkeLocal, Local, TriggerDeleteComplete}:  Closed,
	{DeleteIkeLocal, Remote, TriggerDeleteComplete}: Closed,
}

// Machine is a single IKE SA's state-machine cursor. It holds no
// transport or crypto state; ike.Session owns that and calls Fire once
// it has decided which trigger a message or timer represents.
type Machine struct {
	current State
}

func New() *Machine { return &Machine{current: Initial} }

func (m *Machine) Current() State { return m.current }

// Fire advances the machine, returning the new state. An undefined edge
// is an error, not a silent no-op.
func (m *Machine) Fire(origin Origin, trig Trigger) (State, error) {
	next, ok := transitions[edge{m.current, origin, trig}]
	if !ok {
		return m.current, fmt.Errorf("state: no transition from %s on %s trigger %s", m.current, originString(origin), trig)
	}
	m.current = next
	return next, nil
}

func originString(o Origin) string {
	if o == Local {
		return "local"
	}
	return "remote"
}
