package eap

import (
	"fmt"
	"sort"
)

// Outcome is what a Method or the Authenticator itself produced for one
// inbound EAP message: Response, Success,
// Failure, or Error).
type Outcome struct {
	Response []byte // encoded EAP message to send back, if any
	Done     bool   // true once the method has reached Final
	Ok       bool   // meaningful only when Done
	MSK      []byte
	EMSK     []byte
	Err      error
}

// Method is the capability every inner EAP method (eap/eapaka,
// eap/mschapv2) implements; the Authenticator drives exactly one at a
// time, single-threaded, per the common contract.
type Method interface {
	Type() Type
	// HandleRequest processes one EAP-Request TypeData and returns the
	// Response TypeData for the reply the Authenticator should send, or
	// an error.
	HandleRequest(identifier uint8, typeData []byte) Outcome
}

// MethodFactory lazily constructs a Method for the first Request of its
// type, so the Authenticator need not know about every method's
// configuration shape.
type MethodFactory func() Method

// ErrInvalidRequest is an EAP-level semantic violation (e.g. a
// Success/Failure with no method completed yet); it closes the EAP
// session.
var ErrInvalidRequest = fmt.Errorf("eap: invalid request")

// Authenticator is the top-level EAP peer state machine (C5): it owns
// method selection/NAK and dispatches Requests to a single active
// Method, lazily constructed from the configured factories.
type Authenticator struct {
	methods map[Type]MethodFactory
	active  Method
	done    bool
	ok      bool
	msk     []byte
	emsk    []byte
}

func NewAuthenticator(methods map[Type]MethodFactory) *Authenticator {
	return &Authenticator{methods: methods}
}

// Done reports whether the active method has reached Final, and if so
// whether it succeeded and the MSK/EMSK it derived.
func (a *Authenticator) Done() (done, ok bool, msk, emsk []byte) {
	return a.done, a.ok, a.msk, a.emsk
}

// HandleMessage processes one inbound EAP message and returns the
// Message to send back (nil if none), or an error. A Notification
// request (TypeNotify) is acknowledged without disturbing the active
// method's state.
func (a *Authenticator) HandleMessage(msg *Message) (*Message, error) {
	switch msg.Code {
	case CodeSuccess:
		if !a.done {
			return nil, ErrInvalidRequest
		}
		return nil, nil
	case CodeFailure:
		if !a.done {
			return nil, ErrInvalidRequest
		}
		return nil, nil
	case CodeRequest:
		return a.handleRequest(msg)
	default:
		return nil, fmt.Errorf("eap: unexpected code %s from peer", msg.Code)
	}
}

func (a *Authenticator) handleRequest(msg *Message) (*Message, error) {
	if msg.Type == TypeNotify {
		return &Message{Code: CodeResponse, Identifier: msg.Identifier, Type: TypeNotify}, nil
	}

	if a.active == nil || a.active.Type() != msg.Type {
		factory, ok := a.methods[msg.Type]
		if !ok {
			return a.nak(msg.Identifier), nil
		}
		a.active = factory()
	}

	out := a.active.HandleRequest(msg.Identifier, msg.TypeData)
	if out.Err != nil {
		return nil, out.Err
	}
	if out.Done {
		a.done = true
		a.ok = out.Ok
		a.msk = out.MSK
		a.emsk = out.EMSK
	}
	if out.Response == nil {
		return nil, nil
	}
	return &Message{Code: CodeResponse, Identifier: msg.Identifier, Type: a.active.Type(), TypeData: out.Response}, nil
}

func (a *Authenticator) nak(identifier uint8) *Message {
	desired := make([]Type, 0, len(a.methods))
	for t := range a.methods {
		desired = append(desired, t)
	}
	sort.Slice(desired, func(i, j int) bool { return desired[i] < desired[j] })
	return NakResponse(identifier, desired...)
}
