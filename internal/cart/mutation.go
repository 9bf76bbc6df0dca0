package cart

import (
	"fmt"
	"time"
)

// Kind is the action a mutation performs.
type Kind int

const (
	KindAdd Kind = iota + 1
	KindRemove
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindRemove:
		return "remove"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "add":
		return KindAdd, nil
	case "remove":
		return KindRemove, nil
	}
	return 0, fmt.Errorf("unknown mutation kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// State is where a mutation is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateOptimistic
	StateConfirmed
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOptimistic:
		return "optimistic"
	case StateConfirmed:
		return "confirmed"
	case StateRolledBack:
		return "rolled_back"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	for _, st := range []State{StateIdle, StateOptimistic, StateConfirmed, StateRolledBack} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown mutation state %q", s)
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Settled reports whether the mutation has finished.
func (s State) Settled() bool {
	return s == StateConfirmed || s == StateRolledBack
}

// Mutation is one add or remove click and the request it produced.
type Mutation struct {
	ID        string `json:"id"`
	Seq       int64  `json:"seq"`
	Kind      Kind   `json:"kind"`
	ProductID string `json:"productId"`

	// Quantity is what was sent: 1 for an add, the new quantity for an
	// update, 0 for a line removal. A remove learns its quantity when the
	// request is issued.
	Quantity int `json:"quantity"`

	State     State     `json:"state"`
	Failure   string    `json:"failure,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	SettledAt time.Time `json:"settledAt"`
}
