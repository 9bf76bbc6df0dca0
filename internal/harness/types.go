package harness

// Trace event types.
const (
	EventStarted = "started"
	EventSettled = "settled"
	EventRefresh = "refresh"
	EventClear   = "clear"
)

// TraceEvent is one observable moment of a run.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"`
	Label     string `json:"label,omitempty"`
	ID        string `json:"id,omitempty"`
	Kind      string `json:"kind,omitempty"`
	ProductID string `json:"product,omitempty"`

	// Quantity is what a settled mutation sent.
	Quantity *int   `json:"quantity,omitempty"`
	State    string `json:"state,omitempty"`
	Failure  string `json:"failure,omitempty"`
	Error    string `json:"error,omitempty"`

	// Optimistic is recorded when a click starts, Confirmed when it settles
	// and after a refresh or clear.
	Optimistic map[string]int `json:"optimistic,omitempty"`
	Confirmed  map[string]int `json:"confirmed,omitempty"`
}

// RequestEvent is a request the fake server received while steps ran.
type RequestEvent struct {
	Route string `json:"route"`
	Path  string `json:"path"`
	Body  string `json:"body,omitempty"`
}

// Carts holds the three views of the cart at the end of a run.
type Carts struct {
	Server     map[string]int `json:"server"`
	Confirmed  map[string]int `json:"confirmed"`
	Optimistic map[string]int `json:"optimistic"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists started and settled mutations in the order observed.
	Trace []TraceEvent `json:"trace"`

	// Requests lists what the server received after setup.
	Requests []RequestEvent `json:"requests"`

	// Final is the state after the last step.
	Final Carts `json:"final"`

	// Notices are the messages left in the notification tray.
	Notices []string `json:"notices"`

	// Errors describes every failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Requests: []RequestEvent{},
		Notices:  []string{},
		Errors:   []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Settled returns the settled events in order.
func (r *Result) Settled() []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == EventSettled {
			out = append(out, e)
		}
	}
	return out
}
