package harness

// Trace event types.
const (
	EventSet        = "set"
	EventNotify     = "notify"
	EventEmit       = "emit"
	EventUnregister = "unregister"
	EventTxBegin    = "tx_begin"
	EventTxEnd      = "tx_end"
	EventAbort      = "abort"
	EventFail       = "fail"
)

// TraceEvent is one entry in a scenario trace. Which fields are set
// depends on Type.
type TraceEvent struct {
	Seq     int64    `json:"seq"`
	Type    string   `json:"type"`
	Store   string   `json:"store,omitempty"`
	Value   any      `json:"value,omitempty"`
	Event   string   `json:"event,omitempty"`
	Data    any      `json:"data,omitempty"`
	Mode    string   `json:"mode,omitempty"`
	Op      string   `json:"op,omitempty"`
	Stores  []string `json:"stores,omitempty"`
	Outcome string   `json:"outcome,omitempty"`
	Code    string   `json:"code,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// toMap converts the event for canonical encoding. set and notify always
// carry a value, even nil; other empty fields are omitted.
func (e TraceEvent) toMap() map[string]any {
	m := map[string]any{
		"seq":  e.Seq,
		"type": e.Type,
	}
	if e.Type == EventSet || e.Type == EventNotify {
		m["value"] = e.Value
	}
	if e.Data != nil {
		m["data"] = e.Data
	}
	if len(e.Stores) > 0 {
		stores := make([]any, len(e.Stores))
		for i, s := range e.Stores {
			stores[i] = s
		}
		m["stores"] = stores
	}
	for k, v := range map[string]string{
		"store":   e.Store,
		"event":   e.Event,
		"mode":    e.Mode,
		"op":      e.Op,
		"outcome": e.Outcome,
		"code":    e.Code,
		"reason":  e.Reason,
	} {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every tx expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists everything that happened, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final maps each store still registered at the end to its value.
	Final map[string]any `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  make(map[string]any),
	}
}

// AddError adds a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Count returns the number of trace events of type typ for store (any
// store when store is empty).
func (r *Result) Count(typ, store string) int {
	n := 0
	for _, e := range r.Trace {
		if e.Type == typ && (store == "" || e.Store == store) {
			n++
		}
	}
	return n
}
