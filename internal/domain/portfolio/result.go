package portfolio

// Reject classifies why a ledger mutation was refused. Rejections are data,
// not errors: no mutation is performed and the caller decides how to react.
type Reject string

const (
	// RejectNone marks an accepted mutation.
	RejectNone Reject = ""

	// RejectInsufficientFunds: the buy leg would overdraw cash.
	RejectInsufficientFunds Reject = "insufficient_funds"

	// RejectUnknownPosition: the operation references a ticker not held.
	RejectUnknownPosition Reject = "unknown_position"

	// RejectDegenerateRounding: a rotation's new position would round to
	// zero shares.
	RejectDegenerateRounding Reject = "degenerate_rounding"
)

// Result is the outcome of a ledger mutation.
type Result struct {
	Reject Reject `json:"reject,omitempty"`
}

// OK reports whether the mutation was applied.
func (r Result) OK() bool { return r.Reject == RejectNone }

func accepted() Result { return Result{} }

func rejected(reason Reject) Result { return Result{Reject: reason} }
